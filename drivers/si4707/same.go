package si4707

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nwrcode-go/same"
)

const (
	// samePacing is how soon the next SAME interrupt is expected after a
	// preamble or header.
	samePacing = 6 * time.Second
	// eomWindow suppresses the repeated EOM of one transmission.
	eomWindow = 5 * time.Second
)

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func([]same.Reception) (same.Message, error)

func (f DecoderFunc) Decode(reps []same.Reception) (same.Message, error) { return f(reps) }

// SameInterruptCheck polls WB_SAME_STATUS and advances header reassembly.
//
// With Dispatch set, the collected repetitions are decoded and the buffer
// emptied before the poll. Status flags are acted on only when IntAck is
// set; EOMDET takes precedence over HDRRDY, which takes precedence over
// PREDET.
type SameInterruptCheck struct {
	transaction
	IntAck   bool
	ClearBuf bool
	Dispatch bool

	Status *SAMEStatus
}

// NewSameInterruptCheck builds the poll. dispatch implies clearbuf.
func NewSameInterruptCheck(intack, clearbuf, dispatch bool) *SameInterruptCheck {
	return &SameInterruptCheck{
		transaction: newTransaction("WB_SAME_STATUS", opSAMEStatus, PriorityInterrupt),
		IntAck:      intack,
		ClearBuf:    clearbuf || dispatch,
		Dispatch:    dispatch,
	}
}

// Execute returns the SAMEStatus of the acknowledging poll.
func (c *SameInterruptCheck) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		if c.Dispatch {
			c.dispatch(r)
		}

		st, err := c.poll(r, 0, c.ClearBuf, c.IntAck)
		if err != nil {
			return nil, err
		}
		c.Status = &st
		if !c.IntAck {
			return st, nil
		}

		switch {
		case st.EOMDET:
			r.SameTimeout = time.Time{}
			if now := r.now(); now.Sub(r.LastEOM) > eomWindow {
				r.LastEOM = now
				r.emit(EndOfMessage{})
			}
		case st.HDRRDY:
			if err := c.collectHeader(r, st); err != nil {
				return nil, err
			}
		case st.PREDET:
			r.SameTimeout = r.now().Add(samePacing)
		}
		return st, nil
	})
}

func (c *SameInterruptCheck) dispatch(r *Radio) {
	r.SameTimeout = Never
	if len(r.SameMessages) == 0 {
		return
	}
	reps := r.SameMessages
	r.SameMessages = nil

	dec := r.Decoder
	if dec == nil {
		dec = DecoderFunc(same.Average)
	}
	msg, err := dec.Decode(reps)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			err = &DecodeError{Repetitions: len(reps), Err: err}
		}
		r.emit(InvalidSAMEMessageReceived{Headers: reps, Reason: err.Error()})
		return
	}
	r.emit(SAMEMessageReceived{Message: msg})
}

// collectHeader reads the rest of a header, stores it and re-arms the chip.
func (c *SameInterruptCheck) collectHeader(r *Radio, first SAMEStatus) error {
	n := first.MsgLen
	if n == 0 {
		return nil
	}
	sym := append(make([]byte, 0, n+sameChunkLen), first.Message[:]...)
	conf := append(make([]uint8, 0, n+sameChunkLen), first.Confidence[:]...)
	for len(sym) < n {
		st, err := c.poll(r, len(sym), false, false)
		if err != nil {
			return err
		}
		sym = append(sym, st.Message[:]...)
		conf = append(conf, st.Confidence[:]...)
	}
	r.SameMessages = append(r.SameMessages, same.Reception{
		Symbols:    string(sym[:n]),
		Confidence: conf[:n:n],
	})

	if _, err := c.poll(r, 0, true, false); err != nil {
		return err
	}
	r.SameTimeout = r.now().Add(samePacing)
	r.emit(SAMEHeaderReceived{Headers: append([]same.Reception(nil), r.SameMessages...)})
	return nil
}

func (c *SameInterruptCheck) poll(r *Radio, readAddr int, clearBuf, intAck bool) (SAMEStatus, error) {
	args := []byte{
		packFlags(bit(clearBuf, sameArgClearBuf), bit(intAck, sameArgIntAck)),
		byte(readAddr),
	}
	b, err := r.query(c.mnemonic, c.opcode, args, respSAMEStatusLen)
	if err != nil {
		return SAMEStatus{}, err
	}
	return decodeSAMEStatus(b), nil
}

func (c *SameInterruptCheck) String() string {
	var sb strings.Builder
	if c.Status != nil {
		sb.WriteString(c.Status.flags())
	}
	if c.Dispatch {
		sb.WriteString("dispatch ")
	}
	if c.ClearBuf {
		sb.WriteString("clearbuf ")
	}
	if c.IntAck {
		sb.WriteString("intack ")
	}
	return c.describe(strings.TrimSpace(sb.String()))
}

// ---------------- WB_ASQ_STATUS ----------------

// ToneStatus is the decoded WB_ASQ_STATUS response.
type ToneStatus struct {
	Started  bool          `json:"started"`
	Ended    bool          `json:"ended"`
	On       bool          `json:"on"`
	Duration time.Duration `json:"duration,omitempty"`
}

// AlertToneCheck polls the 1050 Hz tone detector. Every poll also queues a
// dispatching SameInterruptCheck, so tone polling drains pending headers.
type AlertToneCheck struct {
	transaction
	IntAck bool
	Tone   ToneStatus
}

func NewAlertToneCheck(intack bool) *AlertToneCheck {
	return &AlertToneCheck{
		transaction: newTransaction("WB_ASQ_STATUS", opASQStatus, PriorityInterrupt),
		IntAck:      intack,
	}
}

func (c *AlertToneCheck) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		b, err := r.query(c.mnemonic, c.opcode, []byte{ackByte(c.IntAck)}, respASQStatusLen)
		if err != nil {
			return nil, err
		}
		c.Tone = ToneStatus{
			Started: b[1]&asqAlertOnInt != 0,
			Ended:   b[1]&asqAlertOffInt != 0,
			On:      b[2] != 0,
		}

		now := r.now()
		switch {
		case c.Tone.On && r.ToneStart.IsZero():
			r.ToneStart = now
			r.emit(AlertToneEvent{On: true})
		case !c.Tone.On && !r.ToneStart.IsZero():
			c.Tone.Duration = now.Sub(r.ToneStart)
			r.ToneStart = time.Time{}
			r.emit(AlertToneEvent{On: false, Duration: c.Tone.Duration})
		}

		if err := r.resubmit(NewSameInterruptCheck(false, true, true)); err != nil {
			return c.Tone, err
		}
		return c.Tone, nil
	})
}

func (c *AlertToneCheck) String() string {
	return c.describe(fmt.Sprintf("intack=%t on=%t started=%t ended=%t duration=%s",
		c.IntAck, c.Tone.On, c.Tone.Started, c.Tone.Ended, c.Tone.Duration))
}
