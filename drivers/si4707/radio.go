package si4707

import (
	"fmt"
	"time"

	"nwrcode-go/same"
)

// Never is the deadline used for "not expected": later than any real time.
var Never = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Host is the owner of a Radio: it delivers events, runs delayed events at
// their time and accepts follow-up commands.
type Host interface {
	Emit(ev Event)
	ScheduleDelayed(ev Event, at time.Time)
	Resubmit(cmd Command)
}

// Decoder turns the repetitions of one transmission into a message.
type Decoder interface {
	Decode(reps []same.Reception) (same.Message, error)
}

// Radio is the receiver state shared by all commands. It has no locking:
// exactly one goroutine may execute commands against it at a time.
type Radio struct {
	Bus     Bus
	Host    Host
	Decoder Decoder

	Power bool
	// TuneAfter is when the crystal oscillator will have settled.
	TuneAfter time.Time
	// SameTimeout is when the next SAME interrupt is expected. Zero means
	// now; Never means pacing is suspended.
	SameTimeout  time.Time
	SameMessages []same.Reception
	ToneStart    time.Time
	LastEOM      time.Time

	Revision    *Revision
	PupRevision *PupRevision
	LastTune    *TuneResult

	// TunePolls bounds the seek/tune-complete poll loop.
	TunePolls int

	// Now and Sleep default to the time package.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// NewRadio returns a powered-down Radio on bus.
func NewRadio(bus Bus, host Host, dec Decoder) *Radio {
	return &Radio{
		Bus:         bus,
		Host:        host,
		Decoder:     dec,
		SameTimeout: Never,
		TunePolls:   250,
		Now:         time.Now,
		Sleep:       time.Sleep,
	}
}

func (r *Radio) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Radio) sleep(d time.Duration) {
	if r.Sleep == nil {
		time.Sleep(d)
		return
	}
	r.Sleep(d)
}

func (r *Radio) emit(ev Event) {
	if r.Host != nil {
		r.Host.Emit(ev)
	}
}

func (r *Radio) scheduleDelayed(ev Event, at time.Time) {
	if r.Host != nil {
		r.Host.ScheduleDelayed(ev, at)
	}
}

// resubmit hands cmd to the host, or runs it inline when there is none.
func (r *Radio) resubmit(cmd Command) error {
	if r.Host != nil {
		r.Host.Resubmit(cmd)
		return nil
	}
	return cmd.Execute(r)
}

// Execute runs cmd against r. It is shorthand for cmd.Execute(r).
func (r *Radio) Execute(cmd Command) error { return cmd.Execute(r) }

// CheckInterrupts issues GET_INT_STATUS and returns the status byte.
func (r *Radio) CheckInterrupts() (Status, error) {
	if err := r.Bus.Write(opGetIntStatus, nil); err != nil {
		return 0, busErr("GET_INT_STATUS", err)
	}
	st, err := r.Bus.WaitReady()
	if err != nil {
		return st, busErr("GET_INT_STATUS", err)
	}
	return st, nil
}

// command sends opcode+payload and waits for CTS.
func (r *Radio) command(op string, opcode byte, payload []byte) (Status, error) {
	if err := r.Bus.Write(opcode, payload); err != nil {
		return 0, busErr(op, err)
	}
	st, err := r.Bus.WaitReady()
	if err != nil {
		return st, busErr(op, err)
	}
	if st.Has(StatusErr) {
		return st, &BusError{Op: op, Err: ErrChipRejected}
	}
	return st, nil
}

// query is command followed by an n byte response read.
func (r *Radio) query(op string, opcode byte, payload []byte, n int) ([]byte, error) {
	if _, err := r.command(op, opcode, payload); err != nil {
		return nil, err
	}
	b, err := r.Bus.ReadBytes(n)
	if err != nil {
		return nil, busErr(op, err)
	}
	if len(b) < n {
		return nil, &BusError{Op: op, Err: errShortRead{want: n, got: len(b)}}
	}
	return b, nil
}

type errShortRead struct{ want, got int }

func (e errShortRead) Error() string {
	return fmt.Sprintf("short read: want %d got %d", e.want, e.got)
}
