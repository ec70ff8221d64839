package si4707

import (
	"fmt"
	"time"
)

const (
	tuneDeadlineStep = 100 * time.Millisecond
	tunePollInterval = 20 * time.Millisecond
	defaultTunePolls = 250
)

// TuneResult is what a completed tune reports.
type TuneResult struct {
	RSSI         int8    `json:"rssi"`
	SNR          int8    `json:"snr"`
	FrequencyMHz float64 `json:"frequency_mhz"`
}

// TuneFrequency tunes to one of the seven weather channels and confirms it.
type TuneFrequency struct {
	transaction
	MHz  float64
	code uint16
}

// NewTuneFrequency rejects frequencies outside 162.400-162.550 MHz.
func NewTuneFrequency(mhz float64) (*TuneFrequency, error) {
	if !(mhz >= 162.4 && mhz <= 162.55) {
		return nil, &ValidationError{Op: "WB_TUNE_FREQ", Field: "frequency", Value: fmt.Sprintf("%.3f MHz", mhz), Reason: "out of range"}
	}
	return &TuneFrequency{
		transaction: newTransaction("WB_TUNE_FREQ", opTuneFrequency, PriorityNormal),
		MHz:         mhz,
		code:        FrequencyCode(mhz),
	}, nil
}

// Code is the value sent on the wire.
func (c *TuneFrequency) Code() uint16 { return c.code }

// Execute returns a TuneResult.
func (c *TuneFrequency) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		// TuneAfter may move while we sleep; re-read it each lap.
		for {
			remaining := r.TuneAfter.Sub(r.now())
			if remaining <= 0 {
				break
			}
			r.sleep(max(tuneDeadlineStep, remaining))
		}

		var a [3]byte
		putBE16(a[:], 1, c.code)
		if _, err := r.command(c.mnemonic, c.opcode, a[:]); err != nil {
			return nil, err
		}
		r.ToneStart = time.Time{}

		polls := r.TunePolls
		if polls <= 0 {
			polls = defaultTunePolls
		}
		done := false
		for i := 0; i < polls; i++ {
			st, err := r.CheckInterrupts()
			if err != nil {
				return nil, err
			}
			if st.SeekTuneComplete() {
				done = true
				break
			}
			r.sleep(tunePollInterval)
		}
		if !done {
			return nil, &TimeoutError{Op: c.mnemonic, Waits: polls}
		}

		ts := NewTuneStatus(true)
		if err := ts.Execute(r); err != nil {
			return nil, err
		}
		if ts.Status.Code != c.code {
			return nil, &ProtocolViolationError{
				Op:   c.mnemonic,
				Msg:  "frequency did not stick",
				Want: fmt.Sprintf("0x%04X", c.code),
				Got:  fmt.Sprintf("0x%04X", ts.Status.Code),
			}
		}
		res := TuneResult{RSSI: ts.Status.RSSI, SNR: ts.Status.SNR, FrequencyMHz: FrequencyMHz(ts.Status.Code)}
		r.LastTune = &res
		return res, nil
	})
}

func (c *TuneFrequency) String() string {
	s := fmt.Sprintf("freq=%.3f code=0x%04X", c.MHz, c.code)
	if res, ok := c.result.(TuneResult); ok {
		s += fmt.Sprintf(" rssi=%d snr=%d", res.RSSI, res.SNR)
	}
	return c.describe(s)
}
