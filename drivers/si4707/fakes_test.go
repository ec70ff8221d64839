package si4707

import (
	"time"

	"nwrcode-go/same"
)

type busCall struct {
	opcode  byte
	payload []byte
}

// fakeBus answers like a chip with canned per-opcode responses. SET/GET
// property and TUNE_FREQ/TUNE_STATUS are modelled; everything else replays
// queued responses or zeros.
type fakeBus struct {
	writes []busCall
	reads  int
	waits  int

	resp      map[byte][][]byte
	intStatus []Status
	stcNever  bool

	props      map[uint16]uint16
	tuned      uint16
	tuneOffset uint16
	rssi, snr  int8
	patchID    uint16

	failOp  byte
	failErr error
	last    byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{resp: map[byte][][]byte{}, props: map[uint16]uint16{}}
}

func (b *fakeBus) calls() int { return len(b.writes) + b.reads + b.waits }

func (b *fakeBus) queue(op byte, r ...[]byte) { b.resp[op] = append(b.resp[op], r...) }

func (b *fakeBus) Write(op byte, p []byte) error {
	b.writes = append(b.writes, busCall{opcode: op, payload: append([]byte(nil), p...)})
	b.last = op
	if b.failErr != nil && op == b.failOp {
		return b.failErr
	}
	switch op {
	case opSetProperty:
		b.props[be16(p, 1)] = be16(p, 3)
	case opTuneFrequency:
		b.tuned = be16(p, 1)
	}
	return nil
}

func (b *fakeBus) WaitReady() (Status, error) {
	b.waits++
	st := StatusCTS
	if b.last == opGetIntStatus {
		switch {
		case len(b.intStatus) > 0:
			st |= b.intStatus[0]
			b.intStatus = b.intStatus[1:]
		case !b.stcNever:
			st |= StatusSTCInt
		}
	}
	return st, nil
}

func (b *fakeBus) ReadBytes(n int) ([]byte, error) {
	b.reads++
	out := make([]byte, n)
	out[0] = byte(StatusCTS)
	if q := b.resp[b.last]; len(q) > 0 {
		copy(out, q[0])
		b.resp[b.last] = q[1:]
		return out, nil
	}
	switch b.last {
	case opGetProperty:
		w := b.writes[len(b.writes)-1].payload
		putBE16(out, 2, b.props[be16(w, 1)])
	case opTuneStatus:
		putBE16(out, 2, b.tuned+b.tuneOffset)
		out[4], out[5] = byte(b.rssi), byte(b.snr)
	case opGetRevision:
		copy(out[1:], []byte{7, '2', '0'})
		putBE16(out, 4, b.patchID)
		copy(out[6:], []byte{'2', '0', 'A'})
	}
	return out, nil
}

func (b *fakeBus) writesOf(op byte) []busCall {
	var out []busCall
	for _, w := range b.writes {
		if w.opcode == op {
			out = append(out, w)
		}
	}
	return out
}

type delayed struct {
	ev Event
	at time.Time
}

type fakeHost struct {
	events      []Event
	delayed     []delayed
	resubmitted []Command
}

func (h *fakeHost) Emit(ev Event) { h.events = append(h.events, ev) }
func (h *fakeHost) ScheduleDelayed(ev Event, at time.Time) {
	h.delayed = append(h.delayed, delayed{ev, at})
}
func (h *fakeHost) Resubmit(cmd Command) { h.resubmitted = append(h.resubmitted, cmd) }

func (h *fakeHost) kinds() []string {
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.EventKind())
	}
	return out
}

func (h *fakeHost) count(kind string) int {
	n := 0
	for _, e := range h.events {
		if e.EventKind() == kind {
			n++
		}
	}
	return n
}

// clock is a manual time source; Sleep advances it.
type clock struct {
	t      time.Time
	slept  []time.Duration
	onTick func()
}

func newClock() *clock { return &clock{t: time.Date(2026, 4, 28, 15, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	if c.onTick != nil {
		c.onTick()
	}
}
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type countingDecoder struct {
	calls int
	reps  []int
	err   error
}

func (d *countingDecoder) Decode(reps []same.Reception) (same.Message, error) {
	d.calls++
	d.reps = append(d.reps, len(reps))
	if d.err != nil {
		return same.Message{}, d.err
	}
	return same.Average(reps)
}

// newTestRadio returns a powered Radio on a fake bus with a manual clock.
func newTestRadio() (*Radio, *fakeBus, *fakeHost, *clock) {
	b := newFakeBus()
	h := &fakeHost{}
	c := newClock()
	r := NewRadio(b, h, nil)
	r.Now, r.Sleep = c.Now, c.Sleep
	r.Power = true
	return r, b, h, c
}

func sameReception(s string) same.Reception {
	c := make([]uint8, len(s))
	for i := range c {
		c[i] = 3
	}
	return same.Reception{Symbols: s, Confidence: c}
}
