package si4707

import (
	"errors"
	"testing"
	"time"

	"nwrcode-go/errcode"
)

func TestTuneEveryChannel(t *testing.T) {
	for _, f := range Channels() {
		r, b, _, _ := newTestRadio()
		b.rssi, b.snr = 38, -3
		cmd, err := NewTuneFrequency(f)
		if err != nil {
			t.Fatalf("%.3f: %v", f, err)
		}
		if err := cmd.Execute(r); err != nil {
			t.Fatalf("%.3f: %v", f, err)
		}
		w := b.writesOf(opTuneFrequency)[0].payload
		if w[0] != 0 || be16(w, 1) != uint16(int(400*f+0.5)) {
			t.Fatalf("%.3f: args = % X", f, w)
		}
		v, _ := cmd.Result()
		res := v.(TuneResult)
		if res.RSSI != 38 || res.SNR != -3 || res.FrequencyMHz != f {
			t.Fatalf("%.3f: result = %+v", f, res)
		}
		if r.LastTune == nil || *r.LastTune != res {
			t.Fatalf("LastTune = %+v", r.LastTune)
		}
		ts := b.writesOf(opTuneStatus)
		if len(ts) != 1 || ts[0].payload[0] != 1 {
			t.Fatalf("TUNE_STATUS not acked: %+v", ts)
		}
	}
}

func TestTuneOutOfRange(t *testing.T) {
	for _, f := range []float64{162.399, 162.551, 0, 433.92} {
		cmd, err := NewTuneFrequency(f)
		var ve *ValidationError
		if cmd != nil || !errors.As(err, &ve) {
			t.Fatalf("%.3f: cmd=%v err=%v", f, cmd, err)
		}
	}
}

func TestTuneMismatchIsProtocolViolation(t *testing.T) {
	r, b, _, _ := newTestRadio()
	b.tuneOffset = 10
	cmd, _ := NewTuneFrequency(162.4)
	err := cmd.Execute(r)
	var pv *ProtocolViolationError
	if !errors.As(err, &pv) {
		t.Fatalf("err = %v", err)
	}
	if errcode.Of(err) != errcode.ProtocolViolation {
		t.Fatalf("code = %s", errcode.Of(err))
	}
	if r.LastTune != nil {
		t.Fatal("LastTune set on failure")
	}
}

func TestTunePollsUntilSTC(t *testing.T) {
	r, b, _, c := newTestRadio()
	b.intStatus = []Status{0, 0, StatusSAMEInt, StatusSTCInt}
	cmd, _ := NewTuneFrequency(162.475)
	if err := cmd.Execute(r); err != nil {
		t.Fatal(err)
	}
	if n := len(b.writesOf(opGetIntStatus)); n != 4 {
		t.Fatalf("GET_INT_STATUS polls = %d", n)
	}
	if len(c.slept) != 3 || c.slept[0] != tunePollInterval {
		t.Fatalf("slept = %v", c.slept)
	}
}

func TestTuneTimesOut(t *testing.T) {
	r, b, _, _ := newTestRadio()
	b.stcNever = true
	r.TunePolls = 5
	cmd, _ := NewTuneFrequency(162.5)
	err := cmd.Execute(r)
	var te *TimeoutError
	if !errors.As(err, &te) || te.Waits != 5 {
		t.Fatalf("err = %v", err)
	}
	if len(b.writesOf(opTuneStatus)) != 0 {
		t.Fatal("TUNE_STATUS sent after timeout")
	}
}

func TestTuneWaitsForCrystal(t *testing.T) {
	r, b, _, c := newTestRadio()
	start := c.Now()
	r.TuneAfter = start.Add(350 * time.Millisecond)
	// The deadline moves later while we wait.
	c.onTick = func() {
		if len(b.writes) == 0 {
			r.TuneAfter = start.Add(400 * time.Millisecond)
		}
	}
	cmd, _ := NewTuneFrequency(162.55)
	if err := cmd.Execute(r); err != nil {
		t.Fatal(err)
	}
	if c.slept[0] != 350*time.Millisecond || c.slept[1] != 100*time.Millisecond {
		t.Fatalf("slept = %v", c.slept)
	}
	if b.writes[0].opcode != opTuneFrequency {
		t.Fatalf("first write = 0x%02X", b.writes[0].opcode)
	}
}

func TestTuneClearsToneStart(t *testing.T) {
	r, _, _, c := newTestRadio()
	r.ToneStart = c.Now()
	cmd, _ := NewTuneFrequency(162.425)
	if err := cmd.Execute(r); err != nil {
		t.Fatal(err)
	}
	if !r.ToneStart.IsZero() {
		t.Fatal("ToneStart not cleared")
	}
}
