package simchip_test

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"
	"time"

	"nwrcode-go/drivers/si4707"
	"nwrcode-go/drivers/si4707/simchip"
)

const header = "ZCZC-WXR-SVR-048453+0045-1232200-KEWX/NWS-"

type host struct {
	events []si4707.Event
	resub  []si4707.Command
}

func (h *host) Emit(ev si4707.Event)                         { h.events = append(h.events, ev) }
func (h *host) ScheduleDelayed(ev si4707.Event, _ time.Time) { h.events = append(h.events, ev) }
func (h *host) Resubmit(cmd si4707.Command)                  { h.resub = append(h.resub, cmd) }

func (h *host) last() si4707.Event {
	if len(h.events) == 0 {
		return nil
	}
	return h.events[len(h.events)-1]
}

func newRadio(t *testing.T) (*simchip.Chip, *si4707.Radio, *host) {
	t.Helper()
	chip := simchip.New(si4707.AddressDefault)
	chip.BusyReads = 2
	h := &host{}
	r := si4707.NewRadio(si4707.NewI2CBus(chip, 0), h, nil)
	r.Sleep = func(time.Duration) {}

	cfg := si4707.DefaultPowerUp()
	cfg.CrystalOscillator = false
	pu, err := si4707.NewPowerUp(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Execute(pu); err != nil {
		t.Fatalf("power up: %v", err)
	}
	if !chip.Powered() || !r.Power {
		t.Fatal("not powered")
	}
	return chip, r, h
}

func TestWrongAddressNACKs(t *testing.T) {
	chip := simchip.New(si4707.AddressDefault)
	if err := chip.Tx(si4707.AddressAlt, []byte{0x10}, nil); !errors.Is(err, simchip.ErrNACK) {
		t.Fatalf("Tx = %v", err)
	}
}

func TestUnpoweredCommandSetsERR(t *testing.T) {
	chip := simchip.New(si4707.AddressDefault)
	r := si4707.NewRadio(si4707.NewI2CBus(chip, 0), nil, nil)
	r.Power = true // lie, so the command reaches the chip
	err := r.Execute(si4707.NewGetRevision())
	if !errors.Is(err, si4707.ErrChipRejected) {
		t.Fatalf("GetRevision on sleeping chip = %v", err)
	}
}

func TestPropertiesAndTune(t *testing.T) {
	chip, r, _ := newRadio(t)

	sp, err := si4707.NewSetProperty("RX_VOLUME", 40)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Execute(sp); err != nil {
		t.Fatal(err)
	}
	if got := chip.Property(0x4000); got != 40 {
		t.Fatalf("chip RX_VOLUME = %d", got)
	}
	gp, _ := si4707.NewGetProperty("RX_VOLUME")
	if err := r.Execute(gp); err != nil {
		t.Fatal(err)
	}
	if v, _ := gp.Result(); v != uint16(40) {
		t.Fatalf("GET_PROPERTY = %v", v)
	}

	chip.STCAfter = 3
	chip.SetSignal(35, 12)
	tf, _ := si4707.NewTuneFrequency(162.475)
	if err := r.Execute(tf); err != nil {
		t.Fatalf("tune: %v", err)
	}
	if chip.Tuned() != 64990 {
		t.Fatalf("chip tuned to %d", chip.Tuned())
	}
	if r.LastTune == nil || r.LastTune.RSSI != 35 || r.LastTune.SNR != 12 {
		t.Fatalf("LastTune = %+v", r.LastTune)
	}
}

func TestTuneDriftIsProtocolViolation(t *testing.T) {
	chip, r, _ := newRadio(t)
	chip.SetTuneError(10)
	tf, _ := si4707.NewTuneFrequency(162.4)
	var pv *si4707.ProtocolViolationError
	if err := r.Execute(tf); !errors.As(err, &pv) {
		t.Fatalf("tune = %v", err)
	}
}

func TestThreeHeadersDecode(t *testing.T) {
	chip, r, h := newRadio(t)

	chip.Preamble()
	if err := r.Execute(si4707.NewSameInterruptCheck(true, false, false)); err != nil {
		t.Fatal(err)
	}
	if r.SameTimeout.Equal(si4707.Never) {
		t.Fatal("preamble did not arm the SAME timeout")
	}

	for i := 0; i < 3; i++ {
		chip.Header(header, 3)
		if err := r.Execute(si4707.NewSameInterruptCheck(true, false, false)); err != nil {
			t.Fatalf("header %d: %v", i, err)
		}
	}
	if len(r.SameMessages) != 3 || r.SameMessages[2].Symbols != header {
		t.Fatalf("SameMessages = %+v", r.SameMessages)
	}

	if err := r.Execute(si4707.NewSameInterruptCheck(false, true, true)); err != nil {
		t.Fatal(err)
	}
	ev, ok := h.last().(si4707.SAMEMessageReceived)
	if !ok {
		t.Fatalf("last event = %#v", h.last())
	}
	if ev.Message.Event != "SVR" || ev.Message.Station != "KEWX/NWS" || ev.Message.Repetitions != 3 {
		t.Fatalf("message = %+v", ev.Message)
	}
	if !r.SameTimeout.Equal(si4707.Never) || len(r.SameMessages) != 0 {
		t.Fatal("dispatch did not reset reassembly")
	}
}

func TestToneOnOff(t *testing.T) {
	chip, r, h := newRadio(t)
	chip.Tone(true)
	if err := r.Execute(si4707.NewAlertToneCheck(true)); err != nil {
		t.Fatal(err)
	}
	if ev, ok := h.last().(si4707.AlertToneEvent); !ok || !ev.On {
		t.Fatalf("event = %#v", h.last())
	}
	chip.Tone(false)
	if err := r.Execute(si4707.NewAlertToneCheck(true)); err != nil {
		t.Fatal(err)
	}
	if ev, ok := h.last().(si4707.AlertToneEvent); !ok || ev.On {
		t.Fatalf("event = %#v", h.last())
	}
	if len(h.resub) != 2 {
		t.Fatalf("resubmitted %d, want 2", len(h.resub))
	}
}

func TestIRQSignalsOnInterrupt(t *testing.T) {
	chip, _, _ := newRadio(t)
	select {
	case <-chip.IRQ():
	default:
	}
	chip.EndOfMessage()
	select {
	case <-chip.IRQ():
	default:
		t.Fatal("no IRQ after EOM")
	}
}

func TestPatchStreamingCounted(t *testing.T) {
	chip := simchip.New(si4707.AddressDefault)
	chip.SetPatchID(0xBEEF)
	r := si4707.NewRadio(si4707.NewI2CBus(chip, 0), nil, nil)

	blob := compress(t, []byte{0x15, 1, 2, 3, 4, 5, 6, 7, 0x16, 8, 9})
	pu, err := si4707.NewPatchedPowerUp(si4707.DefaultPowerUp(), blob, 0xBEEF, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Execute(pu); err != nil {
		t.Fatalf("patched power up: %v", err)
	}
	if chip.PatchBytes() != 11 {
		t.Fatalf("patch bytes = %d", chip.PatchBytes())
	}
	if r.Revision == nil || r.Revision.PatchID != 0xBEEF {
		t.Fatalf("revision = %+v", r.Revision)
	}
}

func compress(t *testing.T, img []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(img); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
