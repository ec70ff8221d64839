package platform

import (
	"context"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"nwrcode-go/drivers/si4707/simchip"
	"nwrcode-go/services/receiver"
)

// Sim backs the receiver with the in-process chip model. Every bus name
// resolves to the same chip and any non-empty pin name to its INT line.
type Sim struct {
	Chip *simchip.Chip
}

// NewSim returns a Sim around a fresh chip answering at addr.
func NewSim(addr uint16) *Sim {
	c := simchip.New(addr)
	c.BusyReads = 1
	c.STCAfter = 2
	return &Sim{Chip: c}
}

func (s *Sim) OpenI2C(string) (drivers.I2C, error) { return s.Chip, nil }

func (s *Sim) OpenIRQ(name string) (receiver.IRQPin, error) {
	if name == "" {
		return nil, nil
	}
	return &simPin{chip: s.Chip}, nil
}

// simPin forwards the chip's IRQ signal to the handler. The line is
// modelled as a pulse, so it always reads low inside the handler.
type simPin struct {
	chip *simchip.Chip

	mu   sync.Mutex
	stop chan struct{}
}

func (p *simPin) Get() bool { return false }

func (p *simPin) SetIRQ(_ receiver.Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
	}
	stop := make(chan struct{})
	p.stop = stop
	irq := p.chip.IRQ()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-irq:
				handler()
			}
		}
	}()
	return nil
}

func (p *simPin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}

// PlayAlert drives one complete broadcast into the chip: the attention
// tone, then preamble and three header bursts, then the end of message.
// gap separates each step.
func (s *Sim) PlayAlert(ctx context.Context, header string, gap time.Duration) error {
	steps := []func(){
		func() { s.Chip.Tone(true) },
		func() { s.Chip.Tone(false) },
		s.Chip.Preamble,
		func() { s.Chip.Header(header, 3) },
		func() { s.Chip.Header(header, 3) },
		func() { s.Chip.Header(header, 3) },
		s.Chip.EndOfMessage,
	}
	t := time.NewTimer(gap)
	defer t.Stop()
	for _, step := range steps {
		step()
		t.Reset(gap)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
