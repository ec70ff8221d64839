package receiver

import (
	"context"
	"sync/atomic"
	"time"
)

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin is an input that can call a handler from interrupt context.
type IRQPin interface {
	Get() bool
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// irqWorker turns falling edges on the active-low INT line into events
// for the service loop. The ISR side never blocks.
type irqWorker struct {
	pin      IRQPin
	debounce time.Duration

	isrQ chan bool
	outQ chan time.Time

	lastEvent time.Time
	drops     atomic.Uint32
}

func newIRQWorker(pin IRQPin, debounce time.Duration) *irqWorker {
	return &irqWorker{
		pin:      pin,
		debounce: debounce,
		isrQ:     make(chan bool, 16),
		outQ:     make(chan time.Time, 4),
	}
}

func (w *irqWorker) start(ctx context.Context) error {
	handler := func() {
		l := w.pin.Get()
		select {
		case w.isrQ <- l:
		default:
			w.drops.Add(1)
		}
	}
	if err := w.pin.SetIRQ(EdgeFalling, handler); err != nil {
		return err
	}
	go func() {
		defer func() { _ = w.pin.ClearIRQ() }()
		for {
			select {
			case <-ctx.Done():
				return
			case level := <-w.isrQ:
				w.handleISR(level, time.Now())
			}
		}
	}()
	return nil
}

func (w *irqWorker) handleISR(level bool, now time.Time) {
	// INT is active low; a high read means the edge was a glitch.
	if level {
		return
	}
	if !w.lastEvent.IsZero() && now.Sub(w.lastEvent) < w.debounce {
		return
	}
	w.lastEvent = now
	select {
	case w.outQ <- now:
	default:
		// loop already has one pending
	}
}

func (w *irqWorker) events() <-chan time.Time { return w.outQ }

func (w *irqWorker) ISRDrops() uint32 { return w.drops.Load() }
