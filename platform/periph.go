//go:build !rp2040 && !rp2350

package platform

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"nwrcode-go/services/receiver"
)

// edgeWait bounds each WaitForEdge so ClearIRQ can stop the watcher.
const edgeWait = 100 * time.Millisecond

var (
	initOnce sync.Once
	initErr  error
)

func hostInit() error {
	initOnce.Do(func() { _, initErr = host.Init() })
	return initErr
}

// Periph opens Linux I2C buses and GPIOs through periph.io.
type Periph struct{}

var (
	_ receiver.Platform = Periph{}
	_ receiver.IRQPin   = (*periphPin)(nil)
)

// Default returns the periph backend.
func Default() receiver.Platform { return Periph{} }

// OpenI2C opens the named bus ("" is the first one registered). periph's
// i2c.Bus already has the drivers.I2C Tx shape.
func (Periph) OpenI2C(name string) (drivers.I2C, error) {
	if err := hostInit(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (Periph) OpenIRQ(name string) (receiver.IRQPin, error) {
	if name == "" {
		return nil, nil
	}
	if err := hostInit(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, ErrNoSuchPin
	}
	return &periphPin{p: p}, nil
}

type periphPin struct {
	p gpio.PinIO

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (p *periphPin) Get() bool { return p.p.Read() == gpio.High }

// SetIRQ arms edge detection and calls handler from a watcher goroutine.
func (p *periphPin) SetIRQ(edge receiver.Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		p.halt()
	}
	if err := p.p.In(gpio.PullUp, toEdge(edge)); err != nil {
		return err
	}
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p.p.WaitForEdge(edgeWait) {
				handler()
			}
		}
	}()
	return nil
}

func (p *periphPin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return nil
	}
	p.halt()
	return p.p.In(gpio.PullUp, gpio.NoEdge)
}

// halt stops the watcher. Caller holds mu.
func (p *periphPin) halt() {
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}

func toEdge(e receiver.Edge) gpio.Edge {
	switch e {
	case receiver.EdgeRising:
		return gpio.RisingEdge
	case receiver.EdgeFalling:
		return gpio.FallingEdge
	case receiver.EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}
