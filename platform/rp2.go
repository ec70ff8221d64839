//go:build rp2040 || rp2350

package platform

import (
	"errors"
	"machine"
	"strconv"
	"strings"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"nwrcode-go/services/receiver"
	"nwrcode-go/services/relay"
)

// RP2 opens the Pico's I2C controllers and GPIOs.
type RP2 struct{}

var (
	_ receiver.Platform = RP2{}
	_ receiver.IRQPin   = (*rp2Pin)(nil)
)

// Default returns the RP2 backend.
func Default() receiver.Platform { return RP2{} }

// OpenI2C configures i2c0 or i2c1 on board-default pins at 400 kHz.
func (RP2) OpenI2C(name string) (drivers.I2C, error) {
	var cfg machine.I2CConfig
	var b *machine.I2C
	switch name {
	case "", "i2c0":
		b = machine.I2C0
		cfg = machine.I2CConfig{Frequency: 400 * machine.KHz, SDA: machine.I2C0_SDA_PIN, SCL: machine.I2C0_SCL_PIN}
	case "i2c1":
		b = machine.I2C1
		cfg = machine.I2CConfig{Frequency: 400 * machine.KHz, SDA: machine.I2C1_SDA_PIN, SCL: machine.I2C1_SCL_PIN}
	default:
		return nil, errors.New("platform: unknown i2c bus " + name)
	}
	if err := b.Configure(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

// OpenIRQ accepts "GP<n>" or "<n>" for the user GPIOs GP0..GP28.
func (RP2) OpenIRQ(name string) (receiver.IRQPin, error) {
	if name == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(name), "GP"))
	if err != nil || n < 0 || n > 28 {
		return nil, ErrNoSuchPin
	}
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &rp2Pin{p: p}, nil
}

type rp2Pin struct{ p machine.Pin }

func (r *rp2Pin) Get() bool { return r.p.Get() }

func (r *rp2Pin) SetIRQ(edge receiver.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e receiver.Edge) machine.PinChange {
	switch e {
	case receiver.EdgeRising:
		return machine.PinRising
	case receiver.EdgeFalling:
		return machine.PinFalling
	case receiver.EdgeBoth:
		return machine.PinRising | machine.PinFalling
	default:
		var zero machine.PinChange
		return zero
	}
}

// OpenUART is a relay.OpenFunc over uartx. path is "uart0" or "uart1".
func OpenUART(path string, baud int) (relay.Port, error) {
	var u *uartx.UART
	switch path {
	case "uart0":
		u = uartx.UART0
	case "uart1":
		u = uartx.UART1
	default:
		return nil, errors.New("platform: unknown uart " + path)
	}
	if err := u.Configure(uartx.UARTConfig{BaudRate: uint32(baud)}); err != nil {
		return nil, err
	}
	if err := u.SetFormat(8, 1, uartx.ParityNone); err != nil {
		return nil, err
	}
	return uartPort{u}, nil
}

type uartPort struct{ u *uartx.UART }

func (p uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (uartPort) Close() error                  { return nil }
