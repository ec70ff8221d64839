package si4707

import (
	"time"

	"tinygo.org/x/drivers"
)

// Bus is the byte-level transport to the chip.
type Bus interface {
	// Write sends a command opcode followed by its argument bytes.
	Write(opcode byte, payload []byte) error
	// ReadBytes reads n response bytes, status byte included.
	ReadBytes(n int) ([]byte, error)
	// WaitReady blocks until the chip reports CTS and returns that status.
	WaitReady() (Status, error)
}

// I2CBus implements Bus on a tinygo drivers.I2C.
type I2CBus struct {
	i2c  drivers.I2C
	addr uint16

	// PollInterval is the gap between CTS reads.
	PollInterval time.Duration
	// ReadyTimeout bounds one WaitReady call.
	ReadyTimeout time.Duration

	w [8]byte
	r [respSAMEStatusLen]byte
}

// NewI2CBus binds the chip at addr (AddressDefault when 0).
func NewI2CBus(i2c drivers.I2C, addr uint16) *I2CBus {
	if addr == 0 {
		addr = AddressDefault
	}
	return &I2CBus{
		i2c:          i2c,
		addr:         addr,
		PollInterval: 500 * time.Microsecond,
		ReadyTimeout: time.Second,
	}
}

func (b *I2CBus) Address() uint16 { return b.addr }

func (b *I2CBus) Write(opcode byte, payload []byte) error {
	w := b.w[:0]
	if len(payload)+1 > len(b.w) {
		w = make([]byte, 0, len(payload)+1)
	}
	w = append(w, opcode)
	w = append(w, payload...)
	return b.i2c.Tx(b.addr, w, nil)
}

func (b *I2CBus) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	r := b.r[:]
	if n > len(r) {
		r = make([]byte, n)
	}
	r = r[:n]
	if err := b.i2c.Tx(b.addr, nil, r); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r)
	return out, nil
}

func (b *I2CBus) WaitReady() (Status, error) {
	var s [1]byte
	polls := 0
	deadline := time.Now().Add(b.ReadyTimeout)
	for {
		if err := b.i2c.Tx(b.addr, nil, s[:]); err != nil {
			return 0, err
		}
		polls++
		st := Status(s[0])
		if st.Clear() {
			return st, nil
		}
		if !time.Now().Before(deadline) {
			return st, &TimeoutError{Op: "CTS", Waits: polls}
		}
		if b.PollInterval > 0 {
			time.Sleep(b.PollInterval)
		}
	}
}
