// Package simchip is a register-level model of an Si4707 behind an I2C
// bus. It implements tinygo.org/x/drivers.I2C and lets tests and the demo
// program inject preambles, SAME headers, EOMs and the alert tone.
package simchip

import (
	"errors"
	"sync"
)

// ErrNACK is returned for transfers to any other address.
var ErrNACK = errors.New("simchip: address not acknowledged")

const (
	stSTC  = 1 << 0
	stASQ  = 1 << 1
	stSAME = 1 << 2
	stRSQ  = 1 << 3
	stERR  = 1 << 6
	stCTS  = 1 << 7

	sameHDRRDY = 1 << 0
	samePREDET = 1 << 1
	sameSOMDET = 1 << 2
	sameEOMDET = 1 << 3
)

// Chip is the simulated receiver. The zero value is not usable; call New.
type Chip struct {
	mu   sync.Mutex
	addr uint16

	powered  bool
	patching bool
	patchLen int
	patchID  uint16

	props map[uint16]uint16
	ints  byte
	resp  []byte
	err   bool
	// busy is the number of status reads that still report !CTS.
	busy int

	// BusyReads is how many status reads follow each command before CTS.
	BusyReads int
	// STCAfter is how many GET_INT_STATUS calls a tune takes.
	STCAfter int
	stcLeft  int

	tuned     uint16
	tuneError uint16
	rssi, snr int8

	sameFlags byte
	sameState byte
	sameMsg   []byte
	sameConf  []uint8

	toneOn      bool
	toneHistory byte

	irq    chan struct{}
	writes int
}

// New returns a powered-down chip answering at addr.
func New(addr uint16) *Chip {
	return &Chip{
		addr:  addr,
		props: map[uint16]uint16{},
		rssi:  40,
		snr:   20,
		irq:   make(chan struct{}, 1),
	}
}

// IRQ signals whenever an interrupt bit becomes set, like the INT pin.
func (c *Chip) IRQ() <-chan struct{} { return c.irq }

// Tx implements drivers.I2C. A write is a command; a read returns the
// current response, status byte first.
func (c *Chip) Tx(addr uint16, w, r []byte) error {
	if addr != c.addr {
		return ErrNACK
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(w) > 0 {
		c.writes++
		c.command(w[0], w[1:])
	}
	if len(r) > 0 {
		c.read(r)
	}
	return nil
}

func (c *Chip) status() byte {
	st := c.ints
	if c.err {
		st |= stERR
	}
	if c.busy > 0 {
		c.busy--
		return st
	}
	return st | stCTS
}

func (c *Chip) read(r []byte) {
	for i := range r {
		r[i] = 0
	}
	r[0] = c.status()
	if len(r) > 1 && len(c.resp) > 1 {
		copy(r[1:], c.resp[1:])
	}
}

func (c *Chip) raise(bits byte) {
	c.ints |= bits
	select {
	case c.irq <- struct{}{}:
	default:
	}
}

func (c *Chip) command(op byte, a []byte) {
	c.err = false
	c.resp = nil
	c.busy = c.BusyReads

	if c.patching && !(op == 0x10 && len(a) == 0) {
		c.patchLen += 1 + len(a)
		return
	}
	if !c.powered && op != 0x01 {
		c.err = true
		return
	}

	switch op {
	case 0x01: // POWER_UP
		if len(a) < 2 {
			c.err = true
			return
		}
		c.powered = true
		c.patching = a[0]&(1<<5) != 0
		c.patchLen = 0
		if a[0]&0x0F == 15 {
			c.resp = []byte{0, 7, '2', '0', 0, 0, 'B', 5}
		}
	case 0x10: // GET_REV
		c.patching = false
		c.resp = []byte{0, 7, '2', '0', byte(c.patchID >> 8), byte(c.patchID), '2', '0', 'B'}
	case 0x11: // POWER_DOWN
		c.powered = false
		c.ints = 0
	case 0x12: // SET_PROPERTY
		if len(a) < 5 {
			c.err = true
			return
		}
		c.props[be16(a[1:])] = be16(a[3:])
	case 0x13: // GET_PROPERTY
		if len(a) < 3 {
			c.err = true
			return
		}
		v := c.props[be16(a[1:])]
		c.resp = []byte{0, 0, byte(v >> 8), byte(v)}
	case 0x14: // GET_INT_STATUS
		if c.stcLeft > 0 {
			c.stcLeft--
			if c.stcLeft == 0 {
				c.raise(stSTC)
			}
		}
	case 0x50: // WB_TUNE_FREQ
		if len(a) < 3 {
			c.err = true
			return
		}
		c.tuned = be16(a[1:])
		c.ints &^= stSTC
		c.stcLeft = c.STCAfter
		if c.stcLeft == 0 {
			c.raise(stSTC)
		}
	case 0x52: // WB_TUNE_STATUS
		if len(a) > 0 && a[0]&1 != 0 {
			c.ints &^= stSTC
		}
		f := c.tuned + c.tuneError
		c.resp = []byte{0, 0, byte(f >> 8), byte(f), byte(c.rssi), byte(c.snr)}
	case 0x53: // WB_RSQ_STATUS
		if len(a) > 0 && a[0]&1 != 0 {
			c.ints &^= stRSQ
		}
		var valid byte
		if c.rssi >= 20 && c.snr >= 3 {
			valid = 1
		}
		c.resp = []byte{0, 0, valid, 0, byte(c.rssi), byte(c.snr), 0, 0}
	case 0x54: // WB_SAME_STATUS
		c.sameStatus(a)
	case 0x55: // WB_ASQ_STATUS
		var tone byte
		if c.toneOn {
			tone = 1
		}
		c.resp = []byte{0, c.toneHistory, tone}
		if len(a) > 0 && a[0]&1 != 0 {
			c.ints &^= stASQ
			c.toneHistory = 0
		}
	default:
		c.err = true
	}
}

// ARG1 bit 0 clears the buffer, bit 1 acknowledges the interrupt.
func (c *Chip) sameStatus(a []byte) {
	if len(a) < 2 {
		c.err = true
		return
	}
	clear, ack := a[0]&1 != 0, a[0]&2 != 0
	addr := int(a[1])

	resp := make([]byte, 14)
	resp[1] = c.sameFlags
	resp[2] = c.sameState
	resp[3] = byte(len(c.sameMsg))
	for i := 0; i < 8; i++ {
		p := addr + i
		if p >= len(c.sameMsg) {
			break
		}
		resp[6+i] = c.sameMsg[p]
		resp[4+(7-i)/4] |= (c.sameConf[p] & 3) << ((i % 4) * 2)
	}
	c.resp = resp

	if ack {
		c.sameFlags = 0
		c.ints &^= stSAME
	}
	if clear {
		c.sameMsg, c.sameConf = nil, nil
		c.sameState = 0
	}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

// ---------------- scenario injection ----------------

// SetPatchID sets the patch ID GET_REV reports.
func (c *Chip) SetPatchID(id uint16) {
	c.mu.Lock()
	c.patchID = id
	c.mu.Unlock()
}

// SetSignal sets the RSSI and SNR the chip reports.
func (c *Chip) SetSignal(rssi, snr int8) {
	c.mu.Lock()
	c.rssi, c.snr = rssi, snr
	c.mu.Unlock()
}

// SetTuneError makes the chip settle off the requested frequency.
func (c *Chip) SetTuneError(units uint16) {
	c.mu.Lock()
	c.tuneError = units
	c.mu.Unlock()
}

// Preamble flags PREDET and raises SAMEINT.
func (c *Chip) Preamble() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sameFlags |= samePREDET
	c.sameState = 1
	c.raise(stSAME)
}

// Header loads one received header repetition with a uniform confidence.
func (c *Chip) Header(text string, confidence uint8) {
	conf := make([]uint8, len(text))
	for i := range conf {
		conf[i] = confidence
	}
	c.HeaderWithConfidence(text, conf)
}

// HeaderWithConfidence loads one header repetition.
func (c *Chip) HeaderWithConfidence(text string, conf []uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sameMsg = []byte(text)
	c.sameConf = append([]uint8(nil), conf...)
	for len(c.sameConf) < len(c.sameMsg) {
		c.sameConf = append(c.sameConf, 0)
	}
	c.sameFlags |= sameSOMDET | sameHDRRDY
	c.sameState = 3
	c.raise(stSAME)
}

// EndOfMessage flags EOMDET and raises SAMEINT.
func (c *Chip) EndOfMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sameFlags |= sameEOMDET
	c.sameState = 0
	c.raise(stSAME)
}

// Tone switches the 1050 Hz detector and raises ASQINT.
func (c *Chip) Tone(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on == c.toneOn {
		return
	}
	c.toneOn = on
	if on {
		c.toneHistory |= 1 << 0
	} else {
		c.toneHistory |= 1 << 1
	}
	c.raise(stASQ)
}

// ---------------- inspection ----------------

func (c *Chip) Powered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powered
}

func (c *Chip) Property(code uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props[code]
}

// Tuned returns the last tune code written.
func (c *Chip) Tuned() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tuned
}

// PatchBytes is the number of patch bytes streamed since the last POWER_UP.
func (c *Chip) PatchBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patchLen
}

// Writes counts command transfers.
func (c *Chip) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}
