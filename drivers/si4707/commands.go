package si4707

import (
	"fmt"
	"time"
)

// xoscSettle is how long the crystal oscillator needs after POWER_UP.
const xoscSettle = 500 * time.Millisecond

// PowerUpConfig holds the POWER_UP arguments.
type PowerUpConfig struct {
	CTSInterrupt      bool
	GPO2Output        bool
	CrystalOscillator bool
	Function          uint8
	OpMode            uint8
}

// DefaultPowerUp is WB receive with analog audio and the crystal enabled.
func DefaultPowerUp() PowerUpConfig {
	return PowerUpConfig{
		GPO2Output:        true,
		CrystalOscillator: true,
		Function:          FuncWBReceive,
		OpMode:            OpModeAnalog,
	}
}

func (c PowerUpConfig) validate() error {
	switch c.Function {
	case FuncWBReceive, FuncQueryLib:
	default:
		return &ValidationError{Op: "POWER_UP", Field: "function", Value: c.Function, Reason: "must be 3 or 15"}
	}
	switch c.OpMode {
	case OpModeAnalog, OpModeDigital, OpModeDigitalOnly, OpModeAnalogDigital:
	default:
		return &ValidationError{Op: "POWER_UP", Field: "opmode", Value: fmt.Sprintf("0x%02X", c.OpMode)}
	}
	return nil
}

// ---------------- POWER_UP ----------------

type PowerUp struct {
	transaction
	cfg   PowerUpConfig
	patch *patchLoader
}

func NewPowerUp(cfg PowerUpConfig) (*PowerUp, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &PowerUp{transaction: newTransaction("POWER_UP", opPowerUp, PriorityPower), cfg: cfg}, nil
}

func (c *PowerUp) args() []byte {
	return []byte{
		packFlags(
			bit(c.cfg.CTSInterrupt, pupCTSIEN),
			bit(c.cfg.GPO2Output, pupGPO2OEN),
			bit(c.patch != nil, pupPatch),
			bit(c.cfg.CrystalOscillator, pupXOSCEN),
		) | c.cfg.Function&0x0F,
		c.cfg.OpMode,
	}
}

// Execute powers the receiver up. In query-library mode the value is a
// *PupRevision; with a patch it is the *Revision read after streaming.
func (c *PowerUp) Execute(r *Radio) error {
	return c.run(r, false, func() (any, error) {
		var res any
		if _, err := r.command(c.mnemonic, c.opcode, c.args()); err != nil {
			return nil, err
		}
		if c.patch != nil {
			rev, err := c.patch.load(r)
			if err != nil {
				return nil, err
			}
			res = rev
		}
		r.Power = true
		r.emit(RadioPowerEvent{On: true})

		if c.cfg.Function == FuncQueryLib {
			b, err := r.Bus.ReadBytes(respPowerUpQueryLen)
			if err != nil {
				return nil, busErr(c.mnemonic, err)
			}
			if len(b) < respPowerUpQueryLen {
				return nil, &BusError{Op: c.mnemonic, Err: errShortRead{want: respPowerUpQueryLen, got: len(b)}}
			}
			pr := decodePupRevision(b)
			r.PupRevision = &pr
			return &pr, nil
		}

		if c.cfg.CrystalOscillator {
			r.TuneAfter = r.now().Add(xoscSettle)
			r.scheduleDelayed(ReadyToTuneEvent{}, r.TuneAfter)
		} else {
			r.TuneAfter = time.Time{}
			r.emit(ReadyToTuneEvent{})
		}
		return res, nil
	})
}

func (c *PowerUp) String() string {
	s := fmt.Sprintf("func=%d opmode=0x%02X xosc=%t cts_int=%t gpo2=%t",
		c.cfg.Function, c.cfg.OpMode, c.cfg.CrystalOscillator, c.cfg.CTSInterrupt, c.cfg.GPO2Output)
	if c.patch != nil {
		s += fmt.Sprintf(" patch=%dB", len(c.patch.image))
	}
	return c.describe(s)
}

// ---------------- POWER_DOWN ----------------

type PowerDown struct{ transaction }

func NewPowerDown() *PowerDown {
	return &PowerDown{newTransaction("POWER_DOWN", opPowerDown, PriorityPower)}
}

func (c *PowerDown) Execute(r *Radio) error {
	return c.run(r, false, func() (any, error) {
		if _, err := r.command(c.mnemonic, c.opcode, nil); err != nil {
			return nil, err
		}
		r.Power = false
		r.SameTimeout = Never
		r.ToneStart = time.Time{}
		r.emit(RadioPowerEvent{On: false})
		return nil, nil
	})
}

func (c *PowerDown) String() string { return c.describe("") }

// ---------------- GET_REV ----------------

type GetRevision struct{ transaction }

func NewGetRevision() *GetRevision {
	return &GetRevision{newTransaction("GET_REV", opGetRevision, PriorityNormal)}
}

// Execute stores and returns the *Revision.
func (c *GetRevision) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) { return readRevision(r) })
}

func (c *GetRevision) String() string {
	if v, ok := c.result.(*Revision); ok {
		return c.describe(v.String())
	}
	return c.describe("")
}

// ---------------- SET_PROPERTY ----------------

type SetProperty struct {
	transaction
	Property *Property
}

// NewSetProperty fails when name is unknown or value is out of range.
func NewSetProperty(name string, value uint16) (*SetProperty, error) {
	p, err := NewProperty(name, value)
	if err != nil {
		return nil, err
	}
	if !p.Valid(value) {
		return nil, &ValidationError{Op: "SET_PROPERTY", Field: name, Value: fmt.Sprintf("0x%04X", value), Reason: "out of range"}
	}
	return &SetProperty{transaction: newTransaction("SET_PROPERTY", opSetProperty, PriorityNormal), Property: p}, nil
}

func (c *SetProperty) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		var a [5]byte
		putBE16(a[:], 1, c.Property.Code)
		putBE16(a[:], 3, c.Property.Value)
		if _, err := r.command(c.mnemonic, c.opcode, a[:]); err != nil {
			return nil, err
		}
		return c.Property.Value, nil
	})
}

func (c *SetProperty) String() string { return c.describe(c.Property.String()) }

// ---------------- GET_PROPERTY ----------------

type GetProperty struct {
	transaction
	Property *Property
}

func NewGetProperty(name string) (*GetProperty, error) {
	p, err := NewProperty(name, 0)
	if err != nil {
		return nil, err
	}
	return &GetProperty{transaction: newTransaction("GET_PROPERTY", opGetProperty, PriorityNormal), Property: p}, nil
}

// Execute returns the property value as uint16.
func (c *GetProperty) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		var a [3]byte
		putBE16(a[:], 1, c.Property.Code)
		b, err := r.query(c.mnemonic, c.opcode, a[:], respGetPropertyLen)
		if err != nil {
			return nil, err
		}
		c.Property.Value = be16(b, 2)
		return c.Property.Value, nil
	})
}

func (c *GetProperty) String() string { return c.describe(c.Property.String()) }

// ---------------- WB_TUNE_STATUS ----------------

// TuneStatusResult is the decoded WB_TUNE_STATUS response.
type TuneStatusResult struct {
	Code         uint16  `json:"code"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	RSSI         int8    `json:"rssi"`
	SNR          int8    `json:"snr"`
}

type TuneStatus struct {
	transaction
	AckSTC bool
	Status TuneStatusResult
}

func NewTuneStatus(ackSTC bool) *TuneStatus {
	return &TuneStatus{transaction: newTransaction("WB_TUNE_STATUS", opTuneStatus, PriorityNormal), AckSTC: ackSTC}
}

func (c *TuneStatus) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		b, err := r.query(c.mnemonic, c.opcode, []byte{ackByte(c.AckSTC)}, respTuneStatusLen)
		if err != nil {
			return nil, err
		}
		code := be16(b, 2)
		c.Status = TuneStatusResult{Code: code, FrequencyMHz: FrequencyMHz(code), RSSI: s8(b, 4), SNR: s8(b, 5)}
		return c.Status, nil
	})
}

func (c *TuneStatus) String() string {
	return c.describe(fmt.Sprintf("ack=%t freq=%.3f rssi=%d snr=%d",
		c.AckSTC, c.Status.FrequencyMHz, c.Status.RSSI, c.Status.SNR))
}

// ---------------- WB_RSQ_STATUS ----------------

// SignalQuality is the decoded WB_RSQ_STATUS response.
type SignalQuality struct {
	RSSI            int8 `json:"rssi"`
	ASNR            int8 `json:"asnr"`
	FrequencyOffset int8 `json:"freq_offset"`
	AFCRail         bool `json:"afc_rail"`
	Valid           bool `json:"valid"`
	SNRHigh         bool `json:"snr_high"`
	SNRLow          bool `json:"snr_low"`
	RSSIHigh        bool `json:"rssi_high"`
	RSSILow         bool `json:"rssi_low"`
}

type ReceivedSignalQualityCheck struct {
	transaction
	AckRSQ  bool
	Quality SignalQuality
}

func NewReceivedSignalQualityCheck(ack bool) *ReceivedSignalQualityCheck {
	return &ReceivedSignalQualityCheck{
		transaction: newTransaction("WB_RSQ_STATUS", opRSQStatus, PriorityInterrupt),
		AckRSQ:      ack,
	}
}

func (c *ReceivedSignalQualityCheck) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) {
		b, err := r.query(c.mnemonic, c.opcode, []byte{ackByte(c.AckRSQ)}, respRSQStatusLen)
		if err != nil {
			return nil, err
		}
		viol, valid := b[1], b[2]
		c.Quality = SignalQuality{
			RSSI:            s8(b, 4),
			ASNR:            s8(b, 5),
			FrequencyOffset: s8(b, 7),
			AFCRail:         valid&rsqAFCRail != 0,
			Valid:           valid&rsqValid != 0,
			SNRHigh:         viol&rsqSNRHInt != 0,
			SNRLow:          viol&rsqSNRLInt != 0,
			RSSIHigh:        viol&rsqRSSIHInt != 0,
			RSSILow:         viol&rsqRSSILInt != 0,
		}
		return c.Quality, nil
	})
}

func (c *ReceivedSignalQualityCheck) String() string {
	q := c.Quality
	return c.describe(fmt.Sprintf("rssi=%d asnr=%d offset=%d valid=%t afc_rail=%t",
		q.RSSI, q.ASNR, q.FrequencyOffset, q.Valid, q.AFCRail))
}

// ---------------- GET_INT_STATUS ----------------

type GetIntStatus struct{ transaction }

func NewGetIntStatus() *GetIntStatus {
	return &GetIntStatus{newTransaction("GET_INT_STATUS", opGetIntStatus, PriorityInterrupt)}
}

// Execute returns the Status byte.
func (c *GetIntStatus) Execute(r *Radio) error {
	return c.run(r, true, func() (any, error) { return r.CheckInterrupts() })
}

func (c *GetIntStatus) String() string {
	if st, ok := c.result.(Status); ok {
		return c.describe(st.String())
	}
	return c.describe("")
}
