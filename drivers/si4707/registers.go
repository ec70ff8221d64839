// Package si4707 provides constants for command opcodes and status bitfields
// used in the operation of the Si4707 weather band receiver.
package si4707

const (
	// 7-bit I2C address with SEN tied low. SEN high selects AddressAlt.
	AddressDefault = 0x11
	AddressAlt     = 0x63

	// --- Command opcodes ---
	opPowerUp       = 0x01
	opGetRevision   = 0x10
	opPowerDown     = 0x11
	opSetProperty   = 0x12
	opGetProperty   = 0x13
	opGetIntStatus  = 0x14
	opTuneFrequency = 0x50
	opTuneStatus    = 0x52
	opRSQStatus     = 0x53
	opSAMEStatus    = 0x54
	opASQStatus     = 0x55

	// --- POWER_UP ARG1 bit offsets ---
	pupCTSIEN  = 7
	pupGPO2OEN = 6
	pupPatch   = 5
	pupXOSCEN  = 4

	// POWER_UP function codes.
	FuncWBReceive = 3
	FuncQueryLib  = 15

	// POWER_UP ARG2 operating modes.
	OpModeAnalog         = 0x05
	OpModeDigital        = 0x0B
	OpModeDigitalOnly    = 0xB0
	OpModeAnalogDigital  = 0xB5
	respPowerUpQueryLen  = 8
	respGetRevisionLen   = 9
	respGetPropertyLen   = 4
	respTuneStatusLen    = 6
	respRSQStatusLen     = 8
	respASQStatusLen     = 3
	respSAMEStatusLen    = 14
	sameChunkLen         = 8
	sameConfidenceOffset = 4
	sameMessageOffset    = 6

	// --- WB_SAME_STATUS ARG1 bits ---
	sameArgClearBuf = 0
	sameArgIntAck   = 1

	// --- WB_SAME_STATUS RESP1 flags ---
	sameEOMDET = 1 << 3
	sameSOMDET = 1 << 2
	samePREDET = 1 << 1
	sameHDRRDY = 1 << 0

	// --- WB_RSQ_STATUS RESP1 / RESP2 ---
	rsqSNRHInt  = 1 << 3
	rsqSNRLInt  = 1 << 2
	rsqRSSIHInt = 1 << 1
	rsqRSSILInt = 1 << 0
	rsqAFCRail  = 1 << 1
	rsqValid    = 1 << 0

	// --- WB_ASQ_STATUS RESP1 ---
	asqAlertOnInt  = 1 << 0
	asqAlertOffInt = 1 << 1

	// Tuning range in kHz×2.5 units (MHz × 400).
	freqMinCode = 64960 // 162.400 MHz
	freqMaxCode = 65020 // 162.550 MHz
	freqScale   = 400
)

// Status is the byte the chip returns first in every response.
type Status uint8

const (
	StatusSTCInt  Status = 1 << 0
	StatusASQInt  Status = 1 << 1
	StatusSAMEInt Status = 1 << 2
	StatusRSQInt  Status = 1 << 3
	StatusErr     Status = 1 << 6
	StatusCTS     Status = 1 << 7
)

func (s Status) Has(flag Status) bool { return s&flag != 0 }

// Clear reports whether the chip will accept the next command.
func (s Status) Clear() bool { return s.Has(StatusCTS) }

// SeekTuneComplete reports STCINT.
func (s Status) SeekTuneComplete() bool { return s.Has(StatusSTCInt) }

// Pending reports whether any interrupt source bit is set.
func (s Status) Pending() bool {
	return s&(StatusSTCInt|StatusASQInt|StatusSAMEInt|StatusRSQInt) != 0
}

func (s Status) String() string {
	out := ""
	add := func(on bool, name string) {
		if !on {
			return
		}
		if out != "" {
			out += "|"
		}
		out += name
	}
	add(s.Has(StatusCTS), "CTS")
	add(s.Has(StatusErr), "ERR")
	add(s.Has(StatusRSQInt), "RSQINT")
	add(s.Has(StatusSAMEInt), "SAMEINT")
	add(s.Has(StatusASQInt), "ASQINT")
	add(s.Has(StatusSTCInt), "STCINT")
	if out == "" {
		return "0"
	}
	return out
}
