package si4707

import "math"

// Byte layout helpers. Responses are indexed from the status byte, so the
// offsets used by callers match the datasheet's RESPn numbering.

type flagBit struct {
	on  bool
	off uint8
}

func bit(on bool, off uint8) flagBit { return flagBit{on: on, off: off} }

// packFlags builds a control byte from booleans at fixed bit offsets.
func packFlags(bits ...flagBit) byte {
	var b byte
	for _, f := range bits {
		if f.on {
			b |= 1 << f.off
		}
	}
	return b
}

func be16(b []byte, off int) uint16 {
	return uint16(b[off])<<8 | uint16(b[off+1])
}

func putBE16(b []byte, off int, v uint16) {
	b[off] = byte(v >> 8)
	b[off+1] = byte(v)
}

func s8(b []byte, off int) int8 { return int8(b[off]) }

func ackByte(ack bool) byte {
	if ack {
		return 1
	}
	return 0
}

// DecodeConfidence unpacks the eight 2-bit confidence levels of a
// WB_SAME_STATUS response. region starts at RESP4; symbol i lives in byte
// (7-i)/4 at bit offset (i%4)*2.
func DecodeConfidence(region []byte) [sameChunkLen]uint8 {
	var c [sameChunkLen]uint8
	for i := 0; i < sameChunkLen; i++ {
		c[i] = region[(7-i)/4] >> ((i % 4) * 2) & 0x3
	}
	return c
}

// EncodeConfidence is the inverse of DecodeConfidence. Levels above 3 are
// truncated to their low two bits.
func EncodeConfidence(levels [sameChunkLen]uint8) [2]byte {
	var region [2]byte
	for i := 0; i < sameChunkLen; i++ {
		region[(7-i)/4] |= (levels[i] & 0x3) << ((i % 4) * 2)
	}
	return region
}

// FrequencyCode converts MHz to the chip's 2.5 kHz tuning units.
func FrequencyCode(mhz float64) uint16 {
	return uint16(math.Round(mhz * freqScale))
}

// FrequencyMHz converts a tuning code back to MHz.
func FrequencyMHz(code uint16) float64 { return float64(code) / freqScale }

// Channels lists the seven NOAA weather radio frequencies in MHz.
func Channels() []float64 {
	out := make([]float64, 0, 7)
	for c := uint16(freqMinCode); c <= freqMaxCode; c += 10 {
		out = append(out, FrequencyMHz(c))
	}
	return out
}

// SAMEStatus is the decoded form of one WB_SAME_STATUS response.
type SAMEStatus struct {
	EOMDET bool `json:"eomdet"`
	SOMDET bool `json:"somdet"`
	PREDET bool `json:"predet"`
	HDRRDY bool `json:"hdrrdy"`

	State      uint8               `json:"state"`
	MsgLen     int                 `json:"msglen"`
	Confidence [sameChunkLen]uint8 `json:"confidence"`
	Message    [sameChunkLen]byte  `json:"message"`
}

func decodeSAMEStatus(b []byte) SAMEStatus {
	var st SAMEStatus
	st.EOMDET = b[1]&sameEOMDET != 0
	st.SOMDET = b[1]&sameSOMDET != 0
	st.PREDET = b[1]&samePREDET != 0
	st.HDRRDY = b[1]&sameHDRRDY != 0
	st.State = b[2]
	st.MsgLen = int(b[3])
	st.Confidence = DecodeConfidence(b[sameConfidenceOffset:sameMessageOffset])
	copy(st.Message[:], b[sameMessageOffset:respSAMEStatusLen])
	return st
}

func (s SAMEStatus) flags() string {
	out := ""
	for _, f := range []struct {
		on   bool
		name string
	}{{s.EOMDET, "EOMDET"}, {s.SOMDET, "SOMDET"}, {s.PREDET, "PREDET"}, {s.HDRRDY, "HDRRDY"}} {
		if f.on {
			out += f.name + " "
		}
	}
	return out
}
