package types

import "nwrcode-go/errcode"

// ------------------------
// Control requests: nwr/control/<verb>
// ------------------------

type TuneRequest struct {
	Frequency float64 `json:"frequency"` // MHz
}

type PropertySet struct {
	Name  string `json:"name"`
	Value uint16 `json:"value"`
}

type PropertyGet struct {
	Name string `json:"name"`
}

type PowerUpRequest struct {
	CrystalOscillator *bool  `json:"xosc,omitempty"`
	OpMode            uint8  `json:"opmode,omitempty"`
	Function          uint8  `json:"function,omitempty"`
	Patch             []byte `json:"patch,omitempty"`
	PatchID           uint16 `json:"patch_id,omitempty"`
}

// Reply is sent on a request's ReplyTo once the command has run.
type Reply struct {
	OK    bool         `json:"ok"`
	Value any          `json:"value,omitempty"`
	Error string       `json:"error,omitempty"`
	Code  errcode.Code `json:"code,omitempty"`
}

// ------------------------
// Retained state: nwr/state/<name>
// ------------------------

type PowerState struct {
	On   bool  `json:"on"`
	TsMs int64 `json:"ts_ms"`
}

type TuneState struct {
	FrequencyMHz float64 `json:"frequency_mhz"`
	RSSI         int8    `json:"rssi"`
	SNR          int8    `json:"snr"`
	TsMs         int64   `json:"ts_ms"`
}

// ------------------------
// Events: nwr/event/<kind>
// ------------------------

// EventEnvelope wraps a receiver event for publication.
type EventEnvelope struct {
	Kind  string `json:"kind"`
	Event any    `json:"event"`
	TsMs  int64  `json:"ts_ms"`
}
