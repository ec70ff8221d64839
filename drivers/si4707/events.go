package si4707

import (
	"time"

	"nwrcode-go/same"
)

// Event is a user-level notification produced by a command.
type Event interface {
	EventKind() string
}

// Event kinds, also used as the last topic token by the receiver service.
const (
	KindPower        = "power"
	KindReadyToTune  = "ready_to_tune"
	KindSAMEHeader   = "same_header"
	KindEndOfMessage = "end_of_message"
	KindSAMEMessage  = "same_message"
	KindSAMEInvalid  = "same_invalid"
	KindAlertTone    = "alert_tone"
)

type RadioPowerEvent struct {
	On bool `json:"on"`
}

// ReadyToTuneEvent fires once the crystal oscillator has settled.
type ReadyToTuneEvent struct{}

// SAMEHeaderReceived carries every repetition collected so far.
type SAMEHeaderReceived struct {
	Headers []same.Reception `json:"headers"`
}

type EndOfMessage struct{}

type SAMEMessageReceived struct {
	Message same.Message `json:"message"`
}

// InvalidSAMEMessageReceived is emitted when the repetitions could not be
// decoded. It is expected chip output, not a fault.
type InvalidSAMEMessageReceived struct {
	Headers []same.Reception `json:"headers"`
	Reason  string           `json:"reason"`
}

// AlertToneEvent reports the 1050 Hz alert tone turning on or off.
type AlertToneEvent struct {
	On       bool          `json:"on"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (RadioPowerEvent) EventKind() string            { return KindPower }
func (ReadyToTuneEvent) EventKind() string           { return KindReadyToTune }
func (SAMEHeaderReceived) EventKind() string         { return KindSAMEHeader }
func (EndOfMessage) EventKind() string               { return KindEndOfMessage }
func (SAMEMessageReceived) EventKind() string        { return KindSAMEMessage }
func (InvalidSAMEMessageReceived) EventKind() string { return KindSAMEInvalid }
func (AlertToneEvent) EventKind() string             { return KindAlertTone }
