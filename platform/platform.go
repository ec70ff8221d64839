// Package platform opens the I2C bus and INT pin the receiver runs on.
// Default picks the hardware backend for the build target; Sim wraps the
// in-process chip model.
package platform

import (
	"errors"

	"nwrcode-go/services/receiver"
)

// ErrNoSuchPin is returned when the IRQ pin name does not resolve.
var ErrNoSuchPin = errors.New("platform: no such pin")

var (
	_ receiver.Platform = (*Sim)(nil)
	_ receiver.IRQPin   = (*simPin)(nil)
)
