//go:build !rp2040 && !rp2350

package relay

import (
	"fmt"

	"go.bug.st/serial"
)

func init() { defaultOpen = OpenSerial }

// OpenSerial opens path as 8N1.
func OpenSerial(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("relay: open %s: %w", path, err)
	}
	return p, nil
}
