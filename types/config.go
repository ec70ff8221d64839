package types

import "time"

// Configuration published on "config/<section>" by the config service.

type Config struct {
	Receiver  ReceiverConfig  `yaml:"receiver" json:"receiver"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat" json:"heartbeat"`
	Relay     RelayConfig     `yaml:"relay" json:"relay"`
	WSFeed    WSFeedConfig    `yaml:"wsfeed" json:"wsfeed"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

type ReceiverConfig struct {
	// I2CBus is a periph bus name ("" = first available) or "i2c0"/"i2c1"
	// on rp2.
	I2CBus  string `yaml:"i2c_bus" json:"i2c_bus"`
	Address uint16 `yaml:"address" json:"address"`
	// IRQPin names the GPIO wired to GPO2/INT. Empty means poll.
	IRQPin string `yaml:"irq_pin" json:"irq_pin"`

	Frequency         float64 `yaml:"frequency" json:"frequency"` // MHz, 0 = do not tune
	CrystalOscillator bool    `yaml:"xosc" json:"xosc"`
	OpMode            uint8   `yaml:"opmode" json:"opmode"`

	PatchFile string `yaml:"patch_file" json:"patch_file"`
	PatchID   uint16 `yaml:"patch_id" json:"patch_id"`

	Properties map[string]uint16 `yaml:"properties" json:"properties"`

	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	TunePolls    int           `yaml:"tune_polls" json:"tune_polls"`
	QueueLen     int           `yaml:"queue_len" json:"queue_len"`

	// Simulate runs against the in-process chip model instead of hardware.
	Simulate bool `yaml:"simulate" json:"simulate"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval"`
}

type RelayConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    string `yaml:"port" json:"port"`
	Baud    int    `yaml:"baud" json:"baud"`
}

type WSFeedConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
	Path    string `yaml:"path" json:"path"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}
