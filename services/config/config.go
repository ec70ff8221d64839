// Package config resolves the device configuration and publishes each
// section retained on config/<section>.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"nwrcode-go/bus"
	"nwrcode-go/types"
	"nwrcode-go/x/mathx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
	envPrefix    = "NWR_"
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// LookupEnv is consulted for NWR_* overrides.
var LookupEnv = os.LookupEnv

// Defaults is the configuration before any YAML or environment is applied.
func Defaults() types.Config {
	return types.Config{
		Receiver: types.ReceiverConfig{
			Address:      0x11,
			OpMode:       0x05,
			PollInterval: 50 * time.Millisecond,
			TunePolls:    250,
			QueueLen:     16,
		},
		Heartbeat: types.HeartbeatConfig{Interval: 30 * time.Second},
		Relay:     types.RelayConfig{Baud: 9600},
		WSFeed:    types.WSFeedConfig{Listen: ":8080", Path: "/events"},
		Log:       types.LogConfig{Level: "info"},
	}
}

// Load resolves the config for device: the embedded YAML, then the file at
// path when set, then NWR_* environment overrides.
func Load(device, path string) (types.Config, error) {
	cfg := Defaults()
	if raw, ok := EmbeddedConfigLookup(device); ok && len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("embedded config %q: %w", device, err)
		}
	} else if path == "" {
		return cfg, errors.New("no embedded config for device: " + device)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	normalise(&cfg)
	return cfg, nil
}

func applyEnv(cfg *types.Config) error {
	r := &cfg.Receiver
	overrides := []struct {
		key string
		set func(string) error
	}{
		{"I2C_BUS", func(v string) error { r.I2CBus = v; return nil }},
		{"IRQ_PIN", func(v string) error { r.IRQPin = v; return nil }},
		{"ADDRESS", func(v string) error { return parseUint16(v, &r.Address) }},
		{"FREQUENCY", func(v string) (err error) { r.Frequency, err = strconv.ParseFloat(v, 64); return }},
		{"XOSC", func(v string) (err error) { r.CrystalOscillator, err = strconv.ParseBool(v); return }},
		{"PATCH_FILE", func(v string) error { r.PatchFile = v; return nil }},
		{"PATCH_ID", func(v string) error { return parseUint16(v, &r.PatchID) }},
		{"SIMULATE", func(v string) (err error) { r.Simulate, err = strconv.ParseBool(v); return }},
		{"POLL_INTERVAL", func(v string) (err error) { r.PollInterval, err = time.ParseDuration(v); return }},
		{"HEARTBEAT_INTERVAL", func(v string) (err error) { cfg.Heartbeat.Interval, err = time.ParseDuration(v); return }},
		{"RELAY_PORT", func(v string) error { cfg.Relay.Port, cfg.Relay.Enabled = v, v != ""; return nil }},
		{"WSFEED_LISTEN", func(v string) error { cfg.WSFeed.Listen = v; return nil }},
		{"LOG_LEVEL", func(v string) error { cfg.Log.Level = v; return nil }},
	}
	for _, o := range overrides {
		v, ok := LookupEnv(envPrefix + o.key)
		if !ok {
			continue
		}
		if err := o.set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, o.key, err)
		}
	}
	return nil
}

func parseUint16(s string, dst *uint16) error {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return err
	}
	*dst = uint16(v)
	return nil
}

// normalise clamps tunables into the ranges the services handle.
func normalise(cfg *types.Config) {
	r := &cfg.Receiver
	r.PollInterval = mathx.Clamp(r.PollInterval, time.Millisecond, time.Second)
	r.TunePolls = mathx.Clamp(r.TunePolls, 1, 1000)
	r.QueueLen = mathx.Clamp(r.QueueLen, 1, 256)
	cfg.Heartbeat.Interval = mathx.Clamp(cfg.Heartbeat.Interval, 100*time.Millisecond, time.Hour)
	if cfg.Relay.Baud <= 0 {
		cfg.Relay.Baud = 9600
	}
	if cfg.WSFeed.Path == "" {
		cfg.WSFeed.Path = "/events"
	}
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	// Path is an optional YAML file layered over the embedded config.
	Path string
	Log  *logrus.Entry
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig resolves the config for the device in ctx and publishes
// every section as a retained message.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	cfg, err := Load(device, s.Path)
	if err != nil {
		return err
	}
	Publish(conn, cfg)
	return nil
}

// Publish puts each section of cfg on config/<section>, retained.
func Publish(conn *bus.Connection, cfg types.Config) {
	sections := map[string]any{
		"receiver":  cfg.Receiver,
		"heartbeat": cfg.Heartbeat,
		"relay":     cfg.Relay,
		"wsfeed":    cfg.WSFeed,
		"log":       cfg.Log,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			log.WithError(err).WithField("service", serviceName).Error("config not published")
		}
	}()
}
