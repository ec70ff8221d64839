package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nwrcode-go/bus"
	"nwrcode-go/types"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	old := LookupEnv
	LookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { LookupEnv = old })
}

func TestLoadEmbeddedHost(t *testing.T) {
	withEnv(t, nil)
	cfg, err := Load("host", "")
	if err != nil {
		t.Fatal(err)
	}
	r := cfg.Receiver
	if r.Address != 0x11 || r.Frequency != 162.55 || !r.CrystalOscillator {
		t.Fatalf("receiver = %+v", r)
	}
	if r.PollInterval != 50*time.Millisecond || r.TunePolls != 250 {
		t.Fatalf("defaults lost: %+v", r)
	}
	if r.Properties["GPO_IEN"] != 0x000F || r.Properties["RX_VOLUME"] != 63 {
		t.Fatalf("properties = %v", r.Properties)
	}
	if cfg.Heartbeat.Interval != 30*time.Second || cfg.WSFeed.Path != "/events" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nwr.yaml")
	yml := "receiver:\n  frequency: 162.4\n  poll_interval: 1h\n  properties:\n    RX_VOLUME: 10\nrelay:\n  baud: 0\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	withEnv(t, map[string]string{
		"NWR_ADDRESS":    "0x63",
		"NWR_SIMULATE":   "true",
		"NWR_RELAY_PORT": "/dev/ttyS1",
	})

	cfg, err := Load("host", path)
	if err != nil {
		t.Fatal(err)
	}
	r := cfg.Receiver
	if r.Frequency != 162.4 || r.Address != 0x63 || !r.Simulate {
		t.Fatalf("receiver = %+v", r)
	}
	if r.PollInterval != time.Second {
		t.Fatalf("poll interval not clamped: %v", r.PollInterval)
	}
	if r.Properties["RX_VOLUME"] != 10 || r.Properties["GPO_IEN"] != 0x000F {
		t.Fatalf("properties = %v", r.Properties)
	}
	if !cfg.Relay.Enabled || cfg.Relay.Port != "/dev/ttyS1" || cfg.Relay.Baud != 9600 {
		t.Fatalf("relay = %+v", cfg.Relay)
	}
}

func TestLoadErrors(t *testing.T) {
	withEnv(t, map[string]string{"NWR_FREQUENCY": "loud"})
	if _, err := Load("host", ""); err == nil {
		t.Fatal("bad env value accepted")
	}
	withEnv(t, nil)
	if _, err := Load("toaster", ""); err == nil {
		t.Fatal("unknown device accepted")
	}
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(string) ([]byte, bool) { return []byte("receiver: ["), true }
	t.Cleanup(func() { EmbeddedConfigLookup = old })
	if _, err := Load("host", ""); err == nil {
		t.Fatal("bad yaml accepted")
	}
}

func TestConfig_PublishEmbedded_RetainedPerSection(t *testing.T) {
	withEnv(t, nil)
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "sim")
	svc.Start(ctx, conn)

	sub := conn.Subscribe(bus.T(configPrefix, "#"))
	got := map[string]any{}
	deadline := time.After(time.Second)
	for len(got) < 5 {
		select {
		case m := <-sub.Channel():
			if !m.Retained {
				t.Fatalf("%s not retained", m.Topic)
			}
			got[m.Topic[1].(string)] = m.Payload
		case <-deadline:
			t.Fatalf("got %d sections", len(got))
		}
	}
	rc, ok := got["receiver"].(types.ReceiverConfig)
	if !ok || !rc.Simulate || rc.Frequency != 162.475 {
		t.Fatalf("receiver section = %#v", got["receiver"])
	}
	if hb, ok := got["heartbeat"].(types.HeartbeatConfig); !ok || hb.Interval != 5*time.Second {
		t.Fatalf("heartbeat section = %#v", got["heartbeat"])
	}
}
