// Package relay writes decoded SAME headers to a serial port as text lines,
// in the form a sign or a legacy alerting box expects: the header on SAME
// message receipt and NNNN at end of message.
package relay

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"nwrcode-go/bus"
	"nwrcode-go/drivers/si4707"
	"nwrcode-go/types"
)

var (
	topicConfig  = bus.T("config", "relay")
	topicMessage = bus.T("nwr", "event", si4707.KindSAMEMessage)
	topicEOM     = bus.T("nwr", "event", si4707.KindEndOfMessage)
)

const eomLine = "NNNN"

// Port is the writable end of a serial line.
type Port interface {
	io.Writer
	Close() error
}

// OpenFunc opens a port at baud.
type OpenFunc func(path string, baud int) (Port, error)

// defaultOpen is used when Service.Open is nil.
var defaultOpen OpenFunc

type Service struct {
	Open OpenFunc
	Log  *logrus.Entry

	cfg  types.RelayConfig
	port Port
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	msgSub := conn.Subscribe(topicMessage)
	eomSub := conn.Subscribe(topicEOM)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(msgSub)
	defer conn.Unsubscribe(eomSub)
	defer s.closePort()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-cfgSub.Channel():
			if cfg, ok := relayConfig(msg); ok {
				s.apply(cfg)
			}
		case msg := <-msgSub.Channel():
			if env, ok := envelope(msg); ok {
				if ev, ok := env.Event.(si4707.SAMEMessageReceived); ok {
					s.writeLine(ev.Message.Header())
				}
			}
		case msg := <-eomSub.Channel():
			if msg != nil {
				s.writeLine(eomLine)
			}
		}
	}
}

func (s *Service) apply(cfg types.RelayConfig) {
	if cfg == s.cfg && (s.port != nil) == cfg.Enabled {
		return
	}
	s.closePort()
	s.cfg = cfg
	if !cfg.Enabled || cfg.Port == "" {
		return
	}
	open := s.Open
	if open == nil {
		open = defaultOpen
	}
	if open == nil {
		s.log().WithField("port", cfg.Port).Error("relay has no port opener")
		return
	}
	p, err := open(cfg.Port, cfg.Baud)
	if err != nil {
		s.log().WithError(err).Error("relay port unavailable")
		return
	}
	s.port = p
	s.log().WithFields(logrus.Fields{"port": cfg.Port, "baud": cfg.Baud}).Info("relay open")
}

func (s *Service) writeLine(line string) {
	if s.port == nil {
		return
	}
	if _, err := io.WriteString(s.port, line+"\r\n"); err != nil {
		s.log().WithError(err).Warn("relay write failed")
		s.closePort()
	}
}

func (s *Service) closePort() {
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
}

func (s *Service) log() *logrus.Entry {
	if s.Log == nil {
		s.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log.WithField("service", "relay")
}

func relayConfig(msg *bus.Message) (types.RelayConfig, bool) {
	if msg == nil {
		return types.RelayConfig{}, false
	}
	switch v := msg.Payload.(type) {
	case types.RelayConfig:
		return v, true
	case *types.RelayConfig:
		return *v, v != nil
	}
	return types.RelayConfig{}, false
}

func envelope(msg *bus.Message) (types.EventEnvelope, bool) {
	if msg == nil {
		return types.EventEnvelope{}, false
	}
	env, ok := msg.Payload.(types.EventEnvelope)
	return env, ok
}

// Start the relay service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
