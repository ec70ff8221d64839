// Package heartbeat periodically asks the receiver for a signal quality
// report, so nwr/state/signal stays fresh and a dead chip shows up in the
// log.
package heartbeat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nwrcode-go/bus"
	"nwrcode-go/drivers/si4707"
	"nwrcode-go/errcode"
	"nwrcode-go/types"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

const defaultInterval = 30 * time.Second

// Submitter is the receiver's command intake.
type Submitter interface {
	Submit(cmd si4707.Command) (*si4707.Future, error)
}

type Service struct {
	Receiver Submitter
	Log      *logrus.Entry
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("service", "heartbeat")

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(ctx, log)
		case msg := <-cfgSub.Channel():
			if msg == nil {
				continue
			}
			if iv := interval(msg.Payload); iv > 0 {
				tick.Reset(iv)
				log.WithField("interval", iv).Info("heartbeat interval set")
			}
		}
	}
}

func (s *Service) beat(ctx context.Context, log *logrus.Entry) {
	f, err := s.Receiver.Submit(si4707.NewReceivedSignalQualityCheck(false))
	if err != nil {
		log.WithField("code", errcode.Of(err)).Warn("heartbeat skipped")
		return
	}
	go func() {
		v, err := f.Wait(ctx)
		if err != nil {
			log.WithError(err).WithField("code", errcode.Of(err)).Debug("heartbeat failed")
			return
		}
		if q, ok := v.(si4707.SignalQuality); ok {
			log.WithFields(logrus.Fields{"rssi": q.RSSI, "snr": q.ASNR, "valid": q.Valid}).Debug("heartbeat")
		}
	}()
}

// interval accepts the typed config or a map with "interval" in seconds.
func interval(p any) time.Duration {
	switch v := p.(type) {
	case types.HeartbeatConfig:
		return v.Interval
	case *types.HeartbeatConfig:
		return v.Interval
	case map[string]any:
		if f, ok := v["interval"].(float64); ok {
			return time.Duration(f * float64(time.Second))
		}
	}
	return 0
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
