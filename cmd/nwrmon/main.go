//go:build !rp2040 && !rp2350

// Command nwrmon runs the weather radio receiver on a Linux host: the
// Si4707 over periph (or the simulated chip), the serial relay and the
// websocket feed.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"nwrcode-go/bus"
	"nwrcode-go/platform"
	"nwrcode-go/services/config"
	"nwrcode-go/services/heartbeat"
	"nwrcode-go/services/receiver"
	"nwrcode-go/services/relay"
	"nwrcode-go/services/wsfeed"
)

func main() {
	configPath := flag.String("config", "", "YAML file layered over the embedded device config")
	device := flag.String("device", "host", "embedded config to start from (host, pico, sim)")
	simulate := flag.Bool("simulate", false, "run against the simulated chip")
	demoHeader := flag.String("demo-alert", "", "with -simulate, broadcast this SAME header periodically")
	demoEvery := flag.Duration("demo-every", 30*time.Second, "interval between simulated broadcasts")
	listen := flag.String("listen", "", "override the websocket feed listen address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger).WithField("device", *device)

	cfg, err := config.Load(*device, *configPath)
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	if *simulate {
		cfg.Receiver.Simulate = true
	}
	if *listen != "" {
		cfg.WSFeed.Listen, cfg.WSFeed.Enabled = *listen, true
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	} else {
		log.WithField("level", cfg.Log.Level).Warn("unknown log level, keeping info")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b := bus.NewBus(16)

	var plat receiver.Platform
	var sim *platform.Sim
	if cfg.Receiver.Simulate {
		sim = platform.NewSim(cfg.Receiver.Address)
		plat = sim
		log.Info("using simulated receiver")
	} else {
		plat = platform.Default()
	}

	rx := receiver.New(b.NewConnection("receiver"), plat, log, cfg.Receiver.QueueLen)
	rxDone := make(chan struct{})
	go func() {
		rx.Run(ctx)
		close(rxDone)
	}()

	hb := &heartbeat.Service{Receiver: rx, Log: log}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		log.WithError(err).Fatal("heartbeat start failed")
	}
	rl := &relay.Service{Log: log}
	if err := rl.Start(ctx, b.NewConnection("relay")); err != nil {
		log.WithError(err).Fatal("relay start failed")
	}
	if cfg.WSFeed.Enabled {
		srv := wsfeed.New(b.NewConnection("wsfeed"), cfg.WSFeed, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("websocket feed stopped")
			}
		}()
	}

	config.Publish(b.NewConnection("config"), cfg)

	if sim != nil && *demoHeader != "" {
		go demo(ctx, sim, *demoHeader, *demoEvery, log)
	}

	<-rxDone
	log.Info("nwrmon stopped")
}

// demo plays a simulated broadcast every interval until ctx ends.
func demo(ctx context.Context, sim *platform.Sim, header string, every time.Duration, log *logrus.Entry) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			log.WithField("header", header).Info("playing simulated alert")
			if err := sim.PlayAlert(ctx, header, 500*time.Millisecond); err != nil {
				return
			}
		}
	}
}
