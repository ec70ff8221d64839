//go:build rp2040 || rp2350

package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nwrcode-go/bus"
	"nwrcode-go/platform"
	"nwrcode-go/services/config"
	"nwrcode-go/services/heartbeat"
	"nwrcode-go/services/receiver"
	"nwrcode-go/services/relay"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	log := logrus.NewEntry(logger).WithField("device", "pico")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")
	b := bus.NewBus(4)

	rx := receiver.New(b.NewConnection("receiver"), platform.Default(), log, 0)
	go rx.Run(ctx)

	hb := &heartbeat.Service{Receiver: rx, Log: log}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	rl := &relay.Service{Open: platform.OpenUART, Log: log}
	_ = rl.Start(ctx, b.NewConnection("relay"))

	cs := config.NewConfigService()
	cs.Log = log
	cs.Start(ctx, b.NewConnection("config"))

	mon := b.NewConnection("monitor").Subscribe(bus.T("nwr", "state", "service"))
	for m := range mon.Channel() {
		if st, ok := m.Payload.(map[string]any); ok {
			status, _ := st["status"].(string)
			println("[main] receiver", status)
		}
	}
}
