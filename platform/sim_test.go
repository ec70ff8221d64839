package platform

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"nwrcode-go/bus"
	"nwrcode-go/drivers/si4707"
	"nwrcode-go/services/receiver"
	"nwrcode-go/types"
)

const header = "ZCZC-WXR-FFW-048029+0600-1241530-KEWX/NWS-"

func TestSimPinForwardsUntilCleared(t *testing.T) {
	sim := NewSim(si4707.AddressDefault)
	if pin, err := sim.OpenIRQ(""); pin != nil || err != nil {
		t.Fatalf("OpenIRQ(\"\") = %v, %v", pin, err)
	}
	pin, err := sim.OpenIRQ("int")
	if err != nil {
		t.Fatal(err)
	}
	fired := make(chan struct{}, 4)
	if err := pin.SetIRQ(receiver.EdgeFalling, func() { fired <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	sim.Chip.Preamble()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	if pin.Get() {
		t.Fatal("INT reads high inside handler")
	}

	if err := pin.ClearIRQ(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	sim.Chip.EndOfMessage()
	select {
	case <-fired:
		t.Fatal("handler called after ClearIRQ")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayAlertDecodesThroughReceiver(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)

	sim := NewSim(si4707.AddressDefault)
	b := bus.NewBus(8)
	client := b.NewConnection("test")
	svc := receiver.New(b.NewConnection("receiver"), sim, logrus.NewEntry(l), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	events := client.Subscribe(bus.T("nwr", "event", "#"))
	tuned := client.Subscribe(bus.T("nwr", "state", "tune"))
	client.Publish(client.NewMessage(bus.T("config", "receiver"), types.ReceiverConfig{
		Address:      si4707.AddressDefault,
		IRQPin:       "int",
		Frequency:    162.4,
		OpMode:       0x05,
		PollInterval: 5 * time.Millisecond,
		TunePolls:    50,
	}, true))

	select {
	case <-tuned.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never tuned")
	}
	go func() { _ = sim.PlayAlert(ctx, header, 40*time.Millisecond) }()

	var toneOn bool
	deadline := time.After(3 * time.Second)
	for {
		select {
		case m := <-events.Channel():
			env, ok := m.Payload.(types.EventEnvelope)
			if !ok {
				continue
			}
			switch ev := env.Event.(type) {
			case si4707.AlertToneEvent:
				toneOn = toneOn || ev.On
			case si4707.SAMEMessageReceived:
				if !toneOn {
					t.Fatal("message before alert tone")
				}
				if ev.Message.Event != "FFW" || ev.Message.Repetitions != 3 {
					t.Fatalf("message = %+v", ev.Message)
				}
				return
			}
		case <-deadline:
			t.Fatal("no SAME message decoded")
		}
	}
}
