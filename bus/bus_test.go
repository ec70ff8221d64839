package bus

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) *Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("nothing on %s", sub.Topic())
		return nil
	}
}

func quiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected %s on %s", m.Topic, sub.Topic())
	case <-time.After(30 * time.Millisecond):
	}
}

// payloads reads whatever is queued on sub, sorted.
func payloads(sub *Subscription) []string {
	var out []string
	for {
		select {
		case m := <-sub.Channel():
			out = append(out, m.Payload.(string))
		default:
			sort.Strings(out)
			return out
		}
	}
}

func TestDeliveryByPattern(t *testing.T) {
	published := []Topic{
		T("nwr", "event", "same_message"),
		T("nwr", "event", "alert_tone"),
		T("nwr", "state", "tune"),
		T("nwr", "control", "tune"),
		T("config", "receiver"),
	}
	cases := []struct {
		pattern Topic
		want    string
	}{
		{T("nwr", "event", "same_message"), "nwr/event/same_message"},
		{T("nwr", "event", "+"), "nwr/event/alert_tone nwr/event/same_message"},
		{T("nwr", "+", "tune"), "nwr/control/tune nwr/state/tune"},
		{T("nwr", "#"), "nwr/control/tune nwr/event/alert_tone nwr/event/same_message nwr/state/tune"},
		{T("#"), "config/receiver nwr/control/tune nwr/event/alert_tone nwr/event/same_message nwr/state/tune"},
		{T("nwr", "+"), ""},
		{T("config", "receiver", "x"), ""},
	}
	for _, c := range cases {
		t.Run(c.pattern.String(), func(t *testing.T) {
			b := NewBus(8)
			conn := b.NewConnection("test")
			sub := conn.Subscribe(c.pattern)
			for _, tp := range published {
				conn.Publish(conn.NewMessage(tp, tp.String(), false))
			}
			if got := strings.Join(payloads(sub), " "); got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestRetainedReplayAndClear(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")
	conn.Publish(conn.NewMessage(T("nwr", "state", "power"), "off", true))
	conn.Publish(conn.NewMessage(T("nwr", "state", "power"), "on", true))
	conn.Publish(conn.NewMessage(T("nwr", "state", "tune"), "162.550", true))
	conn.Publish(conn.NewMessage(T("nwr", "event", "alert_tone"), "not kept", false))

	sub := conn.Subscribe(T("nwr", "#"))
	if got := strings.Join(payloads(sub), " "); got != "162.550 on" {
		t.Fatalf("replayed %q", got)
	}

	conn.Publish(conn.NewMessage(T("nwr", "state", "power"), nil, true))
	quiet(t, sub)
	late := conn.Subscribe(T("nwr", "state", "+"))
	if got := strings.Join(payloads(late), " "); got != "162.550" {
		t.Fatalf("after clear %q", got)
	}
}

func TestRequestWaitGetsReply(t *testing.T) {
	b := NewBus(8)
	client := b.NewConnection("client")
	server := b.NewConnection("receiver")

	ctl := server.Subscribe(T("nwr", "control", "+"))
	go func() {
		for m := range ctl.Channel() {
			server.Reply(m, "reply to "+m.Topic[2].(string), false)
		}
	}()
	defer server.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req := client.NewMessage(T("nwr", "control", "revision"), nil, false)
	reply, err := client.RequestWait(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Payload != "reply to revision" {
		t.Fatalf("payload %v", reply.Payload)
	}
	if reply.Topic.String() != req.ReplyTo.String() {
		t.Fatalf("reply on %s, asked on %s", reply.Topic, req.ReplyTo)
	}
}

func TestRequestWaitTimesOut(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("client")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.RequestWait(ctx, c.NewMessage(T("nwr", "control", "rsq"), nil, false)); err != context.DeadlineExceeded {
		t.Fatalf("err = %v", err)
	}
}

func TestReplyWithoutReplyToIsDropped(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")
	all := c.Subscribe(T("#"))
	m := c.NewMessage(T("nwr", "control", "tune"), nil, false)
	c.Publish(m)
	recv(t, all)
	c.Reply(m, "ignored", false)
	quiet(t, all)
}

func TestSlowSubscriberLosesOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("nwr", "event", "#"))
	for _, p := range []string{"e1", "e2", "e3"} {
		c.Publish(c.NewMessage(T("nwr", "event", "alert_tone"), p, false))
	}
	if x, y := recv(t, s).Payload, recv(t, s).Payload; x != "e2" || y != "e3" {
		t.Fatalf("got %v %v", x, y)
	}
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("nwr", "state", "power"))
	s.Unsubscribe()
	s.Unsubscribe()
	if _, ok := <-s.Channel(); ok {
		t.Fatal("channel still open")
	}

	s1 := c.Subscribe(T("nwr", "state", "+"))
	s2 := c.Subscribe(T("nwr", "event", "#"))
	c.Disconnect()
	for _, s := range []*Subscription{s1, s2} {
		if _, ok := <-s.Channel(); ok {
			t.Fatalf("%s still open after Disconnect", s.Topic())
		}
	}
	c.Publish(c.NewMessage(T("nwr", "state", "power"), "on", false))
}

func TestTopicHelpers(t *testing.T) {
	if got := T("nwr").Append("state", 3).String(); got != "nwr/state/3" {
		t.Fatalf("Append = %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("T accepted a non-comparable token")
		}
	}()
	_ = T([]byte{1})
}
