// Package receiver owns one Si4707 and runs it from the bus. Commands from
// the bus, from interrupts and from other services are executed one at a
// time, in priority order, on the service goroutine.
package receiver

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"

	"nwrcode-go/bus"
	"nwrcode-go/drivers/si4707"
	"nwrcode-go/errcode"
	"nwrcode-go/same"
	"nwrcode-go/types"
	"nwrcode-go/x/timex"
)

// Platform opens the hardware named in the receiver config.
type Platform interface {
	OpenI2C(name string) (drivers.I2C, error)
	// OpenIRQ returns a nil pin when name is empty; the service then polls.
	OpenIRQ(name string) (IRQPin, error)
}

var (
	topicConfig  = bus.T("config", "receiver")
	topicControl = bus.T("nwr", "control", "+")
)

func topicEvent(kind string) bus.Topic { return bus.T("nwr", "event", kind) }
func topicState(name string) bus.Topic { return bus.T("nwr", "state", name) }

const (
	defaultPollInterval = 50 * time.Millisecond
	defaultQueueLen     = 16
	irqDebounce         = time.Millisecond
)

type delayedEvent struct {
	ev si4707.Event
	at time.Time
}

// closed is always ready; selecting on it makes the loop non-blocking.
var closed = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

type Service struct {
	conn *bus.Connection
	plat Platform
	log  *logrus.Entry

	cfg   types.ReceiverConfig
	radio *si4707.Radio
	irq   *irqWorker

	submitCh chan *item
	queue    cmdQueue
	delayed  []delayedEvent

	intPending  bool
	samePending bool
	nextPoll    time.Time

	timer *time.Timer
	now   func() time.Time
}

// New returns a service that waits for its config on config/receiver.
// queueLen bounds Submit; 0 selects the default.
func New(conn *bus.Connection, plat Platform, log *logrus.Entry, queueLen int) *Service {
	if queueLen <= 0 {
		queueLen = defaultQueueLen
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		conn:     conn,
		plat:     plat,
		log:      log.WithField("service", "receiver"),
		submitCh: make(chan *item, queueLen),
		now:      time.Now,
	}
}

// Submit queues cmd from any goroutine. The returned Future settles once
// the command has run. A full queue fails with errcode.Busy.
func (s *Service) Submit(cmd si4707.Command) (*si4707.Future, error) {
	f := si4707.NewFuture()
	cmd.Attach(f)
	select {
	case s.submitCh <- &item{cmd: cmd, fut: f}:
		return f, nil
	default:
		return nil, errcode.Busy
	}
}

// Run serves until ctx is cancelled, then powers the chip down.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	ctrlSub := s.conn.Subscribe(topicControl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		drainTimer(s.timer)
	}
	defer s.timer.Stop()

	s.publishStatus("idle", "awaiting_config", nil)

	for {
		s.fireDue(s.now())

		var idle <-chan struct{}
		if s.queue.Len() > 0 {
			idle = closed
		} else {
			s.armTimer()
		}
		var irqC <-chan time.Time
		if s.irq != nil {
			irqC = s.irq.events()
		}

		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case msg := <-cfgSub.Channel():
			if msg != nil {
				s.applyConfig(ctx, msg)
			}
		case msg := <-ctrlSub.Channel():
			if msg != nil {
				s.handleControl(msg)
			}
		case it := <-s.submitCh:
			s.queue.push(it)
		case <-irqC:
			s.requestIntStatus()
		case <-s.timer.C:
		case <-idle:
		}

		if s.queue.Len() > 0 {
			s.execute(s.queue.pop())
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration and bring-up
// -----------------------------------------------------------------------------

func (s *Service) applyConfig(ctx context.Context, msg *bus.Message) {
	var cfg types.ReceiverConfig
	if err := decodePayload(msg.Payload, &cfg); err != nil {
		s.publishStatus("error", "config_decode_failed", err)
		return
	}

	if s.radio == nil {
		if err := s.open(ctx, cfg); err != nil {
			s.publishStatus("error", "open_failed", err)
			return
		}
		s.cfg = cfg
		if err := s.bringUp(); err != nil {
			s.publishStatus("error", "bring_up_failed", err)
			return
		}
		s.publishStatus("ready", "configured", nil)
		return
	}

	old := s.cfg
	s.cfg = cfg
	if old.I2CBus != cfg.I2CBus || old.Address != cfg.Address || old.IRQPin != cfg.IRQPin {
		s.log.Warn("bus or pin change ignored until restart")
	}
	if cfg.TunePolls > 0 {
		s.radio.TunePolls = cfg.TunePolls
	}
	s.queueProperties(cfg.Properties, old.Properties)
	if cfg.Frequency != 0 && cfg.Frequency != old.Frequency && s.radio.Power {
		s.queueTune(cfg.Frequency)
	}
	s.publishStatus("ready", "reconfigured", nil)
}

func (s *Service) open(ctx context.Context, cfg types.ReceiverConfig) error {
	i2c, err := s.plat.OpenI2C(cfg.I2CBus)
	if err != nil {
		return err
	}
	s.radio = si4707.NewRadio(si4707.NewI2CBus(i2c, cfg.Address), s, si4707.DecoderFunc(same.Average))
	if cfg.TunePolls > 0 {
		s.radio.TunePolls = cfg.TunePolls
	}

	pin, err := s.plat.OpenIRQ(cfg.IRQPin)
	if err != nil {
		return err
	}
	if pin != nil {
		w := newIRQWorker(pin, irqDebounce)
		if err := w.start(ctx); err != nil {
			return err
		}
		s.irq = w
	}
	s.log.WithFields(logrus.Fields{
		"bus":     cfg.I2CBus,
		"address": cfg.Address,
		"irq":     cfg.IRQPin != "",
	}).Info("receiver opened")
	return nil
}

// bringUp queues POWER_UP, GET_REV and the configured properties. The tune
// follows once the chip reports ready.
func (s *Service) bringUp() error {
	pu, err := s.powerUpCommand(types.PowerUpRequest{})
	if err != nil {
		return err
	}
	s.enqueue(pu, nil, nil)
	s.enqueue(si4707.NewGetRevision(), nil, nil)
	s.queueProperties(s.cfg.Properties, nil)
	return nil
}

func (s *Service) powerUpCommand(req types.PowerUpRequest) (*si4707.PowerUp, error) {
	pc := si4707.DefaultPowerUp()
	pc.CrystalOscillator = s.cfg.CrystalOscillator
	if req.CrystalOscillator != nil {
		pc.CrystalOscillator = *req.CrystalOscillator
	}
	if s.cfg.OpMode != 0 {
		pc.OpMode = s.cfg.OpMode
	}
	if req.OpMode != 0 {
		pc.OpMode = req.OpMode
	}
	if req.Function != 0 {
		pc.Function = req.Function
	}

	blob, id := req.Patch, req.PatchID
	if blob == nil && s.cfg.PatchFile != "" && pc.Function == si4707.FuncWBReceive {
		b, err := os.ReadFile(s.cfg.PatchFile)
		if err != nil {
			return nil, errcode.Wrap(errcode.InvalidParams, "POWER_UP", err)
		}
		blob, id = b, s.cfg.PatchID
	}
	if blob != nil {
		return si4707.NewPatchedPowerUp(pc, blob, id, id != 0)
	}
	return si4707.NewPowerUp(pc)
}

// queueProperties queues SET_PROPERTY for every entry of props that differs
// from prev, in name order.
func (s *Service) queueProperties(props, prev map[string]uint16) {
	names := make([]string, 0, len(props))
	for n, v := range props {
		if pv, ok := prev[n]; ok && pv == v {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		cmd, err := si4707.NewSetProperty(n, props[n])
		if err != nil {
			s.log.WithError(err).WithField("property", n).Warn("property skipped")
			continue
		}
		s.enqueue(cmd, nil, nil)
	}
}

func (s *Service) queueTune(mhz float64) {
	cmd, err := si4707.NewTuneFrequency(mhz)
	if err != nil {
		s.log.WithError(err).Warn("configured frequency rejected")
		return
	}
	s.enqueue(cmd, nil, nil)
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

func (s *Service) enqueue(cmd si4707.Command, req *bus.Message, fut *si4707.Future) {
	s.queue.push(&item{cmd: cmd, req: req, fut: fut})
}

func (s *Service) requestIntStatus() {
	if s.radio == nil || !s.radio.Power || s.intPending {
		return
	}
	s.intPending = true
	s.enqueue(si4707.NewGetIntStatus(), nil, nil)
}

func (s *Service) execute(it *item) {
	var err error
	if s.radio == nil {
		err = &errcode.E{C: errcode.NotReady, Op: it.cmd.Mnemonic(), Msg: "receiver not configured"}
	} else {
		err = it.cmd.Execute(s.radio)
	}
	v, _ := it.cmd.Result()
	if errors.Is(err, si4707.ErrAlreadyExecuted) {
		v = nil
	}
	if it.fut != nil && !it.fut.Settled() {
		if err != nil {
			_ = it.fut.Reject(err)
		} else {
			_ = it.fut.Resolve(v)
		}
	}

	log := s.log.WithField("cmd", it.cmd.Mnemonic())
	if err != nil {
		log.WithError(err).WithField("code", errcode.Of(err)).Warn("command failed")
	} else {
		log.Debug(it.cmd.String())
	}

	switch c := it.cmd.(type) {
	case *si4707.GetIntStatus:
		s.intPending = false
		if st, ok := v.(si4707.Status); ok && err == nil {
			s.handleInterrupts(st)
		}
	case *si4707.SameInterruptCheck:
		if c.Dispatch {
			s.samePending = false
		}
	case *si4707.TuneFrequency:
		if res, ok := v.(si4707.TuneResult); ok && err == nil {
			s.pubRet(topicState("tune"), types.TuneState{
				FrequencyMHz: res.FrequencyMHz, RSSI: res.RSSI, SNR: res.SNR, TsMs: timex.NowMs(),
			})
		}
	case *si4707.GetRevision, *si4707.PowerUp:
		if s.radio != nil && s.radio.Revision != nil && err == nil {
			s.pubRet(topicState("revision"), *s.radio.Revision)
		}
	case *si4707.ReceivedSignalQualityCheck:
		if err == nil {
			s.pubRet(topicState("signal"), c.Quality)
		}
	}

	if it.req != nil {
		s.reply(it.req, v, err)
	}
}

func (s *Service) handleInterrupts(st si4707.Status) {
	if st.Has(si4707.StatusSAMEInt) {
		s.enqueue(si4707.NewSameInterruptCheck(true, false, false), nil, nil)
	}
	if st.Has(si4707.StatusASQInt) {
		s.enqueue(si4707.NewAlertToneCheck(true), nil, nil)
	}
	if st.Has(si4707.StatusRSQInt) {
		s.enqueue(si4707.NewReceivedSignalQualityCheck(true), nil, nil)
	}
}

// fireDue emits delayed events whose time has come, starts the SAME
// dispatch once its deadline passes and, without an IRQ pin, polls.
func (s *Service) fireDue(now time.Time) {
	if len(s.delayed) > 0 {
		var due []si4707.Event
		kept := s.delayed[:0]
		for _, d := range s.delayed {
			if now.Before(d.at) {
				kept = append(kept, d)
			} else {
				due = append(due, d.ev)
			}
		}
		s.delayed = kept
		for _, ev := range due {
			s.Emit(ev)
		}
	}

	if s.radio == nil || !s.radio.Power {
		return
	}
	if to := s.radio.SameTimeout; !s.samePending && !to.Equal(si4707.Never) && !now.Before(to) {
		s.samePending = true
		s.enqueue(si4707.NewSameInterruptCheck(false, true, true), nil, nil)
	}
	if s.irq == nil && !now.Before(s.nextPoll) {
		s.nextPoll = now.Add(s.pollInterval())
		s.requestIntStatus()
	}
}

func (s *Service) armTimer() {
	var next time.Time
	consider := func(t time.Time) {
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	for _, d := range s.delayed {
		consider(d.at)
	}
	if s.radio != nil && s.radio.Power {
		if to := s.radio.SameTimeout; !s.samePending && !to.Equal(si4707.Never) {
			consider(to)
		}
		if s.irq == nil {
			consider(s.nextPoll)
		}
	}
	if next.IsZero() {
		if !s.timer.Stop() {
			drainTimer(s.timer)
		}
		return
	}
	resetTimer(s.timer, next.Sub(s.now()))
}

func (s *Service) pollInterval() time.Duration {
	if s.cfg.PollInterval > 0 {
		return s.cfg.PollInterval
	}
	return defaultPollInterval
}

func (s *Service) shutdown() {
	for _, it := range s.queue.drain() {
		s.abandon(it)
	}
	for drained := false; !drained; {
		select {
		case it := <-s.submitCh:
			s.abandon(it)
		default:
			drained = true
		}
	}
	if s.radio != nil && s.radio.Power {
		if err := s.radio.Execute(si4707.NewPowerDown()); err != nil {
			s.log.WithError(err).Warn("power down failed")
		}
	}
	s.publishStatus("stopped", "context_cancelled", nil)
}

func (s *Service) abandon(it *item) {
	err := &errcode.E{C: errcode.Cancelled, Op: it.cmd.Mnemonic(), Msg: "receiver stopping"}
	if it.fut != nil {
		_ = it.fut.Reject(err)
	}
	if it.req != nil {
		s.reply(it.req, nil, err)
	}
}

// -----------------------------------------------------------------------------
// si4707.Host
// -----------------------------------------------------------------------------

// Emit publishes ev on nwr/event/<kind> and keeps nwr/state current.
func (s *Service) Emit(ev si4707.Event) {
	kind := ev.EventKind()
	s.conn.Publish(s.conn.NewMessage(topicEvent(kind),
		types.EventEnvelope{Kind: kind, Event: ev, TsMs: timex.NowMs()}, false))

	switch e := ev.(type) {
	case si4707.RadioPowerEvent:
		s.pubRet(topicState("power"), types.PowerState{On: e.On, TsMs: timex.NowMs()})
		if !e.On {
			s.samePending = false
		}
	case si4707.ReadyToTuneEvent:
		if s.cfg.Frequency != 0 {
			s.queueTune(s.cfg.Frequency)
		}
	case si4707.SAMEMessageReceived:
		s.log.WithFields(logrus.Fields{
			"event":      e.Message.Event,
			"originator": e.Message.Originator,
			"station":    e.Message.Station,
			"locations":  e.Message.Locations,
		}).Info("SAME message")
	case si4707.InvalidSAMEMessageReceived:
		s.log.WithField("repetitions", len(e.Headers)).Warn(e.Reason)
	case si4707.AlertToneEvent:
		s.log.WithFields(logrus.Fields{"on": e.On, "duration": e.Duration}).Info("alert tone")
	}
}

func (s *Service) ScheduleDelayed(ev si4707.Event, at time.Time) {
	s.delayed = append(s.delayed, delayedEvent{ev: ev, at: at})
}

func (s *Service) Resubmit(cmd si4707.Command) { s.enqueue(cmd, nil, nil) }

// -----------------------------------------------------------------------------
// Publishing helpers
// -----------------------------------------------------------------------------

func (s *Service) publishStatus(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
		payload["code"] = errcode.Of(err)
		s.log.WithError(err).WithField("status", status).Error("receiver")
	}
	s.pubRet(topicState("service"), payload)
}

func (s *Service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}
