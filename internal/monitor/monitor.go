package monitor

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourneighborhoodchef/servermon/internal/metrics"
)

var ErrEmptySnapshot = errors.New("empty availability snapshot")

// Source returns the current availability of a product code.
type Source interface {
	FetchAvailability(ctx context.Context, productCode string) (Snapshot, error)
}

// Sink delivers a rendered message to the subscriber.
type Sink interface {
	Deliver(ctx context.Context, message string) error
}

type SourceFunc func(ctx context.Context, productCode string) (Snapshot, error)

func (f SourceFunc) FetchAvailability(ctx context.Context, productCode string) (Snapshot, error) {
	return f(ctx, productCode)
}

type SinkFunc func(ctx context.Context, message string) error

func (f SinkFunc) Deliver(ctx context.Context, message string) error {
	return f(ctx, message)
}

type Options struct {
	// CheckInterval is in seconds. Values below MinCheckInterval fall back to it.
	CheckInterval int
	// Throttle is the pause between two subscriptions of one pass.
	Throttle    time.Duration
	StopTimeout time.Duration
	Now         func() time.Time
}

type Monitor struct {
	source    Source
	sink      Sink
	logger    *slog.Logger
	registry  *Registry
	offerings *knownOfferings

	throttle    time.Duration
	stopTimeout time.Duration
	now         func() time.Time
	interval    atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(source Source, sink Sink, logger *slog.Logger, opts Options) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CheckInterval < MinCheckInterval {
		opts.CheckInterval = MinCheckInterval
	}
	if opts.Throttle <= 0 {
		opts.Throttle = defaultThrottle
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Monitor{
		source:      source,
		sink:        sink,
		logger:      logger.With(slog.String("category", "monitor")),
		registry:    NewRegistry(),
		offerings:   newKnownOfferings(),
		throttle:    opts.Throttle,
		stopTimeout: opts.StopTimeout,
		now:         opts.Now,
	}
	m.interval.Store(int64(opts.CheckInterval))
	m.logger.Info("monitor initialized", slog.Int("check_interval", opts.CheckInterval))
	return m
}

func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Warn("monitor already running")
		return false
	}
	if m.done != nil {
		select {
		case <-m.done:
		default:
			m.logger.Warn("previous monitor loop still exiting")
			return false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	metrics.Running.Set(1)

	go m.run(ctx, m.done)

	m.logger.Info("monitor started", slog.Int("check_interval", m.CheckInterval()))
	return true
}

// Stop cancels the loop and waits up to the stop timeout for it to exit.
// If the loop outlives the timeout, Start refuses to run until it has.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.logger.Warn("monitor not running")
		return false
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	m.logger.Info("stopping monitor")
	cancel()

	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		m.logger.Warn("monitor loop did not exit in time", slog.Duration("timeout", m.stopTimeout))
	}

	metrics.Running.Set(0)
	m.logger.Info("monitor stopped")
	return true
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) CheckInterval() int {
	return int(m.interval.Load())
}

// SetCheckInterval changes the wait between passes. The new value is used
// from the next wait on.
func (m *Monitor) SetCheckInterval(seconds int) bool {
	if seconds < MinCheckInterval {
		m.logger.Warn("check interval too small",
			slog.Int("requested", seconds),
			slog.Int("minimum", MinCheckInterval))
		return false
	}
	m.interval.Store(int64(seconds))
	m.logger.Info("check interval updated", slog.Int("check_interval", seconds))
	return true
}

func (m *Monitor) Status() Status {
	subs := m.registry.List()
	return Status{
		Running:             m.IsRunning(),
		SubscriptionsCount:  len(subs),
		KnownOfferingsCount: m.offerings.len(),
		CheckInterval:       m.CheckInterval(),
		Subscriptions:       subs,
	}
}

func (m *Monitor) AddSubscription(req SubscriptionRequest) bool {
	created := m.registry.Add(req, m.now())
	metrics.Subscriptions.Set(float64(m.registry.Len()))

	label := Subscription{ProductCode: req.ProductCode, DisplayName: req.DisplayName}.label()
	if !created {
		m.logger.Warn("subscription exists, updating preferences and keeping last status",
			slog.String("plan_code", req.ProductCode))
		return false
	}
	m.logger.Info("subscription added",
		slog.String("subscription", label),
		slog.Any("datacenters", locationsLabel(req.Locations)))
	return true
}

func (m *Monitor) RemoveSubscription(code string) bool {
	ok := m.registry.Remove(code)
	if ok {
		metrics.Subscriptions.Set(float64(m.registry.Len()))
		m.logger.Info("subscription removed", slog.String("plan_code", code))
	}
	return ok
}

func (m *Monitor) ClearSubscriptions() int {
	n := m.registry.Clear()
	metrics.Subscriptions.Set(0)
	m.logger.Info("subscriptions cleared", slog.Int("count", n))
	return n
}

func (m *Monitor) Subscriptions() []Subscription {
	return m.registry.List()
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	m.logger.Info("monitor loop started")

	for {
		m.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		wait := time.Duration(m.CheckInterval()) * time.Second
		m.logger.Info("waiting for next check", slog.Duration("wait", wait))
		if !sleep(ctx, wait) {
			break
		}
	}

	m.logger.Info("monitor loop exited")
}

func (m *Monitor) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("PANIC in monitor cycle",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	codes := m.registry.codes()
	metrics.Subscriptions.Set(float64(len(codes)))
	if len(codes) == 0 {
		m.logger.Info("no subscriptions, skipping check")
		return
	}

	start := time.Now()
	m.logger.Info("checking subscriptions", slog.Int("count", len(codes)))
	for i, code := range codes {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && !sleep(ctx, m.throttle) {
			return
		}
		m.CheckSubscription(ctx, code)
	}
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

// CheckSubscription fetches availability for one subscription, records the
// transitions it cares about and delivers a message for each. Failures are
// logged and never propagate.
func (m *Monitor) CheckSubscription(ctx context.Context, code string) {
	logger := m.logger.With(slog.String("plan_code", code))
	defer func() {
		if r := recover(); r != nil {
			metrics.ChecksTotal.WithLabelValues("error").Inc()
			logger.Error("PANIC while checking subscription",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	snap, err := m.source.FetchAvailability(ctx, code)
	if err == nil && len(snap) == 0 {
		err = ErrEmptySnapshot
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.ChecksTotal.WithLabelValues("source_unavailable").Inc()
		logger.Warn("cannot determine availability", slog.String("error", err.Error()))
		return
	}

	now := m.now()
	var events []Event
	found := m.registry.update(code, func(s *Subscription) {
		logger.Info("checking availability",
			slog.Any("datacenters", locationsLabel(s.Locations)),
			slog.Int("configurations", len(snap)))
		events = apply(s, snap, now)
	})
	if !found {
		logger.Info("subscription removed during check")
		return
	}
	metrics.ChecksTotal.WithLabelValues("ok").Inc()

	for _, ev := range events {
		m.deliver(ctx, logger, ev)
	}
}

func (m *Monitor) deliver(ctx context.Context, logger *slog.Logger, ev Event) {
	metrics.TransitionsTotal.WithLabelValues(string(ev.Change)).Inc()

	attrs := []any{
		slog.String("datacenter", ev.Location),
		slog.String("change", string(ev.Change)),
		slog.String("status", ev.Status),
	}
	if ev.HadPrevious {
		attrs = append(attrs, slog.String("previous", ev.PreviousStatus))
	}
	if ev.Config != nil {
		attrs = append(attrs, slog.String("config", ev.Config.Display()))
	}
	logger.Info("availability changed", attrs...)

	if err := m.send(ctx, Compose(ev)); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("availability", "failed").Inc()
		logger.Warn("notification delivery failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	metrics.DeliveriesTotal.WithLabelValues("availability", "sent").Inc()
	logger.Info("notification sent", attrs...)
}

// CheckNewOfferings compares the catalog against the codes seen so far and
// alerts for every new one. The first call only records the catalog.
func (m *Monitor) CheckNewOfferings(ctx context.Context, catalog []Offering) []Offering {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("PANIC while checking new offerings", slog.Any("panic", r))
		}
	}()

	added, seeded := m.offerings.observe(catalog)
	metrics.KnownOfferings.Set(float64(m.offerings.len()))
	if seeded {
		m.logger.Info("known offerings initialized", slog.Int("count", m.offerings.len()))
		return nil
	}
	if len(added) == 0 {
		return nil
	}

	now := m.now()
	for _, o := range added {
		metrics.NewOfferingsTotal.Inc()
		if err := m.send(ctx, ComposeNewOffering(o, now)); err != nil {
			metrics.DeliveriesTotal.WithLabelValues("new_offering", "failed").Inc()
			m.logger.Error("new offering alert failed",
				slog.String("plan_code", o.ProductCode),
				slog.String("error", err.Error()))
			continue
		}
		metrics.DeliveriesTotal.WithLabelValues("new_offering", "sent").Inc()
		m.logger.Info("new offering alert sent", slog.String("plan_code", o.ProductCode))
	}
	m.logger.Info("new offerings detected", slog.Int("count", len(added)))
	return added
}

// send delivers even when ctx was cancelled after the state was committed,
// so a recorded transition is not lost on shutdown.
func (m *Monitor) send(ctx context.Context, message string) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()
	return m.sink.Deliver(dctx, message)
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func locationsLabel(locs []string) any {
	if len(locs) == 0 {
		return "all"
	}
	return locs
}
