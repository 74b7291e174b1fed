// Package scheduler drives collection runs on two coexisting triggers — a
// fixed daily tick and an adaptive interval that shortens on success and
// lengthens on repeated failure — plus manual and force triggers (C6).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wisbric/blacklistguard/pkg/collector"
)

const (
	// AdaptiveFloor is the shortest the adaptive interval may shrink to.
	AdaptiveFloor = 300 * time.Second
	// AdaptiveCeiling is the longest the adaptive interval may grow to.
	AdaptiveCeiling = 3600 * time.Second
	// adaptiveSuccessFactor shortens the interval after a successful run.
	adaptiveSuccessFactor = 0.8
	// adaptiveFailureFactor lengthens the interval after 3 consecutive failures.
	adaptiveFailureFactor = 1.5
	// failuresBeforeBackoff is how many consecutive failures trigger the lengthening.
	failuresBeforeBackoff = 3
	// ForcePageCap and dailyPageCap bound full collection sweeps (§4.6).
	// ForcePageCap is exported so a one-shot CLI force-collection run (outside
	// a Scheduler) can use the same cap.
	ForcePageCap    = 50
	dailyPageCap    = 50
	tickGranularity = time.Second
)

// Runner executes one collection attempt for a named source and reports how
// many items it produced, and any error. scheduled is true for a
// daily/adaptive tick and for a force run, and false for a manual trigger;
// REGTECH's strategy selection cares about it (§4.3 strategy #4). It is implemented by the
// app-level wiring that ties together a collector.Source, the normalizer,
// and the blacklist store.
type Runner interface {
	RunCollection(ctx context.Context, sourceName string, rng collector.DateRange, maxPages int, scheduled bool) (items int, err error)
}

// State is the scheduler's externally-visible snapshot (§4.6, exposed
// verbatim via the health/control API).
type State struct {
	TotalRuns           int
	SuccessfulRuns      int
	FailedRuns          int
	LastRun             *time.Time
	LastSuccess         *time.Time
	LastFailure         *time.Time
	ConsecutiveFailures int
	AdaptiveInterval    time.Duration
}

type sourceState struct {
	mu    sync.Mutex // serializes ticks for this source (§4.6 concurrency)
	state State
}

// Scheduler owns one worker goroutine per registered source plus a ticker
// goroutine that fires the daily wall-clock trigger.
type Scheduler struct {
	registry    *collector.Registry
	runner      Runner
	logger      *slog.Logger
	dailyAt     string // "HH:MM" local time
	disableAuto bool

	group singleflight.Group

	mu      sync.Mutex
	sources map[string]*sourceState

	stop chan struct{}
	wg   sync.WaitGroup
}

// Config configures a Scheduler.
type Config struct {
	DailyAt               string // wall-clock "HH:MM", default "02:00"
	DisableAutoCollection bool
	InitialInterval       time.Duration
}

// New builds a Scheduler over every source currently in registry.
func New(registry *collector.Registry, runner Runner, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.DailyAt == "" {
		cfg.DailyAt = "02:00"
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = AdaptiveFloor
	}

	s := &Scheduler{
		registry:    registry,
		runner:      runner,
		logger:      logger,
		dailyAt:     cfg.DailyAt,
		disableAuto: cfg.DisableAutoCollection,
		sources:     make(map[string]*sourceState),
		stop:        make(chan struct{}),
	}
	for _, name := range registry.Names() {
		s.sources[name] = &sourceState{state: State{AdaptiveInterval: cfg.InitialInterval}}
	}
	return s
}

// Start launches the daily-tick goroutine and one adaptive-tick goroutine
// per source. It returns immediately; call Stop to shut down gracefully.
func (s *Scheduler) Start(ctx context.Context) {
	if s.disableAuto {
		s.logger.Info("automatic collection disabled, scheduler running in manual-only mode", "module", "scheduler")
	}

	s.wg.Add(1)
	go s.runDailyTicker(ctx)

	for _, name := range s.registry.Names() {
		s.wg.Add(1)
		go s.runAdaptiveTicker(ctx, name)
	}
}

// Stop signals every worker to exit and waits up to timeout for them to
// finish their current phase (§5 graceful shutdown, 10s budget owned by the
// caller via ctx).
func (s *Scheduler) Stop(ctx context.Context) {
	close(s.stop)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out, workers may still be running", "module", "scheduler")
	}
}

func (s *Scheduler) runDailyTicker(ctx context.Context) {
	defer s.wg.Done()
	for {
		wait := durationUntilNext(s.dailyAt, time.Now())
		select {
		case <-time.After(wait):
			if !s.disableAuto {
				for _, name := range s.registry.Names() {
					s.runOnce(ctx, name, collector.DateRange{}, dailyPageCap, true)
				}
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runAdaptiveTicker(ctx context.Context, sourceName string) {
	defer s.wg.Done()
	for {
		interval := s.currentInterval(sourceName)
		select {
		case <-time.After(interval):
			if !s.disableAuto {
				s.runOnce(ctx, sourceName, collector.DateRange{}, dailyPageCap, true)
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Trigger runs an out-of-band manual collection. It records success/failure
// in the adaptive state but does not otherwise disturb the adaptive
// interval's trigger cadence (§4.6 manual trigger).
func (s *Scheduler) Trigger(ctx context.Context, sourceName string, rng collector.DateRange) error {
	return s.runOnce(ctx, sourceName, rng, dailyPageCap, false)
}

// Force runs a one-shot collection with the 50-page cap, bypassing every
// other gate including DISABLE_AUTO_COLLECTION.
func (s *Scheduler) Force(ctx context.Context, sourceName string) error {
	return s.runOnce(ctx, sourceName, collector.DateRange{}, ForcePageCap, true)
}

// Snapshot returns the current State for sourceName.
func (s *Scheduler) Snapshot(sourceName string) State {
	ss := s.sourceStateFor(sourceName)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state
}

func (s *Scheduler) sourceStateFor(sourceName string) *sourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sources[sourceName]
	if !ok {
		ss = &sourceState{state: State{AdaptiveInterval: AdaptiveFloor}}
		s.sources[sourceName] = ss
	}
	return ss
}

func (s *Scheduler) currentInterval(sourceName string) time.Duration {
	ss := s.sourceStateFor(sourceName)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state.AdaptiveInterval
}

// runOnce serializes concurrent ticks for the same source with a per-source
// mutex (§4.6 concurrency) and additionally collapses concurrent callers
// (an adaptive tick racing a manual trigger) into a single in-flight
// collection via singleflight.
func (s *Scheduler) runOnce(ctx context.Context, sourceName string, rng collector.DateRange, maxPages int, scheduled bool) error {
	_, err, _ := s.group.Do(sourceName, func() (any, error) {
		ss := s.sourceStateFor(sourceName)
		ss.mu.Lock()
		defer ss.mu.Unlock()

		start := time.Now()
		items, runErr := s.runner.RunCollection(ctx, sourceName, rng, maxPages, scheduled)
		finished := time.Now()

		ss.state.TotalRuns++
		ss.state.LastRun = &finished

		if runErr != nil {
			ss.state.FailedRuns++
			ss.state.ConsecutiveFailures++
			ss.state.LastFailure = &finished
			if ss.state.ConsecutiveFailures >= failuresBeforeBackoff {
				ss.state.AdaptiveInterval = capDuration(
					time.Duration(float64(ss.state.AdaptiveInterval)*adaptiveFailureFactor), AdaptiveCeiling)
			}
			s.logger.Error("collection run failed", "source", sourceName, "error", runErr,
				"consecutive_failures", ss.state.ConsecutiveFailures, "module", "scheduler")
			return nil, runErr
		}

		ss.state.SuccessfulRuns++
		ss.state.ConsecutiveFailures = 0
		ss.state.LastSuccess = &finished
		ss.state.AdaptiveInterval = floorDuration(
			time.Duration(float64(ss.state.AdaptiveInterval)*adaptiveSuccessFactor), AdaptiveFloor)

		s.logger.Info("collection run succeeded", "source", sourceName, "items", items,
			"duration", finished.Sub(start), "scheduled", scheduled, "module", "scheduler")
		return nil, nil
	})
	return err
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

func floorDuration(d, min time.Duration) time.Duration {
	if d < min {
		return min
	}
	return d
}

// durationUntilNext returns how long to wait until the next occurrence of
// hhmm ("HH:MM" local time), at least tickGranularity in the future.
func durationUntilNext(hhmm string, now time.Time) time.Duration {
	layout := "15:04"
	t, err := time.ParseInLocation(layout, hhmm, now.Location())
	if err != nil {
		return 24 * time.Hour
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	d := next.Sub(now)
	if d < tickGranularity {
		d = tickGranularity
	}
	return d
}
