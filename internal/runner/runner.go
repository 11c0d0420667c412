package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hotpath/internal/stats"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Elapsed    time.Duration
	Iterations uint64
	Requests   uint64
	Failed     uint64
	ActiveVUs  int64

	ChecksPassed uint64
	ChecksFailed uint64

	// Pre-calculated percentiles for the UI (cheap copy)
	P95ReqMs float64
	P99ReqMs float64
	// TrendP95 holds p(95) in ms for every trend, built-ins included.
	TrendP95 map[string]float64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

type Runner struct {
	Cfg     Config
	Stats   *stats.Registry
	Updates StatsUpdateChan

	log       *zap.Logger
	activeVUs atomic.Int64
	startedAt time.Time

	// pause is swapped in tests to observe think time.
	pause func(ctx context.Context, d time.Duration) bool
}

func NewRunner(cfg Config, reg *stats.Registry, updates StatsUpdateChan, log *zap.Logger) *Runner {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Cfg:     cfg,
		Stats:   reg,
		Updates: updates,
		log:     log,
		pause:   sleepCtx,
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) Snapshot() StatsSnapshot {
	failed := r.Stats.Rate(stats.HTTPReqFailed)
	checks := r.Stats.Rate(stats.Checks)
	reqs := r.Stats.Trend(stats.HTTPReqDuration)

	names := r.Stats.TrendNames()
	p95 := make(map[string]float64, len(names))
	for _, name := range names {
		p95[name] = r.Stats.Trend(name).Percentile(95)
	}

	return StatsSnapshot{
		Elapsed:      time.Since(r.startedAt),
		Iterations:   r.Stats.Counter(stats.Iterations).Count(),
		Requests:     r.Stats.Counter(stats.HTTPReqs).Count(),
		Failed:       failed.Passes(),
		ActiveVUs:    r.activeVUs.Load(),
		ChecksPassed: checks.Passes(),
		ChecksFailed: checks.Fails(),
		P95ReqMs:     reqs.Percentile(95),
		P99ReqMs:     reqs.Percentile(99),
		TrendP95:     p95,
	}
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run executes setup exactly once and, only if it succeeds, fans out the
// virtual users until the configured duration elapses or ctx is cancelled.
//
// The deadline and ctx only gate new iterations and think time. Calls in
// flight get GracefulStop to finish, counted from the deadline or from the
// cancellation, whichever comes first; after that they are abandoned.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if r.Cfg.VUs < 1 {
		return nil, fmt.Errorf("runner: need at least one VU, got %d", r.Cfg.VUs)
	}

	r.log.Info("running setup", zap.String("scenario", sc.Name()))
	setup, err := sc.Setup(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Info("setup complete", zap.String("room_id", setup.RoomID))

	r.startedAt = time.Now()
	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	grace := r.Cfg.GracefulStop
	if grace <= 0 {
		grace = DefaultGracefulStop
	}

	r.log.Info("starting load",
		zap.Int("vus", r.Cfg.VUs),
		zap.Duration("duration", r.Cfg.Duration),
		zap.Duration("think_time", r.Cfg.ThinkTime),
		zap.Duration("graceful_stop", grace))

	deadline := r.startedAt.Add(r.Cfg.Duration)
	loadCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	callCtx, stopCalls := context.WithDeadline(context.WithoutCancel(ctx), deadline.Add(grace))
	defer stopCalls()
	stopOnCancel := context.AfterFunc(ctx, func() {
		select {
		case <-callCtx.Done():
		case <-time.After(grace):
			stopCalls()
		}
	})
	defer stopOnCancel()

	// The group context ends the whole pool when one VU fails.
	g, gctx := errgroup.WithContext(callCtx)
	for i := 1; i <= r.Cfg.VUs; i++ {
		vu := i
		g.Go(func() error {
			return r.runVU(gctx, loadCtx, sc, vu, setup)
		})
	}
	waitErr := g.Wait()
	if callCtx.Err() != nil {
		r.log.Warn("graceful stop expired, in-flight calls abandoned", zap.Duration("graceful_stop", grace))
	}

	if waitErr != nil {
		return nil, waitErr
	}

	res := &Result{
		Scenario:   sc.Name(),
		StartedAt:  r.startedAt,
		Elapsed:    time.Since(r.startedAt),
		Setup:      setup,
		Iterations: r.Stats.Counter(stats.Iterations).Count(),
	}
	r.sendUpdate()
	r.log.Info("load finished",
		zap.Uint64("iterations", res.Iterations),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// runVU is one virtual user: iterations never overlap within a VU. An
// iteration cut off by the graceful stop is not counted.
func (r *Runner) runVU(callCtx, loadCtx context.Context, sc Scenario, vu int, setup SetupContext) error {
	r.activeVUs.Add(1)
	defer r.activeVUs.Add(-1)

	for iter := 0; ; iter++ {
		if loadCtx.Err() != nil || callCtx.Err() != nil {
			return nil
		}

		if err := r.iterate(callCtx, sc, vu, iter, setup); err != nil {
			return err
		}
		if callCtx.Err() != nil {
			return nil
		}
		r.Stats.AddIteration()

		if r.Cfg.ThinkTime <= 0 {
			continue
		}
		if !r.pause(loadCtx, r.Cfg.ThinkTime) {
			return nil
		}
	}
}

// iterate turns a panicking iteration into an error for the group.
func (r *Runner) iterate(ctx context.Context, sc Scenario, vu, iter int, setup SetupContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("vu %d iteration %d panicked: %v", vu, iter, p)
		}
	}()
	sc.Iterate(ctx, vu, iter, setup)
	return nil
}

func (r *Runner) ActiveVUs() int64 {
	return r.activeVUs.Load()
}

// sleepCtx pauses for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
