// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package coordinator runs workers, which exercise shared-region primitives,
// and checks the final state of the region against the expected one.
package coordinator

import (
	"context"

	"github.com/nxgtw/shmsync/region"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	logger   *zap.Logger
	reg      prometheus.Registerer
	clock    clockwork.Clock
	critical CriticalSection
}

// Option configures a coordinator.
type Option func(*options)

// WithLogger sets a logger. By default nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer sets a registerer for coordinator's metrics.
// By default metrics are registered on a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithClock sets a clock used for the run timeout and elapsed time.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithCriticalSection sets a function, which is called by workers inside each critical section.
func WithCriticalSection(f CriticalSection) Option {
	return func(o *options) {
		o.critical = f
	}
}

// Coordinator creates a shared region, starts workers and collects their reports.
// A coordinator can be run only once.
type Coordinator struct {
	cfg     Config
	opts    options
	metrics *metrics
	phase   *atomic.String
}

// New validates the config and returns a new coordinator.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	o := options{
		logger: zap.NewNop(),
		reg:    prometheus.NewRegistry(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	m, err := newMetrics(o.reg)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:     cfg,
		opts:    o,
		metrics: m,
		phase:   atomic.NewString(string(PhaseConfigured)),
	}, nil
}

// Run is a shortcut for New followed by Run.
func Run(ctx context.Context, cfg Config, opts ...Option) (*RunReport, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx)
}

// Phase returns current phase of the run.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Run performs the run and returns its report.
// An error is returned only if the run could not be started. Aborted runs are reported in the report.
// If the run was aborted, some workers may still be running, when Run returns.
// They stop as soon as they leave their critical sections, then the region is released.
func (c *Coordinator) Run(ctx context.Context) (*RunReport, error) {
	if !c.phase.CompareAndSwap(string(PhaseConfigured), string(PhaseRunning)) {
		return nil, errors.New("coordinator has already been run")
	}
	logger := c.opts.logger.With(zap.String("lock", string(c.cfg.LockKind)))
	r, err := region.New(c.cfg.Layout())
	if err != nil {
		c.phase.Store(string(PhaseAborted))
		return nil, errors.Wrap(err, "failed to create shared region")
	}
	report := newRunReport(c.cfg)
	report.Phase = PhaseRunning
	start := c.opts.clock.Now()
	logger.Info("run started",
		zap.Int("workers", c.cfg.WorkerCount),
		zap.Int("ops", c.cfg.OpsPerWorker),
		zap.Duration("timeout", c.cfg.runTimeout()))

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	out := make(chan Message)
	violations := atomic.NewInt64(0)
	workers := make([]*worker, c.cfg.WorkerCount)
	for i := range workers {
		w := newWorker(i, c.cfg, out, &c.opts, violations, c.metrics)
		workers[i] = w
		g.Go(func() error {
			return w.run(gctx)
		})
	}
	for _, w := range workers {
		w.inbox <- InitMessage{WorkerID: w.info.ID, Role: w.info.Role, Region: r}
		w.inbox <- StartMessage{OpCount: c.cfg.OpsPerWorker, Delay: msToDuration(c.cfg.DelayMs)}
	}

	phase, reason := c.wait(ctx, out, report)
	report.setElapsed(c.opts.clock.Since(start))
	cancel()
	if phase == PhaseAllDone {
		if err := g.Wait(); err != nil {
			logger.Warn("worker returned an error after completion", zap.Error(err))
		}
		c.check(r, report, violations.Load())
		if err := r.Close(); err != nil {
			logger.Warn("failed to close shared region", zap.Error(err))
		}
	} else {
		report.Verdict = Verdict{Passed: false, Reason: reason}
		c.observe(r, report)
		report.Violations = violations.Load()
		go func() {
			_ = g.Wait()
			if err := r.Close(); err != nil {
				logger.Warn("failed to close shared region", zap.Error(err))
			}
		}()
	}
	report.Phase = phase
	c.phase.Store(string(phase))
	c.metrics.runs.WithLabelValues(string(phase), report.Verdict.Reason).Inc()
	logger.Info("run finished",
		zap.String("phase", string(phase)),
		zap.Bool("passed", report.Verdict.Passed),
		zap.String("reason", report.Verdict.Reason),
		zap.Int64("expected", report.Expected),
		zap.Int64("observed", report.Observed),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// wait collects worker messages until all workers complete, or the run is aborted.
func (c *Coordinator) wait(ctx context.Context, out <-chan Message, report *RunReport) (Phase, string) {
	timer := c.opts.clock.NewTimer(c.cfg.runTimeout())
	defer timer.Stop()
	remaining := c.cfg.WorkerCount
	for remaining > 0 {
		select {
		case msg := <-out:
			report.apply(msg)
			switch m := msg.(type) {
			case CompleteMessage:
				remaining--
			case ErrorMessage:
				return PhaseAborted, m.Message
			}
		case <-timer.Chan():
			c.opts.logger.Error("run timed out", zap.Int("remaining", remaining))
			return PhaseAborted, ReasonHang
		case <-ctx.Done():
			return PhaseAborted, ReasonCancelled
		}
	}
	return PhaseAllDone, ""
}

// observe fills expected and observed values of the report.
func (c *Coordinator) observe(r *region.Region, report *RunReport) {
	roles := c.cfg.RoleMix()
	ops := int64(c.cfg.OpsPerWorker)
	snapshot := r.Snapshot()
	if c.cfg.LockKind == LockRW {
		report.Expected = int64(roles.Writers+roles.Incrementers) * ops
		report.ExpectedSequence = report.Expected
		report.Observed = int64(snapshot[region.ProtectedValueSlot])
		report.ObservedSequence = int64(snapshot[region.SequenceSlot])
		return
	}
	report.Expected = int64(roles.Incrementers) * ops
	offset, _ := r.Layout().Offset(region.CounterSlotName)
	report.Observed = int64(snapshot[offset])
}

// check is the oracle. It compares the final state of the region with the expected one.
func (c *Coordinator) check(r *region.Region, report *RunReport, violations int64) {
	c.observe(r, report)
	report.Violations = violations
	passed := violations == 0 && report.Observed == report.Expected
	switch c.cfg.LockKind {
	case LockRW:
		snapshot := r.Snapshot()
		passed = passed &&
			report.ObservedSequence == report.ExpectedSequence &&
			snapshot[region.StateSlot] == 0 &&
			snapshot[region.WaitingWritersSlot] == 0
	case LockMutex:
		passed = passed && r.Snapshot()[region.MutexSlot] == 0
	}
	if passed {
		report.Verdict = Verdict{Passed: true, Reason: ReasonOK}
		return
	}
	report.Verdict = Verdict{Passed: false, Reason: ReasonRace}
}
