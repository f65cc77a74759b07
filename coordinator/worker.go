// Copyright 2016 Aleksandr Demakin. All rights reserved.

package coordinator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/nxgtw/shmsync/region"
	ipcsync "github.com/nxgtw/shmsync/sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// WorkerInfo identifies a worker.
type WorkerInfo struct {
	ID   int
	Role Role
}

// CriticalSection is called by workers inside every locked update, while the lock is held.
// For lock-free kinds it is called right before the update.
// If it fails or panics, the worker terminates without releasing the lock.
type CriticalSection func(info WorkerInfo, op int) error

// slots and primitives a worker operates on. All of them point into the same region.
type primitives struct {
	counter  *ipcsync.Counter
	value    *ipcsync.Counter
	sequence *ipcsync.Counter
	mutex    *ipcsync.Mutex
	rw       *ipcsync.RWLock
}

type worker struct {
	info           WorkerInfo
	kind           LockKind
	inbox          chan control
	out            chan<- Message
	acquireTimeout time.Duration
	holdMin        time.Duration
	holdMax        time.Duration
	rnd            *rand.Rand
	critical       CriticalSection
	violations     *atomic.Int64
	metrics        *metrics
	logger         *zap.Logger

	p         primitives
	state     WorkerState
	ops       int
	timeouts  int
	totalWait time.Duration
}

func newWorker(id int, cfg Config, out chan<- Message, opts *options, violations *atomic.Int64, m *metrics) *worker {
	role := cfg.roleAt(id)
	return &worker{
		info:           WorkerInfo{ID: id, Role: role},
		kind:           cfg.LockKind,
		inbox:          make(chan control, 2),
		out:            out,
		acquireTimeout: cfg.acquireTimeout(),
		holdMin:        msToDuration(cfg.HoldMinMs),
		holdMax:        msToDuration(cfg.HoldMaxMs),
		rnd:            rand.New(rand.NewPCG(cfg.Seed, uint64(id))),
		critical:       opts.critical,
		violations:     violations,
		metrics:        m,
		logger:         opts.logger.With(zap.Int("worker", id), zap.String("role", string(role))),
		state:          StateIdle,
	}
}

// run is the body of a worker's goroutine. The goroutine is pinned to its own os thread.
func (w *worker) run(ctx context.Context) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("worker %d panicked: %v", w.info.ID, r)
		}
		if err != nil && ctx.Err() == nil {
			w.logger.Error("worker failed", zap.Error(err))
			w.send(ctx, ErrorMessage{WorkerID: w.info.ID, Message: err.Error()})
		}
	}()
	initMsg, ok := w.receive(ctx).(InitMessage)
	if !ok {
		return w.ctxErrOr(ctx, errors.New("expected init message"))
	}
	if err := w.bind(initMsg); err != nil {
		return err
	}
	start, ok := w.receive(ctx).(StartMessage)
	if !ok {
		return w.ctxErrOr(ctx, errors.New("expected start message"))
	}
	if start.OpCount < 0 {
		return errors.Errorf("invalid op count %d", start.OpCount)
	}
	if start.Delay > 0 {
		select {
		case <-time.After(start.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.logger.Debug("worker started", zap.Int("ops", start.OpCount))
	lastPercent := 0
	for i := 0; i < start.OpCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.do(ctx, i); err != nil {
			return err
		}
		w.ops++
		w.metrics.ops.WithLabelValues(string(w.info.Role), string(w.kind)).Inc()
		if percent := w.ops * 100 / start.OpCount; percent/10 > lastPercent/10 {
			lastPercent = percent
			w.send(ctx, ProgressMessage{WorkerID: w.info.ID, Percent: percent})
		}
	}
	w.logger.Debug("worker done", zap.Int("ops", w.ops), zap.Duration("wait", w.totalWait))
	w.send(ctx, CompleteMessage{
		WorkerID:     w.info.ID,
		OpsCompleted: w.ops,
		TotalWait:    w.totalWait,
		Timeouts:     w.timeouts,
	})
	return nil
}

// bind checks the region handle and creates worker's primitives.
func (w *worker) bind(msg InitMessage) error {
	if msg.WorkerID != w.info.ID || msg.Role != w.info.Role {
		return errors.Errorf("init message for worker %d/%s received by %d/%s", msg.WorkerID, msg.Role, w.info.ID, w.info.Role)
	}
	r := msg.Region
	if r == nil {
		return errors.New("malformed shared-region handle: nil region")
	}
	var err error
	switch w.kind {
	case LockNone, LockAtomic:
		err = w.bindCounter(r, region.CounterSlotName)
	case LockMutex:
		if err = w.bindCounter(r, region.CounterSlotName); err == nil {
			w.p.mutex, err = ipcsync.NewMutex(r)
		}
	case LockRW:
		var valueSlot, seqSlot int
		if valueSlot, err = r.NamedSlot(region.ProtectedValueSlotName); err != nil {
			break
		}
		if seqSlot, err = r.NamedSlot(region.SequenceSlotName); err != nil {
			break
		}
		w.p.value = ipcsync.NewCounter(r, valueSlot)
		w.p.sequence = ipcsync.NewCounter(r, seqSlot)
		w.p.rw, err = ipcsync.NewRWLock(r)
	default:
		err = errors.Errorf("unknown lock kind %q", w.kind)
	}
	return errors.Wrap(err, "malformed shared-region handle")
}

func (w *worker) bindCounter(r *region.Region, name string) error {
	slot, err := r.NamedSlot(name)
	if err != nil {
		return err
	}
	w.p.counter = ipcsync.NewCounter(r, slot)
	return nil
}

// do performs one operation.
func (w *worker) do(ctx context.Context, op int) error {
	switch w.kind {
	case LockNone:
		if err := w.enter(op); err != nil {
			return err
		}
		v := w.p.counter.Load()
		runtime.Gosched()
		w.p.counter.Store(v + 1)
	case LockAtomic:
		if err := w.enter(op); err != nil {
			return err
		}
		w.p.counter.Add(1)
	case LockMutex:
		if err := w.acquire(ctx, w.p.mutex.LockTimeout); err != nil {
			return err
		}
		if w.p.mutex.TryLock() {
			w.violation("mutex is unlocked inside the critical section")
		}
		if err := w.enter(op); err != nil {
			return err
		}
		w.p.counter.Store(w.p.counter.Load() + 1)
		w.p.mutex.Unlock()
		w.setState(ctx, StateIdle)
	case LockRW:
		if w.info.Role == RoleReader {
			return w.read(ctx, op)
		}
		return w.write(ctx, op)
	}
	return nil
}

func (w *worker) read(ctx context.Context, op int) error {
	rw := w.p.rw
	if err := w.acquire(ctx, rw.RLockTimeout); err != nil {
		return err
	}
	if state := rw.State(); state < 1 {
		w.violation(fmt.Sprintf("state is %d while a reader holds the lock", state))
	}
	if err := w.enter(op); err != nil {
		return err
	}
	if v, s := w.p.value.Load(), w.p.sequence.Load(); v != s {
		w.violation(fmt.Sprintf("reader observed value %d with sequence %d", v, s))
	}
	w.hold()
	rw.RUnlock()
	w.setState(ctx, StateIdle)
	return nil
}

func (w *worker) write(ctx context.Context, op int) error {
	rw := w.p.rw
	if err := w.acquire(ctx, rw.LockTimeout); err != nil {
		return err
	}
	if state := rw.State(); state != -1 {
		w.violation(fmt.Sprintf("state is %d while a writer holds the lock", state))
	}
	if err := w.enter(op); err != nil {
		return err
	}
	w.p.value.Store(w.p.value.Load() + 1)
	w.p.sequence.Add(1)
	if w.info.Role == RoleWriter {
		w.hold()
	}
	rw.Unlock()
	w.setState(ctx, StateIdle)
	return nil
}

// acquire calls lock until it succeeds. Between timed out attempts the context is checked,
// so a cancelled run stops workers, which are not inside a critical section.
func (w *worker) acquire(ctx context.Context, lock func(time.Duration) bool) error {
	w.setState(ctx, StateWaiting)
	start := time.Now()
	for !lock(w.acquireTimeout) {
		w.timeouts++
		w.metrics.timeouts.WithLabelValues(string(w.info.Role)).Inc()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	waited := time.Since(start)
	w.totalWait += waited
	w.metrics.wait.WithLabelValues(string(w.info.Role)).Observe(waited.Seconds())
	w.setState(ctx, StateActive)
	return nil
}

func (w *worker) enter(op int) error {
	if w.critical == nil {
		return nil
	}
	return w.critical(w.info, op)
}

func (w *worker) hold() {
	if w.holdMax <= 0 {
		return
	}
	d := w.holdMin
	if spread := w.holdMax - w.holdMin; spread > 0 {
		d += time.Duration(w.rnd.Int64N(int64(spread) + 1))
	}
	time.Sleep(d)
}

func (w *worker) violation(msg string) {
	w.violations.Inc()
	w.metrics.violations.Inc()
	w.logger.Error("invariant violation", zap.String("details", msg))
}

func (w *worker) setState(ctx context.Context, state WorkerState) {
	if w.state == state {
		return
	}
	w.state = state
	w.send(ctx, StateChangedMessage{WorkerID: w.info.ID, State: state})
}

// send delivers a message unless the run has been stopped.
func (w *worker) send(ctx context.Context, msg Message) {
	select {
	case w.out <- msg:
	case <-ctx.Done():
	}
}

func (w *worker) receive(ctx context.Context) control {
	select {
	case msg := <-w.inbox:
		return msg
	case <-ctx.Done():
		return nil
	}
}

func (w *worker) ctxErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
