// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"fmt"
	"sync"
	"time"

	"github.com/nxgtw/shmsync/region"

	"github.com/pkg/errors"
)

// rwlock state values. A positive state is the number of active readers.
const (
	cRWUnlocked = int32(0)
	cRWWriter   = int32(-1)

	// cRWQueuedWriterWait limits a single wait of a reader, which is held back by queued writers.
	cRWQueuedWriterWait = 10 * time.Millisecond
)

// RWLock is a writer-priority reader/writer lock built from two region slots:
// 'state' (0 - unlocked, n > 0 - n readers, -1 - a writer) and 'waitingWriters'.
// While any writer is waiting, new readers are not admitted, so a stream of readers
// cannot starve writers. Readers held back by a writer holding the lock wait on 'state',
// readers held back only by queued writers wait on 'waitingWriters'. Writers notify
// 'waitingWriters' waiters every time they leave the queue.
//
// There is no ownership tracking. If a holder never releases the lock,
// for instance, because its goroutine panicked inside the critical section,
// every future acquirer blocks forever (or until its timeout).
type RWLock struct {
	state          *Counter
	waitingWriters *Counter
	wc             *WaitChannel
	stateSlot      int
	wwSlot         int
}

// NewRWLock returns a rwlock over 'state' and 'waitingWriters' slots of the region.
func NewRWLock(r *region.Region) (*RWLock, error) {
	stateSlot, err := r.NamedSlot(region.StateSlotName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find lock state")
	}
	wwSlot, err := r.NamedSlot(region.WaitingWritersSlotName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find waiting writers counter")
	}
	return &RWLock{
		state:          NewCounter(r, stateSlot),
		waitingWriters: NewCounter(r, wwSlot),
		wc:             NewWaitChannel(r),
		stateSlot:      stateSlot,
		wwSlot:         wwSlot,
	}, nil
}

// State returns current lock state.
func (rw *RWLock) State() int32 {
	return rw.state.Load()
}

// WaitingWriters returns the number of writers queued to acquire the lock.
func (rw *RWLock) WaitingWriters() int32 {
	return rw.waitingWriters.Load()
}

// RLock locks the mutex for reading. It panics on an error.
func (rw *RWLock) RLock() {
	rw.rlock(newDeadline(-1))
}

// RLockTimeout tries to lock the mutex for reading, waiting for not more, than timeout.
func (rw *RWLock) RLockTimeout(timeout time.Duration) bool {
	return rw.rlock(newDeadline(timeout))
}

// TryRLock makes one attempt to lock the mutex for reading.
// It fails, if a writer holds the lock or waits for it.
func (rw *RWLock) TryRLock() bool {
	var b backoff
	for {
		old := rw.state.Load()
		if old == cRWWriter || rw.waitingWriters.Load() > 0 {
			return false
		}
		if rw.state.CompareExchange(old, old+1) == old {
			return true
		}
		b.pause()
	}
}

// RUnlock decreases the number of readers. If it becomes 0, writers (if any) can proceed.
// It panics, if the mutex is not locked for reading.
func (rw *RWLock) RUnlock() {
	var b backoff
	for {
		old := rw.state.Load()
		if old <= cRWUnlocked {
			panic(errUnlockOfUnlockedMutex)
		}
		if rw.state.CompareExchange(old, old-1) != old {
			b.pause()
			continue
		}
		if old == 1 {
			rw.notifyAll()
		}
		return
	}
}

// Lock locks the mutex exclusively. It panics on an error.
func (rw *RWLock) Lock() {
	rw.lock(newDeadline(-1))
}

// LockTimeout tries to lock the mutex exclusively, waiting for not more, than timeout.
// The timeout limits the entire operation.
func (rw *RWLock) LockTimeout(timeout time.Duration) bool {
	return rw.lock(newDeadline(timeout))
}

// TryLock makes one attempt to lock the mutex exclusively.
func (rw *RWLock) TryLock() bool {
	return rw.state.CompareExchange(cRWUnlocked, cRWWriter) == cRWUnlocked
}

// Unlock releases the mutex. It panics, if the mutex is not locked for writing.
func (rw *RWLock) Unlock() {
	if rw.state.CompareExchange(cRWWriter, cRWUnlocked) != cRWWriter {
		panic(errUnlockOfUnlockedMutex)
	}
	rw.notifyAll()
}

// RLocker returns a Locker interface that implements
// the Lock and Unlock methods by calling rw.RLock and rw.RUnlock.
func (rw *RWLock) RLocker() sync.Locker {
	return (*rlocker)(rw)
}

type rlocker RWLock

func (r *rlocker) Lock()   { (*RWLock)(r).RLock() }
func (r *rlocker) Unlock() { (*RWLock)(r).RUnlock() }

func (rw *RWLock) rlock(dl deadline) bool {
	var b backoff
	for {
		old := rw.state.Load()
		if old < cRWWriter {
			panic(fmt.Sprintf("invalid rwlock state %d", old))
		}
		if old == cRWWriter {
			if !rw.waitState(old, dl) {
				return false
			}
			continue
		}
		if writers := rw.waitingWriters.Load(); writers > 0 {
			if !rw.waitQueuedWriters(writers, dl) {
				return false
			}
			continue
		}
		if rw.state.CompareExchange(old, old+1) == old {
			return true
		}
		b.pause()
	}
}

func (rw *RWLock) lock(dl deadline) bool {
	rw.waitingWriters.Add(1)
	for {
		old := rw.state.CompareExchange(cRWUnlocked, cRWWriter)
		if old == cRWUnlocked {
			rw.leaveQueue()
			return true
		}
		if !rw.waitState(old, dl) {
			rw.leaveQueue()
			return false
		}
	}
}

// leaveQueue removes a writer from the queue and wakes readers waiting for the queue to change.
func (rw *RWLock) leaveQueue() {
	rw.waitingWriters.Add(-1)
	if _, err := rw.wc.NotifyAll(rw.wwSlot); err != nil {
		panic(err)
	}
}

// waitQueuedWriters blocks while the number of queued writers equals observed,
// but not longer, than cRWQueuedWriterWait. It returns false, if the deadline has passed.
func (rw *RWLock) waitQueuedWriters(observed int32, dl deadline) bool {
	left, ok := dl.remaining()
	if !ok {
		return false
	}
	if left < 0 || left > cRWQueuedWriterWait {
		left = cRWQueuedWriterWait
	}
	if _, err := rw.wc.Wait(rw.wwSlot, observed, left); err != nil {
		panic(err)
	}
	return true
}

// waitState blocks while the state equals observed. It returns false, if the deadline has passed.
func (rw *RWLock) waitState(observed int32, dl deadline) bool {
	left, ok := dl.remaining()
	if !ok {
		return false
	}
	if _, err := rw.wc.Wait(rw.stateSlot, observed, left); err != nil {
		panic(err)
	}
	return true
}

func (rw *RWLock) notifyAll() {
	if _, err := rw.wc.NotifyAll(rw.stateSlot); err != nil {
		panic(err)
	}
}
