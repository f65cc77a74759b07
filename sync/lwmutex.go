// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"time"

	"github.com/nxgtw/shmsync/region"

	"github.com/pkg/errors"
)

const (
	cMutexSpinCount          = 100
	cMutexUnlocked           = int32(0)
	cMutexLockedNoWaiters    = int32(1)
	cMutexLockedHaveWaiters  = int32(2)
	errUnlockOfUnlockedMutex = "unlock of unlocked mutex"
)

// Mutex is a compare-and-swap mutex operating on a single region slot.
// It tries to minimize the amount of syscalls needed to do locking:
// the slot is 0 when unlocked, 1 when locked and 2 when locked and someone may be waiting.
// This implementation is based on a paper 'Futexes Are Tricky' by Ulrich Drepper.
type Mutex struct {
	state *Counter
	wc    *WaitChannel
	slot  int
}

// NewMutex returns a mutex, which uses the 'mutex' slot of the region.
func NewMutex(r *region.Region) (*Mutex, error) {
	slot, err := r.NamedSlot(region.MutexSlotName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find mutex state")
	}
	return &Mutex{state: NewCounter(r, slot), wc: NewWaitChannel(r), slot: slot}, nil
}

// Lock locks the mutex. It panics on an error.
func (m *Mutex) Lock() {
	m.lockTimeout(-1)
}

// TryLock makes one attempt to lock the mutex. It return true on success and false otherwise.
func (m *Mutex) TryLock() bool {
	return m.state.CompareExchange(cMutexUnlocked, cMutexLockedNoWaiters) == cMutexUnlocked
}

// LockTimeout tries to lock the mutex, waiting for not more, than timeout.
func (m *Mutex) LockTimeout(timeout time.Duration) bool {
	return m.lockTimeout(timeout)
}

// Unlock releases the mutex. It panics on an error, or if the mutex is not locked.
func (m *Mutex) Unlock() {
	switch old := m.state.Add(-1); old {
	case cMutexLockedNoWaiters:
		return
	case cMutexLockedHaveWaiters:
		m.state.Store(cMutexUnlocked)
		if _, err := m.wc.NotifyOne(m.slot); err != nil {
			panic(err)
		}
	default:
		m.state.Add(1)
		panic(errUnlockOfUnlockedMutex)
	}
}

func (m *Mutex) lockTimeout(timeout time.Duration) bool {
	for i := 0; i < cMutexSpinCount; i++ {
		if m.TryLock() {
			return true
		}
	}
	dl := newDeadline(timeout)
	old := m.state.Load()
	if old != cMutexLockedHaveWaiters {
		old = m.state.Swap(cMutexLockedHaveWaiters)
	}
	for old != cMutexUnlocked {
		left, ok := dl.remaining()
		if !ok {
			return false
		}
		if _, err := m.wc.Wait(m.slot, cMutexLockedHaveWaiters, left); err != nil {
			panic(err)
		}
		old = m.state.Swap(cMutexLockedHaveWaiters)
	}
	return true
}
