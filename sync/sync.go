// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package sync implements synchronization primitives over the slots of a shared region:
// atomic counters, a futex-style wait channel, a cas mutex and a writer-priority rwlock.
// None of them relies on a runtime-provided mutex.
package sync

import (
	"sync"
	"time"
)

// all lockers must satisfy the same minimal interface.
var (
	_ TimedLocker = (*Mutex)(nil)
	_ TimedLocker = (*RWLock)(nil)
)

// TimedLocker is a locker, whose lock operation can be limited with duration.
type TimedLocker interface {
	sync.Locker
	// TryLock makes one attempt to lock the locker.
	TryLock() bool
	// LockTimeout tries to lock the locker, waiting for not more, than timeout.
	LockTimeout(timeout time.Duration) bool
}

// deadline limits the entire acquire operation, not a single wait.
type deadline struct {
	at       time.Time
	infinite bool
}

func newDeadline(timeout time.Duration) deadline {
	if timeout < 0 {
		return deadline{infinite: true}
	}
	return deadline{at: time.Now().Add(timeout)}
}

// remaining returns the time left, or false, if the deadline has passed.
// for infinite deadlines it returns a negative duration.
func (d deadline) remaining() (time.Duration, bool) {
	if d.infinite {
		return -1, true
	}
	left := time.Until(d.at)
	if left <= 0 {
		return 0, false
	}
	return left, true
}
