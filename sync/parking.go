// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build !linux

package sync

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	cParkingBuckets = 251
)

// parker is a single blocked waiter. Its channel is closed by a waker.
type parker struct {
	addr unsafe.Pointer
	ch   chan struct{}
}

// parkingBucket holds waiters of all addresses hashed into it.
// A waiter checks the value and enqueues itself under the bucket lock,
// and wakers dequeue under the same lock, so a wakeup cannot fall in between.
type parkingBucket struct {
	mu      sync.Mutex
	waiters []*parker
}

var parkingLot [cParkingBuckets]parkingBucket

func bucketFor(addr unsafe.Pointer) *parkingBucket {
	return &parkingLot[(uintptr(addr)>>2)%cParkingBuckets]
}

func (b *parkingBucket) remove(p *parker) bool {
	for i, w := range b.waiters {
		if w == p {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func waitOnAddr(addr unsafe.Pointer, expected int32, timeout time.Duration) (WaitResult, error) {
	b := bucketFor(addr)
	b.mu.Lock()
	if atomic.LoadInt32((*int32)(addr)) != expected {
		b.mu.Unlock()
		return ValueChanged, nil
	}
	if timeout == 0 {
		b.mu.Unlock()
		return TimedOut, nil
	}
	p := &parker{addr: addr, ch: make(chan struct{})}
	b.waiters = append(b.waiters, p)
	b.mu.Unlock()
	if timeout < 0 {
		<-p.ch
		return Woken, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.ch:
		return Woken, nil
	case <-timer.C:
		b.mu.Lock()
		removed := b.remove(p)
		b.mu.Unlock()
		if !removed {
			// a waker has already dequeued us.
			return Woken, nil
		}
		return TimedOut, nil
	}
}

func wakeAddr(addr unsafe.Pointer, count int32) (int, error) {
	b := bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	var woken int
	kept := b.waiters[:0]
	for _, w := range b.waiters {
		if w.addr == addr && int32(woken) < count {
			close(w.ch)
			woken++
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(b.waiters); i++ {
		b.waiters[i] = nil
	}
	b.waiters = kept
	return woken, nil
}
