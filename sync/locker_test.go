// Copyright 2015 Aleksandr Demakin. All rights reserved.

package sync

import (
	"sync"
	"testing"
	"time"

	"github.com/nxgtw/shmsync/region"

	"github.com/stretchr/testify/assert"
)

type lockerCtor func(r *region.Region) (TimedLocker, error)

func newTestRegion(t *testing.T, layout region.Layout) *region.Region {
	r, err := region.New(layout)
	if err != nil {
		t.Fatalf("failed to create region: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func testLockerLock(t *testing.T, layout region.Layout, ctor lockerCtor) bool {
	a := assert.New(t)
	lk, err := ctor(newTestRegion(t, layout))
	if !a.NoError(err) || !a.NotNil(lk) {
		return false
	}
	var wg sync.WaitGroup
	sharedValue := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			lk.Lock()
			for i := 0; i < 1000; i++ {
				sharedValue++
			}
			lk.Unlock()
			wg.Done()
		}()
	}
	wg.Wait()
	return a.Equal(30000, sharedValue)
}

func testLockerTryLock(t *testing.T, layout region.Layout, ctor lockerCtor) bool {
	a := assert.New(t)
	lk, err := ctor(newTestRegion(t, layout))
	if !a.NoError(err) {
		return false
	}
	if !a.True(lk.TryLock()) {
		return false
	}
	a.False(lk.TryLock())
	lk.Unlock()
	a.True(lk.TryLock())
	lk.Unlock()
	return true
}

func testLockerLockTimeout(t *testing.T, layout region.Layout, ctor lockerCtor) bool {
	a := assert.New(t)
	lk, err := ctor(newTestRegion(t, layout))
	if !a.NoError(err) {
		return false
	}
	lk.Lock()
	start := time.Now()
	a.False(lk.LockTimeout(50 * time.Millisecond))
	a.True(time.Since(start) >= 50*time.Millisecond)
	a.False(lk.LockTimeout(0))
	go func() {
		time.Sleep(20 * time.Millisecond)
		lk.Unlock()
	}()
	if !a.True(lk.LockTimeout(5 * time.Second)) {
		return false
	}
	lk.Unlock()
	return true
}

func testLockerTwiceUnlock(t *testing.T, layout region.Layout, ctor lockerCtor) bool {
	a := assert.New(t)
	lk, err := ctor(newTestRegion(t, layout))
	if !a.NoError(err) {
		return false
	}
	lk.Lock()
	lk.Unlock()
	return a.Panics(func() {
		lk.Unlock()
	})
}
