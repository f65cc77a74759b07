// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"sync/atomic"

	"github.com/nxgtw/shmsync/region"
)

// Counter performs sequentially consistent read-modify-write operations on a single region slot.
type Counter struct {
	addr *int32
}

// NewCounter returns a counter for the given slot. It panics, if the slot is out of region's range.
func NewCounter(r *region.Region, slot int) *Counter {
	return &Counter{addr: r.Slot(slot)}
}

// Load returns current value.
func (c *Counter) Load() int32 {
	return atomic.LoadInt32(c.addr)
}

// Store sets new value.
func (c *Counter) Store(value int32) {
	atomic.StoreInt32(c.addr, value)
}

// Add adds delta to the value and returns the value before the addition.
func (c *Counter) Add(delta int32) int32 {
	return atomic.AddInt32(c.addr, delta) - delta
}

// Swap sets new value and returns the old one.
func (c *Counter) Swap(value int32) int32 {
	return atomic.SwapInt32(c.addr, value)
}

// CompareExchange sets the value to new, if it equals expected.
// It returns the value observed at the slot, so the exchange happened if and only if
// the result equals expected.
func (c *Counter) CompareExchange(expected, new int32) int32 {
	for {
		if atomic.CompareAndSwapInt32(c.addr, expected, new) {
			return expected
		}
		// the value may have been changed back to 'expected' between the cas and the load.
		if observed := atomic.LoadInt32(c.addr); observed != expected {
			return observed
		}
	}
}
