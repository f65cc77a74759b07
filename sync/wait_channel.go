// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"math"
	"time"

	"github.com/nxgtw/shmsync/region"
)

const (
	cWakeAll = math.MaxInt32
)

// WaitResult is the outcome of WaitChannel.Wait.
type WaitResult int

const (
	// Woken means, that the waiter was woken by a notify call, or spuriously.
	Woken WaitResult = iota
	// TimedOut means, that the wait interval elapsed.
	TimedOut
	// ValueChanged means, that the slot did not hold the expected value, so the caller did not block.
	ValueChanged
)

func (r WaitResult) String() string {
	switch r {
	case Woken:
		return "woken"
	case TimedOut:
		return "timedOut"
	case ValueChanged:
		return "valueChanged"
	default:
		return "unknown"
	}
}

// WaitChannel implements wait/notify semantics on the slots of a region.
// Checking the slot value and going to sleep is a single atomic step for notifiers,
// so a notification, which follows a value change, is never lost.
// Callers must re-validate their condition after any result.
type WaitChannel struct {
	r *region.Region
}

// NewWaitChannel returns a wait channel for the slots of the region.
func NewWaitChannel(r *region.Region) *WaitChannel {
	return &WaitChannel{r: r}
}

// Wait blocks, if the slot holds expected value, until a notification or the timeout.
// Negative timeout means 'wait forever'. It panics, if the slot is out of range.
func (wc *WaitChannel) Wait(slot int, expected int32, timeout time.Duration) (WaitResult, error) {
	return waitOnAddr(wc.r.SlotPointer(slot), expected, timeout)
}

// NotifyOne wakes at most one waiter of the slot. Returns the number of woken waiters.
func (wc *WaitChannel) NotifyOne(slot int) (int, error) {
	return wakeAddr(wc.r.SlotPointer(slot), 1)
}

// NotifyAll wakes all waiters of the slot. Returns the number of woken waiters.
func (wc *WaitChannel) NotifyAll(slot int) (int, error) {
	return wakeAddr(wc.r.SlotPointer(slot), cWakeAll)
}
