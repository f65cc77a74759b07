// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package sync

import (
	"time"
	"unsafe"

	"github.com/nxgtw/shmsync/internal/common"
)

// FutexWait checks if the value at addr equals the given value.
// If it doesn't, Wait returns EWOULDBLOCK.
// Otherwise, it waits for the Wake call on the futex for not longer, than timeout.
func FutexWait(addr unsafe.Pointer, value int32, timeout time.Duration) error {
	ts := common.TimeoutToTimeSpec(timeout)
	_, err := futex(addr, cFUTEX_WAIT|cFUTEX_PRIVATE_FLAG, uint32(value), unsafe.Pointer(ts))
	return err
}

// FutexWake wakes count threads waiting on the futex.
// Returns the number of woken threads.
func FutexWake(addr unsafe.Pointer, count int32) (int, error) {
	woken, err := futex(addr, cFUTEX_WAKE|cFUTEX_PRIVATE_FLAG, uint32(count), nil)
	if err != nil {
		return 0, err
	}
	return int(woken), nil
}

func waitOnAddr(addr unsafe.Pointer, expected int32, timeout time.Duration) (WaitResult, error) {
	dl := newDeadline(timeout)
	for {
		err := FutexWait(addr, expected, timeout)
		switch {
		case err == nil:
			return Woken, nil
		case common.IsValueMismatchErr(err):
			return ValueChanged, nil
		case common.IsTimeoutErr(err):
			return TimedOut, nil
		case common.IsInterruptedSyscallErr(err):
			var ok bool
			if timeout, ok = dl.remaining(); !ok {
				return TimedOut, nil
			}
		default:
			return Woken, err
		}
	}
}

func wakeAddr(addr unsafe.Pointer, count int32) (int, error) {
	return FutexWake(addr, count)
}
