// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build unix

package common

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// IsTimeoutErr returns true, if a timed wait syscall failed because its interval elapsed.
func IsTimeoutErr(err error) bool {
	return SyscallErrHasCode(err, syscall.ETIMEDOUT)
}

// IsValueMismatchErr returns true, if a wait syscall refused to block
// because the watched value differs from the expected one.
func IsValueMismatchErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EAGAIN)
}

// TimeoutToTimeSpec converts a relative timeout into a timespec.
// Negative timeout means 'wait forever' and results in a nil pointer.
func TimeoutToTimeSpec(timeout time.Duration) *unix.Timespec {
	if timeout >= 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		return &ts
	}
	return nil
}
