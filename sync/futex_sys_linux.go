// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"os"
	"unsafe"

	"github.com/nxgtw/shmsync/internal/allocator"

	"golang.org/x/sys/unix"
)

const (
	cFUTEX_WAIT = 0
	cFUTEX_WAKE = 1

	cFUTEX_PRIVATE_FLAG = 128
)

func futex(addr unsafe.Pointer, op int32, val uint32, ts unsafe.Pointer) (int32, error) {
	r1, _, err := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(addr),
		uintptr(op),
		uintptr(val),
		uintptr(ts),
		0,
		0)
	allocator.Use(addr)
	allocator.Use(ts)
	if err != 0 {
		return 0, os.NewSyscallError("FUTEX", err)
	}
	return int32(r1), nil
}
