// Copyright 2016 Aleksandr Demakin. All rights reserved.

package allocator

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
)

const int32Size = int(unsafe.Sizeof(int32(0)))

// ByteSliceData returns a pointer to the data of the given byte slice.
func ByteSliceData(slice []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(slice))
}

// Int32SliceFromBytes returns an int32 slice of the given length, which uses the same memory as the byte slice.
// The memory must be 4-byte aligned and hold at least 4*length bytes.
func Int32SliceFromBytes(memory []byte, length int) ([]int32, error) {
	if length < 0 {
		return nil, errors.Errorf("invalid length %d", length)
	}
	if len(memory) < length*int32Size {
		return nil, errors.Errorf("buffer of %d bytes is too small for %d int32 values", len(memory), length)
	}
	if length == 0 {
		return []int32{}, nil
	}
	ptr := ByteSliceData(memory)
	if uintptr(ptr)%uintptr(int32Size) != 0 {
		return nil, errors.New("buffer is not aligned for int32 access")
	}
	return unsafe.Slice((*int32)(ptr), length), nil
}

// AdvancePointer adds shift value to 'p' pointer.
func AdvancePointer(p unsafe.Pointer, shift uintptr) unsafe.Pointer {
	return unsafe.Add(p, shift)
}

// Use ensures, that the object referenced by p is kept live until that point.
// It must be called after passing raw addresses to syscalls.
func Use(p unsafe.Pointer) {
	runtime.KeepAlive(p)
}
