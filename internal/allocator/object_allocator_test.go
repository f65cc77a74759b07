// Copyright 2016 Aleksandr Demakin. All rights reserved.

package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestInt32SliceFromBytes(t *testing.T) {
	a := assert.New(t)
	backing := make([]int32, 4)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), 16)
	sl, err := Int32SliceFromBytes(data, 4)
	if !a.NoError(err) {
		return
	}
	a.Len(sl, 4)
	sl[2] = 0x01027FFF
	a.Equal(int32(0x01027FFF), backing[2])
	a.Equal(unsafe.Pointer(&backing[0]), ByteSliceData(data))
}

func TestInt32SliceFromBytesErrors(t *testing.T) {
	a := assert.New(t)
	backing := make([]int32, 4)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), 16)
	_, err := Int32SliceFromBytes(data, 5)
	a.Error(err)
	_, err = Int32SliceFromBytes(data, -1)
	a.Error(err)
	_, err = Int32SliceFromBytes(data[1:], 2)
	a.Error(err)
	sl, err := Int32SliceFromBytes(nil, 0)
	a.NoError(err)
	a.Empty(sl)
}

func TestAdvancePointer(t *testing.T) {
	arr := [3]int32{1, 2, 3}
	p := AdvancePointer(unsafe.Pointer(&arr[0]), 8)
	assert.Equal(t, int32(3), *(*int32)(p))
}
