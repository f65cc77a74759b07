// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build !unix

package mmf

import "unsafe"

type memoryRegion struct {
	backing []uint64
	data    []byte
	size    int
}

// newMemoryRegion allocates the region on the heap. The go gc does not move heap objects,
// and uint64 backing keeps the data aligned.
func newMemoryRegion(size int) (*memoryRegion, error) {
	backing := make([]uint64, (mappingSize(size)+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), size)
	return &memoryRegion{backing: backing, data: data, size: size}, nil
}

func (region *memoryRegion) Close() error {
	region.backing = nil
	region.data = nil
	region.size = 0
	return nil
}

func (region *memoryRegion) Data() []byte {
	return region.data
}

func (region *memoryRegion) Size() int {
	return region.size
}
