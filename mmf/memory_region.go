// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package mmf provides memory regions, which are not managed by the go runtime.
// Data in such regions never moves, so its addresses can be passed to the kernel,
// for instance, as futex words.
package mmf

import (
	"os"

	"github.com/pkg/errors"
)

// MemoryRegion is a mmapped area of anonymous shared memory.
// It is visible to every goroutine and thread of the process.
type MemoryRegion struct {
	*memoryRegion
}

// NewMemoryRegion maps a new zero-filled region of the given size.
//	size - region size in bytes. the mapping itself is rounded up to the page size,
//	but Data() returns exactly size bytes.
func NewMemoryRegion(size int) (*MemoryRegion, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid mapping size %d", size)
	}
	impl, err := newMemoryRegion(size)
	if err != nil {
		return nil, err
	}
	return &MemoryRegion{impl}, nil
}

// Close unmaps the region. Any access to region's data after Close is a programming error.
func (region *MemoryRegion) Close() error {
	return region.memoryRegion.Close()
}

// Data returns region's data.
func (region *MemoryRegion) Data() []byte {
	return region.memoryRegion.Data()
}

// Size returns the size of the region, which was requested by the caller.
func (region *MemoryRegion) Size() int {
	return region.memoryRegion.Size()
}

func mappingSize(size int) int {
	page := os.Getpagesize()
	if rem := size % page; rem != 0 {
		size += page - rem
	}
	return size
}
