// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build unix

package mmf

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type memoryRegion struct {
	data []byte
	size int
}

func newMemoryRegion(size int) (*memoryRegion, error) {
	data, err := unix.Mmap(-1, 0, mappingSize(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "mmap failed")
	}
	return &memoryRegion{data: data, size: size}, nil
}

func (region *memoryRegion) Close() error {
	if region.data != nil {
		err := unix.Munmap(region.data)
		region.data = nil
		region.size = 0
		return errors.Wrap(err, "munmap failed")
	}
	return nil
}

func (region *memoryRegion) Data() []byte {
	if region.data == nil {
		return nil
	}
	return region.data[:region.size:region.size]
}

func (region *memoryRegion) Size() int {
	return region.size
}
