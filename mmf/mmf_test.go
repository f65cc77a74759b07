// Copyright 2015 Aleksandr Demakin. All rights reserved.

package mmf

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRegionSize(t *testing.T) {
	a := assert.New(t)
	for _, size := range []int{4, 16, os.Getpagesize(), os.Getpagesize() + 4} {
		region, err := NewMemoryRegion(size)
		if !a.NoError(err) {
			return
		}
		a.Equal(size, region.Size())
		a.Len(region.Data(), size)
		for _, b := range region.Data() {
			if !a.Zero(b) {
				break
			}
		}
		a.NoError(region.Close())
		a.Nil(region.Data())
		a.NoError(region.Close())
	}
}

func TestMemoryRegionInvalidSize(t *testing.T) {
	a := assert.New(t)
	_, err := NewMemoryRegion(0)
	a.Error(err)
	_, err = NewMemoryRegion(-8)
	a.Error(err)
}

func TestMemoryRegionAlignment(t *testing.T) {
	region, err := NewMemoryRegion(16)
	if !assert.NoError(t, err) {
		return
	}
	defer region.Close()
	assert.Zero(t, uintptr(unsafe.Pointer(&region.Data()[0]))%8)
}

func TestMemoryRegionSharedBetweenGoroutines(t *testing.T) {
	const (
		jobs = 8
		incs = 10000
	)
	region, err := NewMemoryRegion(4)
	if !assert.NoError(t, err) {
		return
	}
	defer region.Close()
	ptr := (*int32)(unsafe.Pointer(&region.Data()[0]))
	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < incs; j++ {
				atomic.AddInt32(ptr, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(jobs*incs), atomic.LoadInt32(ptr))
}
