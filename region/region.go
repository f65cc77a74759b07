// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package region implements a fixed-size block of int32 slots shared by all workers of a run.
//
// Every slot of a region must be accessed only with atomic operations,
// see the Counter type from the sync package.
package region

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/nxgtw/shmsync/internal/allocator"
	"github.com/nxgtw/shmsync/mmf"

	"github.com/pkg/errors"
)

// Region is a set of int32 slots placed into a memory region, which is never moved by the runtime.
// A region is created once per run, and all workers hold a pointer to the same object.
type Region struct {
	layout Layout
	mem    *mmf.MemoryRegion
	slots  []int32
}

// New creates a zero-filled region for the given layout.
// The size of region's data is exactly layout.Size() bytes.
func New(layout Layout) (*Region, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid layout")
	}
	mem, err := mmf.NewMemoryRegion(layout.Size())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memory region")
	}
	slots, err := allocator.Int32SliceFromBytes(mem.Data(), layout.SlotCount())
	if err != nil {
		mem.Close()
		return nil, errors.Wrap(err, "failed to map slots")
	}
	return &Region{layout: layout, mem: mem, slots: slots}, nil
}

// Layout returns region's layout.
func (r *Region) Layout() Layout {
	return r.layout
}

// SlotCount returns the number of slots.
func (r *Region) SlotCount() int {
	return len(r.slots)
}

// Size returns the size of region's data in bytes.
func (r *Region) Size() int {
	return r.mem.Size()
}

// Slot returns the address of a slot. It panics, if the offset is out of range.
func (r *Region) Slot(offset int) *int32 {
	if offset < 0 || offset >= len(r.slots) {
		panic(fmt.Sprintf("slot offset %d is out of range [0, %d)", offset, len(r.slots)))
	}
	return &r.slots[offset]
}

// SlotPointer returns the address of a slot as an unsafe pointer.
func (r *Region) SlotPointer(offset int) unsafe.Pointer {
	r.Slot(offset)
	return allocator.AdvancePointer(allocator.ByteSliceData(r.mem.Data()), uintptr(offset*SlotSize))
}

// NamedSlot returns the offset of a slot with the given name.
func (r *Region) NamedSlot(name string) (int, error) {
	off, ok := r.layout.Offset(name)
	if !ok {
		return -1, errors.Errorf("layout %q has no %q slot", r.layout.Name, name)
	}
	return off, nil
}

// Init atomically stores initial slot values. It must be called before the region is shared.
func (r *Region) Init(values map[int]int32) {
	for off, v := range values {
		atomic.StoreInt32(r.Slot(off), v)
	}
}

// Snapshot atomically loads all slots one by one.
// There is no ordering between loads of different slots.
func (r *Region) Snapshot() []int32 {
	result := make([]int32, len(r.slots))
	for i := range r.slots {
		result[i] = atomic.LoadInt32(&r.slots[i])
	}
	return result
}

// Close releases region's memory. It must not be called while any worker uses the region.
func (r *Region) Close() error {
	r.slots = nil
	return r.mem.Close()
}
