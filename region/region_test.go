// Copyright 2016 Aleksandr Demakin. All rights reserved.

package region

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredefinedLayouts(t *testing.T) {
	a := assert.New(t)
	for _, l := range Layouts() {
		a.NoError(l.Validate(), l.Name)
		a.Equal(SlotSize*len(l.Slots), l.Size())
	}
	a.Equal(16, RWLockLayout.Size())
	a.Equal(4, CounterLayout.Size())
	off, ok := RWLockLayout.Offset(SequenceSlotName)
	a.True(ok)
	a.Equal(SequenceSlot, off)
	_, ok = CounterLayout.Offset(StateSlotName)
	a.False(ok)
}

func TestLayoutValidate(t *testing.T) {
	a := assert.New(t)
	a.Error(Layout{Name: "empty"}.Validate())
	a.Error(Layout{Slots: []Slot{{"a", 0}, {"a", 1}}}.Validate())
	a.Error(Layout{Slots: []Slot{{"a", 0}, {"b", 0}}}.Validate())
	a.Error(Layout{Slots: []Slot{{"a", 0}, {"b", 2}}}.Validate())
	a.Error(Layout{Slots: []Slot{{"", 0}}}.Validate())
	a.Error(Layout{Slots: []Slot{{"a", -1}}}.Validate())
	a.NoError(Layout{Slots: []Slot{{"b", 1}, {"a", 0}}}.Validate())
}

func TestLayoutRoundTrip(t *testing.T) {
	a := assert.New(t)
	for _, l := range Layouts() {
		data, err := MarshalLayout(l)
		require.NoError(t, err)
		decoded, err := UnmarshalLayout(data)
		require.NoError(t, err)
		a.Equal(l, decoded)
	}
	_, err := UnmarshalLayout([]byte("name: x\nslots:\n- name: a\n  offset: 3\n"))
	a.Error(err)
	_, err = UnmarshalLayout([]byte("name: x\nunknown: 1\n"))
	a.Error(err)
}

func TestLayoutByName(t *testing.T) {
	l, ok := LayoutByName("rwlock")
	assert.True(t, ok)
	assert.Equal(t, RWLockLayout, l)
	_, ok = LayoutByName("nope")
	assert.False(t, ok)
}

func TestNewRegion(t *testing.T) {
	a := assert.New(t)
	r, err := New(RWLockLayout)
	require.NoError(t, err)
	defer r.Close()
	a.Equal(4, r.SlotCount())
	a.Equal(16, r.Size())
	a.Equal([]int32{0, 0, 0, 0}, r.Snapshot())
	r.Init(map[int]int32{ProtectedValueSlot: 7, SequenceSlot: 2})
	a.Equal([]int32{0, 0, 7, 2}, r.Snapshot())
	off, err := r.NamedSlot(WaitingWritersSlotName)
	a.NoError(err)
	a.Equal(WaitingWritersSlot, off)
	_, err = r.NamedSlot(MutexSlotName)
	a.Error(err)
}

func TestNewRegionInvalidLayout(t *testing.T) {
	_, err := New(Layout{Name: "bad"})
	assert.Error(t, err)
}

func TestRegionSlotOutOfRange(t *testing.T) {
	r, err := New(CounterLayout)
	require.NoError(t, err)
	defer r.Close()
	assert.Panics(t, func() { r.Slot(1) })
	assert.Panics(t, func() { r.Slot(-1) })
	assert.NotPanics(t, func() { r.Slot(CounterSlot) })
	assert.Panics(t, func() { r.SlotPointer(1) })
}

func TestRegionSlotPointer(t *testing.T) {
	r, err := New(RWLockLayout)
	require.NoError(t, err)
	defer r.Close()
	for i := 0; i < r.SlotCount(); i++ {
		assert.Equal(t, unsafe.Pointer(r.Slot(i)), r.SlotPointer(i))
	}
	r.Init(map[int]int32{SequenceSlot: 7})
	assert.Equal(t, int32(7), atomic.LoadInt32((*int32)(r.SlotPointer(SequenceSlot))))
}

func TestRegionSlotsAreIndependent(t *testing.T) {
	const (
		jobs = 4
		incs = 5000
	)
	r, err := New(RWLockLayout)
	require.NoError(t, err)
	defer r.Close()
	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		go func(slot int) {
			defer wg.Done()
			for j := 0; j < incs; j++ {
				atomic.AddInt32(r.Slot(slot), 1)
			}
		}(i % r.SlotCount())
	}
	wg.Wait()
	assert.Equal(t, []int32{incs, incs, incs, incs}, r.Snapshot())
}
