// Copyright 2016 Aleksandr Demakin. All rights reserved.

package region

import (
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// SlotSize is the size of one region slot in bytes.
const SlotSize = 4

// offsets of the plain counter configuration.
const (
	CounterSlot = 0
)

// offsets of the rwlock configuration.
const (
	StateSlot          = 0
	WaitingWritersSlot = 1
	ProtectedValueSlot = 2
	SequenceSlot       = 3
)

// offsets of the mutex configuration.
const (
	MutexCounterSlot = 0
	MutexSlot        = 1
)

// slot names, which are looked up by the lock implementations.
const (
	CounterSlotName        = "counter"
	StateSlotName          = "state"
	WaitingWritersSlotName = "waitingWriters"
	ProtectedValueSlotName = "protectedValue"
	SequenceSlotName       = "sequence"
	MutexSlotName          = "mutex"
)

// Slot is a named int32 cell of a region.
type Slot struct {
	Name   string `yaml:"name"`
	Offset int    `yaml:"offset"`
}

// Layout describes how the slots of a region are used.
// Offsets are slot indices, not byte offsets.
type Layout struct {
	Name  string `yaml:"name"`
	Slots []Slot `yaml:"slots"`
}

var (
	// CounterLayout is a single counter slot.
	CounterLayout = Layout{
		Name:  "counter",
		Slots: []Slot{{CounterSlotName, CounterSlot}},
	}
	// RWLockLayout is the state of a writer-priority rwlock and the value it protects.
	RWLockLayout = Layout{
		Name: "rwlock",
		Slots: []Slot{
			{StateSlotName, StateSlot},
			{WaitingWritersSlotName, WaitingWritersSlot},
			{ProtectedValueSlotName, ProtectedValueSlot},
			{SequenceSlotName, SequenceSlot},
		},
	}
	// MutexLayout is a counter guarded by a cas mutex.
	MutexLayout = Layout{
		Name: "mutex",
		Slots: []Slot{
			{CounterSlotName, MutexCounterSlot},
			{MutexSlotName, MutexSlot},
		},
	}
)

// Layouts returns predefined layouts.
func Layouts() []Layout {
	return []Layout{CounterLayout, RWLockLayout, MutexLayout}
}

// LayoutByName returns a predefined layout with the given name.
func LayoutByName(name string) (Layout, bool) {
	for _, l := range Layouts() {
		if l.Name == name {
			return l, true
		}
	}
	return Layout{}, false
}

// Validate checks, that slot names are unique, and that the offsets cover [0, SlotCount) exactly once.
func (l Layout) Validate() error {
	if len(l.Slots) == 0 {
		return errors.New("layout has no slots")
	}
	names := make(map[string]struct{}, len(l.Slots))
	seen := make([]bool, len(l.Slots))
	for _, s := range l.Slots {
		if s.Name == "" {
			return errors.Errorf("slot at offset %d has no name", s.Offset)
		}
		if _, ok := names[s.Name]; ok {
			return errors.Errorf("duplicate slot name %q", s.Name)
		}
		names[s.Name] = struct{}{}
		if s.Offset < 0 || s.Offset >= len(l.Slots) {
			return errors.Errorf("slot %q has invalid offset %d", s.Name, s.Offset)
		}
		if seen[s.Offset] {
			return errors.Errorf("offset %d is used twice", s.Offset)
		}
		seen[s.Offset] = true
	}
	return nil
}

// Offset returns the offset of the slot with the given name.
func (l Layout) Offset(name string) (int, bool) {
	for _, s := range l.Slots {
		if s.Name == name {
			return s.Offset, true
		}
	}
	return -1, false
}

// SlotCount returns the number of slots.
func (l Layout) SlotCount() int {
	return len(l.Slots)
}

// Size returns the number of bytes needed for the layout.
func (l Layout) Size() int {
	return SlotSize * l.SlotCount()
}

// MarshalLayout returns yaml representation of the layout.
func MarshalLayout(l Layout) ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal layout")
	}
	return data, nil
}

// UnmarshalLayout decodes and validates a layout.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.UnmarshalStrict(data, &l); err != nil {
		return Layout{}, errors.Wrap(err, "failed to unmarshal layout")
	}
	if err := l.Validate(); err != nil {
		return Layout{}, errors.Wrap(err, "invalid layout")
	}
	return l, nil
}
