// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"fmt"
	"sync"

	"github.com/nxgtw/shmsync/region"
)

func ExampleRWLock() {
	r, err := region.New(region.RWLockLayout)
	if err != nil {
		panic("new region")
	}
	defer r.Close()
	rw, err := NewRWLock(r)
	if err != nil {
		panic("new rwlock")
	}
	value := NewCounter(r, region.ProtectedValueSlot)
	var wg sync.WaitGroup
	wg.Add(8)
	for i := 0; i < 8; i++ {
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rw.Lock()
				value.Store(value.Load() + 1)
				rw.Unlock()
			}
		}()
	}
	wg.Wait()
	rw.RLock()
	fmt.Println(value.Load())
	rw.RUnlock()
	// Output: 8000
}

func ExampleWaitChannel() {
	r, err := region.New(region.CounterLayout)
	if err != nil {
		panic("new region")
	}
	defer r.Close()
	wc := NewWaitChannel(r)
	flag := NewCounter(r, region.CounterSlot)
	go func() {
		flag.Store(1)
		wc.NotifyAll(region.CounterSlot)
	}()
	for flag.Load() == 0 {
		wc.Wait(region.CounterSlot, 0, -1)
	}
	fmt.Println("flag is set")
	// Output: flag is set
}
