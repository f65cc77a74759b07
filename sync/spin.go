// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"math/rand/v2"
	"runtime"
)

const (
	cBackoffMaxShift = 6
)

// backoff is a randomized exponential pause for cas retry loops.
// It never blocks, it only yields the processor.
type backoff struct {
	shift uint
}

func (b *backoff) pause() {
	if b.shift < cBackoffMaxShift {
		b.shift++
	}
	for n := rand.IntN(1 << b.shift); n >= 0; n-- {
		runtime.Gosched()
	}
}
