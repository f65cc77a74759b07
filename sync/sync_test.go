// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDeadline(t *testing.T) {
	a := assert.New(t)
	left, ok := newDeadline(-1).remaining()
	a.True(ok)
	a.True(left < 0)
	_, ok = newDeadline(0).remaining()
	a.False(ok)
	left, ok = newDeadline(time.Hour).remaining()
	a.True(ok)
	a.True(left > 0 && left <= time.Hour)
}
