// Copyright 2016 Aleksandr Demakin. All rights reserved.

package coordinator

import (
	"math"
	"os"
	"time"

	"github.com/nxgtw/shmsync/region"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// LockKind selects how incrementers and writers protect their updates.
type LockKind string

const (
	// LockNone makes incrementers do a plain load followed by a store. Updates may be lost.
	LockNone LockKind = "none"
	// LockAtomic makes incrementers use an atomic add.
	LockAtomic LockKind = "atomic"
	// LockMutex protects the counter with a cas mutex.
	LockMutex LockKind = "mutex"
	// LockRW protects the value with a writer-priority rwlock.
	LockRW LockKind = "rwlock"
)

// RoleMix is the number of workers of each role.
type RoleMix struct {
	Readers      int `yaml:"readers"`
	Writers      int `yaml:"writers"`
	Incrementers int `yaml:"incrementers"`
}

func (m RoleMix) total() int {
	return m.Readers + m.Writers + m.Incrementers
}

// Config describes a run.
type Config struct {
	WorkerCount int `yaml:"workerCount"`
	// Roles may be left empty, then all workers are incrementers.
	Roles        RoleMix  `yaml:"roles"`
	OpsPerWorker int      `yaml:"opsPerWorker"`
	LockKind     LockKind `yaml:"lockKind"`
	// TimeoutMs limits the entire run.
	TimeoutMs int `yaml:"timeoutMs"`
	// AcquireTimeoutMs limits a single lock acquisition. Timed out acquisitions are retried.
	// 0 means 'wait forever'.
	AcquireTimeoutMs int    `yaml:"acquireTimeoutMs"`
	HoldMinMs        int    `yaml:"holdMinMs"`
	HoldMaxMs        int    `yaml:"holdMaxMs"`
	DelayMs          int    `yaml:"delayMs"`
	Seed             uint64 `yaml:"seed"`
}

// DefaultConfig returns a config for 4 incrementers doing 1000 atomic adds each.
func DefaultConfig() Config {
	return Config{
		WorkerCount:  4,
		OpsPerWorker: 1000,
		LockKind:     LockAtomic,
		TimeoutMs:    5000,
	}
}

// ParseConfig decodes a yaml config over the default one and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a yaml config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}
	return ParseConfig(data)
}

// Validate checks the config. Any error here is a programming error of the caller.
func (c Config) Validate() error {
	if c.WorkerCount < 1 {
		return errors.Errorf("invalid worker count %d", c.WorkerCount)
	}
	if c.OpsPerWorker < 0 {
		return errors.Errorf("invalid ops per worker %d", c.OpsPerWorker)
	}
	if c.Roles.Readers < 0 || c.Roles.Writers < 0 || c.Roles.Incrementers < 0 {
		return errors.New("role counts must not be negative")
	}
	roles := c.RoleMix()
	if roles.total() != c.WorkerCount {
		return errors.Errorf("role mix of %d workers does not match worker count %d", roles.total(), c.WorkerCount)
	}
	switch c.LockKind {
	case LockNone, LockAtomic, LockMutex:
		if roles.Readers > 0 || roles.Writers > 0 {
			return errors.Errorf("readers and writers need %q lock kind", LockRW)
		}
	case LockRW:
	default:
		return errors.Errorf("unknown lock kind %q", c.LockKind)
	}
	if c.TimeoutMs <= 0 {
		return errors.Errorf("invalid run timeout %dms", c.TimeoutMs)
	}
	if c.AcquireTimeoutMs < 0 {
		return errors.Errorf("invalid acquire timeout %dms", c.AcquireTimeoutMs)
	}
	if c.HoldMinMs < 0 || c.HoldMaxMs < c.HoldMinMs {
		return errors.Errorf("invalid hold interval [%d, %d]ms", c.HoldMinMs, c.HoldMaxMs)
	}
	if c.DelayMs < 0 {
		return errors.Errorf("invalid start delay %dms", c.DelayMs)
	}
	if int64(roles.Writers+roles.Incrementers)*int64(c.OpsPerWorker) > math.MaxInt32 {
		return errors.New("expected value does not fit into a region slot")
	}
	return nil
}

// RoleMix returns actual role counts.
func (c Config) RoleMix() RoleMix {
	if c.Roles.total() == 0 {
		return RoleMix{Incrementers: c.WorkerCount}
	}
	return c.Roles
}

// Layout returns region layout for the lock kind.
func (c Config) Layout() region.Layout {
	switch c.LockKind {
	case LockRW:
		return region.RWLockLayout
	case LockMutex:
		return region.MutexLayout
	default:
		return region.CounterLayout
	}
}

// roleAt returns the role of i-th worker. Readers go first, then writers, then incrementers.
func (c Config) roleAt(i int) Role {
	roles := c.RoleMix()
	switch {
	case i < roles.Readers:
		return RoleReader
	case i < roles.Readers+roles.Writers:
		return RoleWriter
	default:
		return RoleIncrementer
	}
}

func (c Config) runTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c Config) acquireTimeout() time.Duration {
	if c.AcquireTimeoutMs == 0 {
		return -1
	}
	return time.Duration(c.AcquireTimeoutMs) * time.Millisecond
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
