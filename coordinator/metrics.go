// Copyright 2016 Aleksandr Demakin. All rights reserved.

package coordinator

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "shmsync"

type metrics struct {
	ops        *prometheus.CounterVec
	timeouts   *prometheus.CounterVec
	wait       *prometheus.HistogramVec
	violations prometheus.Counter
	runs       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worker_ops_total",
			Help:      "Number of operations completed by workers.",
		}, []string{"role", "lock"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "acquire_timeouts_total",
			Help:      "Number of timed out lock acquisitions.",
		}, []string{"role"}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a lock.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"role"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invariant_violations_total",
			Help:      "Number of lock invariant violations observed by workers.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Number of finished runs.",
		}, []string{"phase", "reason"}),
	}
	var err error
	if m.ops, err = register(reg, m.ops); err != nil {
		return nil, err
	}
	if m.timeouts, err = register(reg, m.timeouts); err != nil {
		return nil, err
	}
	if m.wait, err = register(reg, m.wait); err != nil {
		return nil, err
	}
	if m.violations, err = register(reg, m.violations); err != nil {
		return nil, err
	}
	if m.runs, err = register(reg, m.runs); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers a collector. If the same collector is already registered,
// the existing one is returned, so that several coordinators can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "failed to register metric")
	}
	return c, nil
}
