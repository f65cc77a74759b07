// Copyright 2016 Aleksandr Demakin. All rights reserved.

package coordinator

import (
	"time"
)

// Phase is a state of a run.
type Phase string

// run phases.
const (
	PhaseConfigured Phase = "configured"
	PhaseRunning    Phase = "running"
	PhaseAllDone    Phase = "allDone"
	PhaseAborted    Phase = "aborted"
)

// verdict reasons.
const (
	ReasonOK        = "ok"
	ReasonRace      = "race condition detected"
	ReasonHang      = "deadlock-or-hang"
	ReasonCancelled = "cancelled"
)

// Verdict is the result of the oracle check.
type Verdict struct {
	Passed bool   `yaml:"passed"`
	Reason string `yaml:"reason"`
}

// WorkerReport is a final state of a worker as seen by the coordinator.
type WorkerReport struct {
	ID           int           `yaml:"id"`
	Role         Role          `yaml:"role"`
	State        WorkerState   `yaml:"state"`
	Progress     int           `yaml:"progress"`
	OpsCompleted int           `yaml:"opsCompleted"`
	TotalWait    time.Duration `yaml:"-"`
	TotalWaitMs  float64       `yaml:"totalWaitMs"`
	Timeouts     int           `yaml:"timeouts"`
	Error        string        `yaml:"error,omitempty"`
}

// RunReport is the result of a run.
type RunReport struct {
	Phase    Phase    `yaml:"phase"`
	Verdict  Verdict  `yaml:"verdict"`
	LockKind LockKind `yaml:"lockKind"`
	// Expected and Observed are the final counter values for counter kinds
	// and the protected value for the rwlock kind.
	Expected         int64          `yaml:"expected"`
	Observed         int64          `yaml:"observed"`
	ExpectedSequence int64          `yaml:"expectedSequence"`
	ObservedSequence int64          `yaml:"observedSequence"`
	Violations       int64          `yaml:"violations"`
	Elapsed          time.Duration  `yaml:"-"`
	ElapsedMs        float64        `yaml:"elapsedMs"`
	Workers          []WorkerReport `yaml:"workers"`
}

// Passed returns true, if the run finished and the oracle check succeeded.
func (r *RunReport) Passed() bool {
	return r.Phase == PhaseAllDone && r.Verdict.Passed
}

func newRunReport(cfg Config) *RunReport {
	report := &RunReport{
		Phase:    PhaseConfigured,
		LockKind: cfg.LockKind,
		Workers:  make([]WorkerReport, cfg.WorkerCount),
	}
	for i := range report.Workers {
		report.Workers[i] = WorkerReport{ID: i, Role: cfg.roleAt(i), State: StateIdle}
	}
	return report
}

// apply updates worker's report with a message.
func (r *RunReport) apply(msg Message) {
	id := msg.Worker()
	if id < 0 || id >= len(r.Workers) {
		return
	}
	wr := &r.Workers[id]
	switch m := msg.(type) {
	case ProgressMessage:
		wr.Progress = m.Percent
	case StateChangedMessage:
		wr.State = m.State
	case CompleteMessage:
		wr.State = StateDone
		wr.Progress = 100
		wr.OpsCompleted = m.OpsCompleted
		wr.TotalWait = m.TotalWait
		wr.TotalWaitMs = m.TotalWaitMs()
		wr.Timeouts = m.Timeouts
	case ErrorMessage:
		wr.Error = m.Message
	}
}

func (r *RunReport) setElapsed(d time.Duration) {
	r.Elapsed = d
	r.ElapsedMs = durationToMs(d)
}
