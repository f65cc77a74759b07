// Copyright 2016 Aleksandr Demakin. All rights reserved.

package coordinator

import (
	"time"

	"github.com/nxgtw/shmsync/region"
)

// Role is a worker role.
type Role string

// worker roles.
const (
	RoleReader      Role = "reader"
	RoleWriter      Role = "writer"
	RoleIncrementer Role = "incrementer"
)

// WorkerState is used for reporting only, it is not a synchronization state.
type WorkerState string

// worker states.
const (
	StateIdle    WorkerState = "idle"
	StateWaiting WorkerState = "waiting"
	StateActive  WorkerState = "active"
	// StateDone is never sent in a StateChangedMessage, it follows from a CompleteMessage.
	StateDone WorkerState = "done"
)

// control is a message from the coordinator to a worker.
type control interface {
	control()
}

// InitMessage binds a worker to its role and to the shared region.
type InitMessage struct {
	WorkerID int
	Role     Role
	Region   *region.Region
}

// StartMessage tells a worker to begin.
type StartMessage struct {
	OpCount int
	Delay   time.Duration
}

func (InitMessage) control()  {}
func (StartMessage) control() {}

// Message is a report from a worker to the coordinator.
// Reports are for observability only, correctness never depends on them.
type Message interface {
	Worker() int
}

// ProgressMessage reports the percentage of completed operations.
type ProgressMessage struct {
	WorkerID int
	Percent  int
}

// StateChangedMessage reports a transition of worker's state.
type StateChangedMessage struct {
	WorkerID int
	State    WorkerState
}

// CompleteMessage is the last message of a successful worker.
type CompleteMessage struct {
	WorkerID     int
	OpsCompleted int
	TotalWait    time.Duration
	Timeouts     int
}

// ErrorMessage is the last message of a failed worker.
type ErrorMessage struct {
	WorkerID int
	Message  string
}

func (m ProgressMessage) Worker() int     { return m.WorkerID }
func (m StateChangedMessage) Worker() int { return m.WorkerID }
func (m CompleteMessage) Worker() int     { return m.WorkerID }
func (m ErrorMessage) Worker() int        { return m.WorkerID }

// TotalWaitMs returns the total wait time in milliseconds.
func (m CompleteMessage) TotalWaitMs() float64 {
	return durationToMs(m.TotalWait)
}

func durationToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
