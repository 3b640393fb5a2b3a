package jobs

import (
	"fmt"
	"os"
	"syscall"
)

// State is the lifecycle state of a process or job.
type State int

const (
	// All matches every state when filtering.
	All State = iota
	Running
	Stopped
	Finished
)

func (s State) String() string {
	switch s {
	case All:
		return "all"
	case Running:
		return "running"
	case Stopped:
		return "suspended"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SignalSet is an immutable set of signals. The table subscribes to its
// child-termination set once at startup.
type SignalSet struct {
	sigs []os.Signal
}

// NewSignalSet builds a set from the given signals.
func NewSignalSet(sigs ...os.Signal) SignalSet {
	return SignalSet{sigs: append([]os.Signal(nil), sigs...)}
}

// ChildSignals is the set delivered when a child changes state.
func ChildSignals() SignalSet {
	return NewSignalSet(syscall.SIGCHLD)
}

// Signals returns a copy of the members.
func (s SignalSet) Signals() []os.Signal {
	return append([]os.Signal(nil), s.sigs...)
}

// Empty reports whether the set has no members.
func (s SignalSet) Empty() bool {
	return len(s.sigs) == 0
}

type process struct {
	pid    int
	argv   []string
	state  State
	status syscall.WaitStatus
}

// exitCode follows the shell convention of 128+signal for signal deaths.
func (p *process) exitCode() int {
	switch {
	case p.status.Exited():
		return p.status.ExitStatus()
	case p.status.Signaled():
		return 128 + int(p.status.Signal())
	case p.status.Stopped():
		return 128 + int(p.status.StopSignal())
	default:
		return 0
	}
}

// update applies a wait status and reports whether anything changed.
func (p *process) update(ws syscall.WaitStatus) bool {
	prev := p.state
	switch {
	case ws.Exited(), ws.Signaled():
		p.state = Finished
		p.status = ws
	case ws.Stopped():
		p.state = Stopped
		p.status = ws
	case ws.Continued():
		p.state = Running
	}
	return prev != p.state
}
