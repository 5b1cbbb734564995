package subexec

import "time"

// State is the terminal state of a supervised child.
type State int

const (
	// StateExited means the operating system reported the child's termination.
	StateExited State = iota + 1
	// StateKilled means the child's process group was killed by the supervisor:
	// the timeout elapsed, or a captured stream failed, in which case Run returns
	// the stream error instead of a Result.
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Result describes a finished invocation. It is built once the child has terminated
// and every captured stream has been drained, and never changes afterwards.
type Result struct {
	output   string
	state    State
	code     int
	pid      int
	runID    string
	duration time.Duration
}

// Output returns the bytes captured from the streams configured for in-memory capture.
func (r Result) Output() string { return r.output }

// ExitStatus returns the child's exit code. ok is false when the child was killed
// or otherwise terminated without an exit code.
func (r Result) ExitStatus() (code int, ok bool) {
	if r.state != StateExited || r.code < 0 {
		return 0, false
	}
	return r.code, true
}

// Killed reports whether the child was killed by the timeout.
func (r Result) Killed() bool { return r.state == StateKilled }

// Success reports whether the child exited with status 0.
func (r Result) Success() bool {
	code, ok := r.ExitStatus()
	return ok && code == 0
}

func (r Result) State() State { return r.state }

// Pid returns the child's process id. It stays available after the child is gone.
func (r Result) Pid() int { return r.pid }

// RunID identifies the invocation in log entries.
func (r Result) RunID() string { return r.runID }

func (r Result) Duration() time.Duration { return r.duration }
