package subexec

import (
	"errors"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// supervise waits until the child has terminated and every captured stream has
// reached end-of-stream. With a positive timeout the deadline stays armed for both:
// a descendant that outlives the child while holding a pipe is killed along with
// the rest of the group. A failed drain kills the child as well, since nobody would
// read its output any more.
//
// Once the kill has been issued the outcome is StateKilled, whatever the exit
// notification reports afterwards.
func supervise(proc *process, timeout time.Duration, coll *collector, log *zap.Logger) (State, int) {
	exited := make(chan *os.ProcessState, 1)
	go func() {
		var exitErr *exec.ExitError
		if err := proc.Wait(); err != nil && !errors.As(err, &exitErr) {
			log.Debug("wait", zap.Error(err))
		}
		exited <- proc.ProcessState
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	waiting, drained := exited, coll.drained()
	var ps *os.ProcessState
	for waiting != nil || drained != nil {
		select {
		case ps = <-waiting:
			waiting = nil
			continue
		case <-drained:
			drained = nil
			continue
		case <-expired:
			log.Warn("timeout exceeded, killing process",
				zap.Int("pid", proc.Process.Pid), zap.Duration("timeout", timeout))
		case <-coll.failed():
			log.Warn("output stream failed, killing process", zap.Int("pid", proc.Process.Pid))
		}

		if err := proc.kill(); err != nil {
			log.Debug("kill", zap.Int("pid", proc.Process.Pid), zap.Error(err))
		}
		if waiting != nil {
			<-waiting
		}
		return StateKilled, -1
	}
	return StateExited, exitCode(ps)
}

// exitCode is -1 when the child did not exit on its own, e.g. it died from a signal.
func exitCode(ps *os.ProcessState) int {
	if ps == nil || !ps.Exited() {
		return -1
	}
	return ps.ExitCode()
}
