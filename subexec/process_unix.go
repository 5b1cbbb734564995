//go:build !windows
// +build !windows

package subexec

import (
	"os/exec"
	"syscall"
)

const shellPath = "/bin/sh"

// process is a started child and everything needed to kill it.
type process struct {
	*exec.Cmd
}

// spawn starts command in its own process group, so that a kill reaches every
// process the child forked and the captured pipes close with them. Simple command
// lines are executed directly, so a missing program fails here; anything else goes
// through /bin/sh.
func spawn(command, dir string, env []string, s *streams) (*process, error) {
	var cmd *exec.Cmd
	if argv, ok := splitSimple(command); ok {
		cmd = exec.Command(argv[0], argv[1:]...)
	} else {
		cmd = exec.Command(shellPath, "-c", command)
	}
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	return &process{Cmd: cmd}, nil
}

// kill sends SIGKILL to the whole group. The group outlives its leader, so this
// still reaches descendants after the child itself has exited.
func (p *process) kill() error {
	if p.Process == nil {
		return nil
	}
	return syscall.Kill(-p.Process.Pid, syscall.SIGKILL)
}

func (p *process) release() {}
