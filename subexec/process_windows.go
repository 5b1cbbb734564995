//go:build windows
// +build windows

package subexec

import (
	"os"
	"os/exec"

	"golang.org/x/sys/windows"
)

// process is a started child and the job object holding its process tree.
type process struct {
	*exec.Cmd
	job windows.Handle
}

// spawn starts command under cmd.exe and puts it into a job object, so that a
// kill reaches every process it created. Children the shell creates before the
// assignment completes escape the job; when no job can be created only cmd.exe
// itself is killed.
func spawn(command, dir string, env []string, s *streams) (*process, error) {
	shell := os.Getenv("ComSpec")
	if shell == "" {
		shell = "cmd.exe"
	}
	cmd := exec.Command(shell, "/C", command)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	return &process{Cmd: cmd, job: assignJob(cmd.Process.Pid)}, nil
}

func assignJob(pid int) windows.Handle {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0
	}
	h, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		_ = windows.CloseHandle(job)
		return 0
	}
	defer windows.CloseHandle(h)
	if err := windows.AssignProcessToJobObject(job, h); err != nil {
		_ = windows.CloseHandle(job)
		return 0
	}
	return job
}

func (p *process) kill() error {
	if p.job != 0 {
		return windows.TerminateJobObject(p.job, 1)
	}
	if p.Process == nil {
		return nil
	}
	return p.Process.Kill()
}

func (p *process) release() {
	if p.job != 0 {
		_ = windows.CloseHandle(p.job)
		p.job = 0
	}
}
