package subexec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type targetKind int

const (
	kindCapture targetKind = iota
	kindFile
	kindInherit
)

// Target says where one of the child's output streams goes. The zero value captures
// the stream in memory.
type Target struct {
	kind     targetKind
	path     string
	truncate bool
}

// Capture collects the stream into Result.Output.
func Capture() Target { return Target{kind: kindCapture} }

// AppendTo appends the stream to the file at path, creating it if needed.
func AppendTo(path string) Target { return Target{kind: kindFile, path: path} }

// TruncateTo writes the stream to the file at path, discarding its previous contents.
func TruncateTo(path string) Target { return Target{kind: kindFile, path: path, truncate: true} }

// Inherit connects the stream to the parent's own stream.
func Inherit() Target { return Target{kind: kindInherit} }

func (t Target) IsCapture() bool { return t.kind == kindCapture }

// Path returns the redirect file, or "" when the stream is not file-redirected.
func (t Target) Path() string { return t.path }

func (t Target) String() string {
	switch t.kind {
	case kindFile:
		if t.truncate {
			return "truncate:" + t.path
		}
		return "append:" + t.path
	case kindInherit:
		return "inherit"
	default:
		return "capture"
	}
}

// pipe is one in-memory capture channel. w is handed to the child, r is drained by us.
type pipe struct {
	name string
	r    io.ReadCloser
	w    *os.File
}

// streams holds the descriptors wired into the child for one invocation.
type streams struct {
	stdout *os.File
	stderr *os.File
	pipes  []*pipe
	files  []*os.File
}

// openStreams resolves both targets into descriptors. Captured streams share a single
// pipe so the child's writes land in one buffer in the order it made them; file
// targets naming the same path share a single descriptor for the same reason.
func openStreams(stdout, stderr Target, logFile string) (*streams, error) {
	if logFile != "" {
		if stdout.IsCapture() {
			stdout = AppendTo(logFile)
		}
		if stderr.IsCapture() {
			stderr = AppendTo(logFile)
		}
	}

	s := &streams{}
	opened := make(map[string]*os.File)

	resolve := func(name string, t Target) (*os.File, error) {
		switch t.kind {
		case kindInherit:
			if name == "stderr" {
				return os.Stderr, nil
			}
			return os.Stdout, nil
		case kindFile:
			key := samePathKey(t.path)
			if f, ok := opened[key]; ok {
				return f, nil
			}
			flag := os.O_WRONLY | os.O_CREATE | os.O_APPEND
			if t.truncate {
				flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(t.path, flag, 0o644)
			if err != nil {
				return nil, &RedirectError{Path: t.path, Err: err}
			}
			opened[key] = f
			s.files = append(s.files, f)
			return f, nil
		default:
			if len(s.pipes) > 0 {
				s.pipes[0].name = "output"
				return s.pipes[0].w, nil
			}
			r, w, err := os.Pipe()
			if err != nil {
				return nil, fmt.Errorf("%w: %s pipe: %w", ErrStart, name, err)
			}
			s.pipes = append(s.pipes, &pipe{name: name, r: r, w: w})
			return w, nil
		}
	}

	var err error
	if s.stdout, err = resolve("stdout", stdout); err != nil {
		s.close()
		return nil, err
	}
	if s.stderr, err = resolve("stderr", stderr); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// releaseChildEnds closes our copies of every descriptor the child writes to.
func (s *streams) releaseChildEnds() {
	for _, p := range s.pipes {
		_ = p.w.Close()
	}
	for _, f := range s.files {
		_ = f.Close()
	}
}

// close releases everything still open. Descriptors already closed are ignored.
func (s *streams) close() {
	for _, p := range s.pipes {
		_ = p.w.Close()
		_ = p.r.Close()
	}
	for _, f := range s.files {
		_ = f.Close()
	}
}

func samePathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
