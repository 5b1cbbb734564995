// Package subexec runs a shell command as a child process, optionally bounded by a
// timeout, capturing its standard output and standard error to memory or redirecting
// them to files, and reports the final exit status.
//
// Run blocks until the child has terminated and every captured stream has been
// drained. A child killed by the timeout has no exit status:
//
//	res, err := subexec.Run("make test", subexec.WithTimeout(time.Minute))
//	if err != nil {
//		return err
//	}
//	if code, ok := res.ExitStatus(); ok {
//		fmt.Println("exited with", code)
//	} else {
//		fmt.Println("killed after", res.Duration())
//	}
package subexec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the parameters of a single invocation.
type Config struct {
	timeout  time.Duration
	env      map[string]string
	dir      string
	stdout   Target
	stderr   Target
	logFile  string
	logger   *zap.Logger
	observer Observer
}

// Option configures an invocation.
type Option func(*Config)

// --- Option helpers ---

// WithTimeout kills the child if it is still running after d. A non-positive d means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.timeout = d }
}

// WithEnv overrides a single environment variable of the child.
func WithEnv(key, value string) Option {
	return func(c *Config) { c.env[key] = value }
}

// WithEnvMap overrides every variable in env.
func WithEnvMap(env map[string]string) Option {
	return func(c *Config) {
		for k, v := range env {
			c.env[k] = v
		}
	}
}

// WithLang sets LANG for the child. Without it LANG is C.
func WithLang(lang string) Option {
	return WithEnv(langKey, lang)
}

func WithDir(dir string) Option {
	return func(c *Config) { c.dir = dir }
}

func WithStdout(t Target) Option {
	return func(c *Config) { c.stdout = t }
}

func WithStderr(t Target) Option {
	return func(c *Config) { c.stderr = t }
}

// WithLogFile appends every stream that would be captured to path instead.
func WithLogFile(path string) Option {
	return func(c *Config) { c.logFile = path }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Config) {
		if o != nil {
			c.observer = o
		}
	}
}

// --- Errors ---

var (
	ErrEmptyCommand = errors.New("subexec: command cannot be empty")
	ErrStart        = errors.New("subexec: failed to start")
	ErrRedirect     = errors.New("subexec: failed to open redirect target")
	ErrStream       = errors.New("subexec: failed to read output stream")
)

// SpawnError reports that the child process could not be created.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrStart, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() []error { return []error{ErrStart, e.Err} }

// RedirectError reports that a redirect file could not be opened.
type RedirectError struct {
	Path string
	Err  error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrRedirect, e.Path, e.Err)
}

func (e *RedirectError) Unwrap() []error { return []error{ErrRedirect, e.Err} }

// StreamError reports a read failure while draining a captured stream.
type StreamError struct {
	Stream string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStream, e.Stream, e.Err)
}

func (e *StreamError) Unwrap() []error { return []error{ErrStream, e.Err} }

// --- runner ---

// Run executes command and waits for it and every captured stream to finish. A
// plain "program arg..." line is executed directly, so a missing program is a
// SpawnError; anything using shell syntax goes through the platform shell.
//
// The returned error is non-nil only when the child could not be spawned or a
// captured stream failed; a timeout is reported through Result.Killed.
func Run(command string, opts ...Option) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, ErrEmptyCommand
	}

	cfg := &Config{
		env:      make(map[string]string),
		stdout:   Capture(),
		stderr:   Capture(),
		logger:   zap.NewNop(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	runID := uuid.New().String()
	log := cfg.logger.With(zap.String("run_id", runID), zap.String("command", command))

	res, err := run(runID, command, cfg, log)
	if err != nil {
		log.Error("command failed", zap.Error(err))
		cfg.observer.ProcessFailed(command, err)
		return Result{}, err
	}

	fields := []zap.Field{
		zap.Int("pid", res.pid),
		zap.Duration("duration", res.duration),
		zap.Stringer("state", res.state),
	}
	if code, ok := res.ExitStatus(); ok {
		fields = append(fields, zap.Int("exit_status", code))
	}
	log.Info("command finished", fields...)
	cfg.observer.ProcessCompleted(command, res)
	return res, nil
}

func run(runID, command string, cfg *Config, log *zap.Logger) (Result, error) {
	streams, err := openStreams(cfg.stdout, cfg.stderr, cfg.logFile)
	if err != nil {
		return Result{}, err
	}
	defer streams.close()

	proc, err := spawn(command, cfg.dir, composeEnv(cfg.env), streams)
	if err != nil {
		return Result{}, err
	}
	defer proc.release()
	pid := proc.Process.Pid
	log.Debug("process spawned", zap.Int("pid", pid), zap.Int("captured_streams", len(streams.pipes)))
	cfg.observer.ProcessStarted(command, pid)

	// The child holds its own copies of the write ends; ours must close so that
	// the drains observe end-of-stream once the child is gone.
	streams.releaseChildEnds()

	start := time.Now()
	coll := collect(streams.pipes)
	state, code := supervise(proc, cfg.timeout, coll, log)
	duration := time.Since(start)

	if err := coll.wait(); err != nil {
		return Result{}, err
	}

	return Result{
		output:   coll.output(),
		state:    state,
		code:     code,
		pid:      pid,
		runID:    runID,
		duration: duration,
	}, nil
}
