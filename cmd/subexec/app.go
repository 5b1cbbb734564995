package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ProGNOMmers/subexec/internal/config"
	"github.com/ProGNOMmers/subexec/internal/logging"
	"github.com/ProGNOMmers/subexec/subexec"
)

const (
	exitTimeout     = 124
	exitCannotStart = 125
	exitNoStatus    = 126
	exitUsage       = 2

	inheritPath = "-"
)

type flags struct {
	configPath string
	dir        string
	stdoutPath string
	stderrPath string
	truncate   bool
	env        map[string]string
}

func newRootCommand(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	f := &flags{}
	loader := config.NewLoader(".")

	cmd := &cobra.Command{
		Use:   "subexec [flags] -- command [args...]",
		Short: "Run a shell command with a timeout and captured output",
		Long: "subexec runs a command line through the platform shell, kills it when the timeout elapses,\n" +
			"captures or redirects its output and exits with the command's status.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runCommand(loader, f, strings.Join(args, " "), stdout, stderr)
			*exitCode = code
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "configuration file (default ./subexec.yaml)")
	fs.StringVar(&f.dir, "dir", "", "working directory of the command")
	fs.StringVar(&f.stdoutPath, "stdout", "", "write the command's stdout to `path` instead of capturing it (- inherits)")
	fs.StringVar(&f.stderrPath, "stderr", "", "write the command's stderr to `path` instead of capturing it (- inherits)")
	fs.BoolVar(&f.truncate, "truncate", false, "truncate --stdout/--stderr files instead of appending")
	fs.StringToStringVar(&f.env, "env", nil, "environment override `KEY=VALUE` (repeatable)")
	fs.Duration("timeout", 0, "kill the command after this long (0 disables)")
	fs.String("lang", "", "LANG for the command (default C)")
	fs.String("log-file", "", "append captured output to this file instead of printing it")
	fs.String("report", "none", "result report on stderr: none, text, yaml or json")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("log-format", "console", "log format: console or structured")

	v := loader.Viper()
	for key, name := range map[string]string{
		config.KeyTimeout:   "timeout",
		config.KeyLang:      "lang",
		config.KeyLogFile:   "log-file",
		config.KeyReport:    "report",
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
	} {
		_ = v.BindPFlag(key, fs.Lookup(name))
	}
	return cmd
}

func runCommand(loader *config.Loader, f *flags, command string, stdout, stderr io.Writer) (int, error) {
	cfg, used, err := loader.Load(f.configPath)
	if err != nil {
		return exitUsage, err
	}
	format, err := parseReportFormat(cfg.Report)
	if err != nil {
		return exitUsage, err
	}

	logger, err := logging.New(logging.Level(cfg.LogLevel), logging.Format(cfg.LogFormat))
	if err != nil {
		return exitUsage, err
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("configuration loaded", zap.String("config_file", used), zap.Duration("timeout", cfg.Timeout))

	opts := []subexec.Option{
		subexec.WithLogger(logger),
		subexec.WithTimeout(cfg.Timeout),
		subexec.WithEnvMap(f.env),
		subexec.WithDir(f.dir),
		subexec.WithStdout(target(f.stdoutPath, f.truncate)),
		subexec.WithStderr(target(f.stderrPath, f.truncate)),
	}
	if cfg.Lang != "" {
		opts = append(opts, subexec.WithLang(cfg.Lang))
	}
	if cfg.LogFile != "" {
		opts = append(opts, subexec.WithLogFile(cfg.LogFile))
	}

	res, err := subexec.Run(command, opts...)
	if err != nil {
		if errors.Is(err, subexec.ErrStart) || errors.Is(err, subexec.ErrRedirect) {
			return exitCannotStart, err
		}
		return 1, err
	}

	if _, err := io.WriteString(stdout, res.Output()); err != nil {
		return 1, fmt.Errorf("writing output: %w", err)
	}
	if err := writeReport(stderr, format, res); err != nil {
		return 1, err
	}
	return exitCodeOf(res), nil
}

func target(path string, truncate bool) subexec.Target {
	switch {
	case path == "":
		return subexec.Capture()
	case path == inheritPath:
		return subexec.Inherit()
	case truncate:
		return subexec.TruncateTo(path)
	default:
		return subexec.AppendTo(path)
	}
}

func exitCodeOf(res subexec.Result) int {
	if res.Killed() {
		return exitTimeout
	}
	if code, ok := res.ExitStatus(); ok {
		return code
	}
	return exitNoStatus
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	exitCode := 0
	cmd := newRootCommand(stdout, stderr, &exitCode)
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "subexec: %v\n", err)
		if exitCode == 0 {
			exitCode = exitUsage
		}
	}
	return exitCode
}
