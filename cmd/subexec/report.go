package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ProGNOMmers/subexec/subexec"
)

type reportFormat string

const (
	reportNone reportFormat = "none"
	reportText reportFormat = "text"
	reportYAML reportFormat = "yaml"
	reportJSON reportFormat = "json"
)

func parseReportFormat(s string) (reportFormat, error) {
	switch f := reportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", reportNone:
		return reportNone, nil
	case reportText, reportYAML, reportJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// report is the serialized summary of a finished run. ExitStatus is null when the
// command was killed.
type report struct {
	RunID       string `yaml:"run_id" json:"run_id"`
	Pid         int    `yaml:"pid" json:"pid"`
	State       string `yaml:"state" json:"state"`
	ExitStatus  *int   `yaml:"exit_status" json:"exit_status"`
	Duration    string `yaml:"duration" json:"duration"`
	OutputBytes int    `yaml:"output_bytes" json:"output_bytes"`
}

func newReport(res subexec.Result) report {
	r := report{
		RunID:       res.RunID(),
		Pid:         res.Pid(),
		State:       res.State().String(),
		Duration:    res.Duration().String(),
		OutputBytes: len(res.Output()),
	}
	if code, ok := res.ExitStatus(); ok {
		r.ExitStatus = &code
	}
	return r
}

func writeReport(w io.Writer, format reportFormat, res subexec.Result) error {
	r := newReport(res)
	switch format {
	case reportText:
		status := "none"
		if r.ExitStatus != nil {
			status = fmt.Sprint(*r.ExitStatus)
		}
		_, err := fmt.Fprintf(w, "run_id=%s pid=%d state=%s exit_status=%s duration=%s\n",
			r.RunID, r.Pid, r.State, status, r.Duration)
		return err
	case reportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return enc.Close()
	case reportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return nil
	}
}
