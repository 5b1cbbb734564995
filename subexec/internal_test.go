package subexec

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func envValue(env []string, key string) (string, int) {
	var value string
	count := 0
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if k == key {
			value = v
			count++
		}
	}
	return value, count
}

func TestComposeEnv(t *testing.T) {
	t.Setenv("LANG", "en_US.UTF-8")
	t.Setenv("SUBEXEC_KEEP", "kept")
	t.Setenv("SUBEXEC_REPLACE", "old")

	env := composeEnv(map[string]string{"SUBEXEC_REPLACE": "new", "SUBEXEC_ADD": "added"})

	for key, want := range map[string]string{
		"LANG":            "C",
		"SUBEXEC_KEEP":    "kept",
		"SUBEXEC_REPLACE": "new",
		"SUBEXEC_ADD":     "added",
	} {
		got, count := envValue(env, key)
		assert.Equal(t, 1, count, key)
		assert.Equal(t, want, got, key)
	}
}

func TestComposeEnv_LangOverride(t *testing.T) {
	env := composeEnv(map[string]string{"LANG": "fr_FR.UTF-8"})
	got, count := envValue(env, "LANG")
	assert.Equal(t, 1, count)
	assert.Equal(t, "fr_FR.UTF-8", got)
}

func TestComposeEnv_DoesNotMutateOverrides(t *testing.T) {
	overrides := map[string]string{"A": "1"}
	composeEnv(overrides)
	assert.Equal(t, map[string]string{"A": "1"}, overrides)
}

func TestMergeEnv_FoldsKeyCase(t *testing.T) {
	parent := []string{"PATH=C:\\Windows", "Lang=de", "TEMP=C:\\Temp"}

	env := mergeEnv(parent, map[string]string{"Path": `C:\bin`}, true)

	assert.ElementsMatch(t, []string{"TEMP=C:\\Temp", "LANG=C", `Path=C:\bin`}, env)
}

func TestMergeEnv_CaseSensitive(t *testing.T) {
	parent := []string{"PATH=/usr/bin", "Lang=de"}

	env := mergeEnv(parent, map[string]string{"Path": "/opt/bin"}, false)

	assert.ElementsMatch(t, []string{"PATH=/usr/bin", "Lang=de", "LANG=C", "Path=/opt/bin"}, env)
}

func TestMergeEnv_FoldedLangOverride(t *testing.T) {
	env := mergeEnv([]string{"LANG=en_US.UTF-8"}, map[string]string{"lang": "fr_FR"}, true)
	assert.Equal(t, []string{"lang=fr_FR"}, env)
}

func TestSplitSimple(t *testing.T) {
	tests := []struct {
		command string
		argv    []string
		ok      bool
	}{
		{"ls", []string{"ls"}, true},
		{"  echo  hello   world ", []string{"echo", "hello", "world"}, true},
		{"/bin/true --flag=x", []string{"/bin/true", "--flag=x"}, true},
		{"echo $HOME", nil, false},
		{"echo hi; echo there", nil, false},
		{"echo 'quoted'", nil, false},
		{"ls | wc -l", nil, false},
		{"sleep 5 &", nil, false},
		{"echo out >file", nil, false},
		{"ls *.go", nil, false},
		{"echo a\nb", nil, false},
		{"echo a # comment", nil, false},
		{"FOO=bar env", nil, false},
		{"exit 3", nil, false},
		{"export A", nil, false},
		{"if true", nil, false},
		{". ./env.sh", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			argv, ok := splitSimple(tt.command)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.argv, argv)
		})
	}
}

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{}, "capture"},
		{Capture(), "capture"},
		{Inherit(), "inherit"},
		{AppendTo("/tmp/a"), "append:/tmp/a"},
		{TruncateTo("/tmp/a"), "truncate:/tmp/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.target.String())
	}
	assert.True(t, Target{}.IsCapture())
	assert.Equal(t, "/tmp/a", AppendTo("/tmp/a").Path())
}

func TestOpenStreams_SharedPipe(t *testing.T) {
	s, err := openStreams(Capture(), Capture(), "")
	require.NoError(t, err)
	defer s.close()

	require.Len(t, s.pipes, 1)
	assert.Equal(t, "output", s.pipes[0].name)
	assert.Same(t, s.stdout, s.stderr)
	assert.Empty(t, s.files)
}

func TestOpenStreams_SharedFile(t *testing.T) {
	dir := t.TempDir()
	s, err := openStreams(AppendTo(filepath.Join(dir, "x.log")), AppendTo(dir+"/sub/../x.log"), "")
	require.NoError(t, err)
	defer s.close()

	assert.Empty(t, s.pipes)
	require.Len(t, s.files, 1)
	assert.Same(t, s.stdout, s.stderr)
}

func TestOpenStreams_LogFileReplacesCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	s, err := openStreams(Capture(), Inherit(), path)
	require.NoError(t, err)
	defer s.close()

	assert.Empty(t, s.pipes)
	assert.Len(t, s.files, 1)
	assert.NotSame(t, s.stdout, s.stderr)
}

func TestOpenStreams_SinglePipeNamedAfterStream(t *testing.T) {
	s, err := openStreams(Inherit(), Capture(), "")
	require.NoError(t, err)
	defer s.close()

	require.Len(t, s.pipes, 1)
	assert.Equal(t, "stderr", s.pipes[0].name)
}

func TestDrain(t *testing.T) {
	var buf bytes.Buffer
	err := drain("stdout", io.NopCloser(strings.NewReader("payload")), &buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", buf.String())
}

func TestDrain_ReadError(t *testing.T) {
	boom := errors.New("boom")
	var buf bytes.Buffer
	r := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom))

	err := drain("stderr", io.NopCloser(r), &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStream)
	assert.ErrorIs(t, err, boom)

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "stderr", streamErr.Stream)
}

func TestCollector_NoPipes(t *testing.T) {
	coll := collect(nil)
	require.NoError(t, coll.wait())
	assert.Empty(t, coll.output())
}

func TestCollector_FailureSignals(t *testing.T) {
	r, w := io.Pipe()
	_ = w.CloseWithError(errors.New("descriptor failure"))

	coll := collect([]*pipe{{name: "stdout", r: r}})

	select {
	case <-coll.failed():
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not signal failure")
	}
	<-coll.drained()
	assert.ErrorIs(t, coll.wait(), ErrStream)
}

func TestCollector_DrainedAfterEndOfStream(t *testing.T) {
	r, w := io.Pipe()
	coll := collect([]*pipe{{name: "stdout", r: r}})

	select {
	case <-coll.drained():
		t.Fatal("drained before the writer closed")
	case <-time.After(50 * time.Millisecond):
	}

	go func() {
		_, _ = w.Write([]byte("late"))
		_ = w.Close()
	}()
	require.NoError(t, coll.wait())
	assert.Equal(t, "late", coll.output())
	select {
	case <-coll.failed():
		t.Fatal("failure signalled on a clean end-of-stream")
	default:
	}
}

func TestCollector_Output(t *testing.T) {
	c := &collector{bufs: []*bytes.Buffer{bytes.NewBufferString("out"), bytes.NewBufferString("err")}}
	assert.Equal(t, "outerr", c.output())
}

func TestResult_ExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		res    Result
		code   int
		ok     bool
		killed bool
	}{
		{"exited zero", Result{state: StateExited, code: 0}, 0, true, false},
		{"exited nonzero", Result{state: StateExited, code: 2}, 2, true, false},
		{"signaled", Result{state: StateExited, code: -1}, 0, false, false},
		{"killed", Result{state: StateKilled, code: -1}, 0, false, true},
		{"zero value", Result{}, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := tt.res.ExitStatus()
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.killed, tt.res.Killed())
		})
	}
}

func TestSupervise_WaitErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	proc := &process{Cmd: exec.Command("true")}

	state, code := supervise(proc, 0, collect(nil), zap.New(core))

	assert.Equal(t, StateExited, state)
	assert.Equal(t, -1, code)
	entries := logs.FilterMessage("wait").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["error"], "not started")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", State(0).String())
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "killed", StateKilled.String())
}
