package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// scenarioYAML is a one-watch scenario expecting count firings of x.
func scenarioYAML(name string, count int) string {
	return fmt.Sprintf(`name: %s
description: "x changes once"
tree: { name: root, data: { x: 1 } }
watches:
  - { id: x, node: root, key: x }
steps:
  - set: { node: root, key: x, value: 2 }
  - digest: {}
assertions:
  - { type: fired_count, watch: x, count: %d }
`, name, count)
}

func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_HarnessScenarios(t *testing.T) {
	out, err := execute(t, "run", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ simple_change (2 digests, 1 fired)")
	assert.Contains(t, out, "✓ infinite_loop (1 digests, 3 fired)")
	assert.Contains(t, out, "Summary: 6 passed, 0 failed, 6 total")
}

func TestRun_MatchesHarnessGoldens(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", harnessScenarios, "--golden", "../harness/testdata/golden")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	golden := map[string]string{}
	for _, s := range resp.Data.Scenarios {
		golden[s.Name] = s.Golden
	}
	assert.Equal(t, "match", golden["simple_change"])
	assert.Equal(t, "match", golden["listener_failures"])
	assert.Equal(t, "missing", golden["tree_growth"])
}

func TestRun_CUEScenario(t *testing.T) {
	out, err := execute(t, "run", "../compiler/testdata/change_chain.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ change_chain (1 digests, 2 fired)")
}

func TestRun_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ok.yaml", scenarioYAML("ok", 1))
	writeScenario(t, dir, "wrong.yaml", scenarioYAML("wrong", 2))

	out, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ ok")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "  Assertion failed: fired_count")
	assert.Contains(t, out, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "keep.yaml", scenarioYAML("keep", 1))
	writeScenario(t, dir, "skip.yaml", scenarioYAML("skip", 2))

	out, err := execute(t, "run", dir, "--filter", "ke*")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")
}

func TestRun_LoadErrorIsAFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nwatchez: []\n")

	out, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "E004")
}

func TestRun_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing path", []string{"run", filepath.Join(t.TempDir(), "absent")}, "path not found"},
		{"no scenarios", []string{"run", t.TempDir()}, "no scenario files found"},
		{"update without golden", []string{"run", harnessScenarios, "--update"}, "--update requires --golden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	goldenDir := filepath.Join(dir, "golden")
	path := writeScenario(t, dir, "g.yaml", scenarioYAML("g", 1))

	out, err := execute(t, "run", path, "--golden", goldenDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	goldenPath := filepath.Join(goldenDir, "g.golden")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"scenario_name":"g","trace":[`))

	_, err = execute(t, "run", path, "--golden", goldenDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}"), 0o644))
	out, err = execute(t, "run", path, "--golden", goldenDir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestRun_JSONOutput(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "j.yaml", scenarioYAML("j", 2))

	out, err := execute(t, "--format", "json", "run", path)
	require.Error(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFail, resp.Error.Code)

	require.Len(t, resp.Data.Scenarios, 1)
	s := resp.Data.Scenarios[0]
	assert.Equal(t, "j", s.Name)
	assert.False(t, s.Pass)
	assert.Equal(t, 1, s.Digests)
	assert.Equal(t, 1, s.Fired)
	require.Len(t, s.Errors, 1)
}

// syncBuffer is a bytes.Buffer safe for the watch goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_WatchRerunsChangedScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "watched.yaml", scenarioYAML("watched", 1))
	writeScenario(t, dir, "notes.txt", "ignored")

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"run", "--watch", path})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching 1 scenario file(s) for changes")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "✓ watched")

	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML("watched", 5)), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✗ watched")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, out.String(), "Re-running "+path)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
