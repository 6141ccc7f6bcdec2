package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordHarness runs the shipped scenarios into a fresh trace database.
func recordHarness(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "trace.db")
	_, err := execute(t, "run", harnessScenarios, "--db", db)
	require.NoError(t, err)
	return db
}

func TestTrace_Text(t *testing.T) {
	db := recordHarness(t)

	out, err := execute(t, "trace", "--db", db, "--run", "change_chain-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Run change_chain-1 (root root): settled after 3 iteration(s), 2 fired")
	assert.Contains(t, out, "  [2] iteration 1: a@root 1 -> 2\n")
	assert.Contains(t, out, "  [3] iteration 2: b@root 1 -> 2\n")
	assert.Contains(t, out, "Stats: 1 runs (0 aborted), 2 firings, 0 listener failures")
}

func TestTrace_FailuresAndAborts(t *testing.T) {
	db := recordHarness(t)

	out, err := execute(t, "trace", "--db", db, "--run", "listener_failures-1")
	require.NoError(t, err)
	assert.Contains(t, out, "(first run)")
	assert.Contains(t, out, "  ! iteration 1: fails@root LISTENER_FAILED: refused")
	assert.Contains(t, out, "  ! iteration 1: panics@child LISTENER_FAILED: panic: exploded")

	out, err = execute(t, "trace", "--db", db, "--run", "infinite_loop-1")
	require.NoError(t, err)
	assert.Contains(t, out, "aborted after 3 iteration(s)")
	assert.Contains(t, out, "  error: TTL_EXCEEDED: 2 digest() iterations reached. Aborting! (run=infinite_loop-1)")
}

func TestTrace_JSONWatchFilter(t *testing.T) {
	db := recordHarness(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--watch", "name")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	// Every recorded run is listed; only simple_change-2 has a firing of "name".
	assert.Equal(t, resp.Data.Stats.Runs, len(resp.Data.Runs))
	assert.Equal(t, 1, resp.Data.Stats.Firings)
	assert.Equal(t, 1, resp.Data.Stats.Aborted)
	for _, rt := range resp.Data.Runs {
		if rt.Run.RunID == "simple_change-2" {
			require.Len(t, rt.Firings, 1)
			assert.Equal(t, `"b"`, rt.Firings[0].New)
			assert.Equal(t, `"a"`, rt.Firings[0].Old)
		} else {
			assert.Empty(t, rt.Firings)
		}
	}
}

func TestTrace_Errors(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, err = execute(t, "trace", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")

	db := recordHarness(t)
	_, err = execute(t, "trace", "--db", db, "--run", "nope-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: nope-1")
}

func TestTrace_EmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "quiet.yaml", `name: quiet
description: "no digest runs"
tree: { name: root }
watches:
  - { id: x, node: root, key: x }
steps:
  - deregister: x
assertions:
  - { type: fired_count, watch: x, count: 0 }
`)
	db := filepath.Join(dir, "trace.db")
	_, err := execute(t, "run", path, "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}
