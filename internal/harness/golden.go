package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dirtycheck/internal/scenario"
	"github.com/roach88/dirtycheck/value"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// Canonical renders the snapshot as canonical JSON. Firing values appear
// as the values themselves rather than as strings holding JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	events := value.NewArray()
	for _, ev := range s.Trace {
		events.Push(eventObject(ev))
	}
	return value.MarshalCanonical(value.NewObject(
		value.P("scenario_name", value.String(s.ScenarioName)),
		value.P("trace", events),
	))
}

// eventObject lays out the fields each event type carries.
func eventObject(ev TraceEvent) *value.Object {
	obj := value.NewObject(value.P("type", value.String(ev.Type)))
	str := func(k, v string) {
		if v != "" {
			obj.Set(k, value.String(v))
		}
	}
	num := func(k string, v int64) {
		obj.Set(k, value.Number(v))
	}

	switch ev.Type {
	case EventDigestStarted:
		num("seq", ev.Seq)
		str("run_id", ev.RunID)
		str("root", ev.Root)
	case EventFired:
		num("seq", ev.Seq)
		str("run_id", ev.RunID)
		num("iteration", int64(ev.Iteration))
		str("node", ev.Node)
		str("watch", ev.Watch)
		obj.Set("new", decodeRendered(ev.New))
		obj.Set("old", decodeRendered(ev.Old))
		if ev.FirstRun {
			obj.Set("first_run", value.Bool(true))
		}
	case EventListenerFailed:
		str("run_id", ev.RunID)
		num("iteration", int64(ev.Iteration))
		str("node", ev.Node)
		str("watch", ev.Watch)
		str("code", ev.Code)
		str("error", ev.Error)
	case EventDigestFinished:
		num("seq", ev.Seq)
		str("run_id", ev.RunID)
		str("outcome", ev.Outcome)
		num("iterations", int64(ev.Iterations))
		num("fired", int64(ev.Fired))
		str("error", ev.Error)
	case EventDigestRejected:
		str("root", ev.Root)
		str("code", ev.Code)
	}
	return obj
}

// decodeRendered turns a canonical rendering back into a value. Renderings
// that are not JSON (unrenderable placeholders) stay strings.
func decodeRendered(s string) value.Value {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return value.String(s)
	}
	v, err := value.FromGo(raw)
	if err != nil {
		return value.String(s)
	}
	return v
}

// Snapshot renders result's trace for golden comparison.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return snapshot.Canonical()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, sc *scenario.Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(sc, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
