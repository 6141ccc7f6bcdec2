package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one recorded digest.
//
// Outcome is empty while the digest is still running (or if it never
// reported back).
type Run struct {
	RunID      string        `json:"run_id"`
	Seq        int64         `json:"seq"`
	Root       string        `json:"root"`
	TTL        int           `json:"ttl"`
	StartedAt  time.Time     `json:"started_at"`
	Outcome    string        `json:"outcome,omitempty"`
	Iterations int           `json:"iterations"`
	Fired      int           `json:"fired"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// Firing is one recorded listener call. New and Old hold canonical JSON
// renderings taken when the listener fired.
type Firing struct {
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"`
	Iteration int    `json:"iteration"`
	Node      string `json:"node"`
	Watch     string `json:"watch"`
	New       string `json:"new"`
	Old       string `json:"old"`
	FirstRun  bool   `json:"first_run,omitempty"`
}

// ListenerFailure is one recorded listener or getter failure.
type ListenerFailure struct {
	RunID     string `json:"run_id"`
	Code      string `json:"code"`
	Iteration int    `json:"iteration"`
	Node      string `json:"node"`
	Watch     string `json:"watch"`
	Message   string `json:"message"`
	Panicked  bool   `json:"panicked,omitempty"`
}

// FiringFilter narrows firing queries. Zero fields match everything.
type FiringFilter struct {
	RunIDs []string
	Watch  string
}
