package store

import (
	"fmt"
	"time"

	"github.com/roach88/dirtycheck/value"
)

// renderValue converts a watched value to canonical JSON TEXT for storage.
// Unrenderable values (such as host nodes with cycles through Go state) are
// stored as a descriptive placeholder rather than failing the write.
func renderValue(v value.Value) string {
	return value.MarshalCanonicalString(v)
}

// formatTime stores timestamps as RFC 3339 UTC text.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse started_at %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
