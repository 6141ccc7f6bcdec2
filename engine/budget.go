package engine

// IterationBudget bounds the number of dirty walks in one digest.
//
// Every dirty walk spends one unit and Spend fails once the budget is
// overdrawn. With the default of 10 the 11th dirty walk aborts the digest.
//
// Each digest owns its budget; budgets are not shared between runs.
type IterationBudget struct {
	max     int
	current int
}

// NewIterationBudget creates a budget allowing limit dirty walks.
func NewIterationBudget(limit int) *IterationBudget {
	return &IterationBudget{max: limit}
}

// Spend records one dirty walk. Returns an ErrCodeTTLExceeded RuntimeError
// when the walk count exceeds the budget.
func (b *IterationBudget) Spend(runID string) error {
	b.current++
	if b.current > b.max {
		return NewTTLError(runID, b.max)
	}
	return nil
}

// Current returns the number of units spent.
func (b *IterationBudget) Current() int {
	return b.current
}

// Max returns the budget limit.
func (b *IterationBudget) Max() int {
	return b.max
}
