package engine

// Phase is the engine's digest state.
type Phase int32

const (
	// PhaseIdle means no digest is running.
	PhaseIdle Phase = iota

	// PhaseDigest means a digest is in progress.
	PhaseDigest
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDigest:
		return "digest"
	default:
		return "unknown"
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// beginPhase moves idle to digest. Fails if a digest is already running.
func (e *Engine) beginPhase() error {
	if !e.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseDigest)) {
		return &RuntimeError{
			Code:    ErrCodeDigestInProgress,
			Message: "digest already in progress",
		}
	}
	return nil
}

func (e *Engine) clearPhase() {
	e.phase.Store(int32(PhaseIdle))
}
