package models

// CaptureState is the tagged state of the guided capture flow. The flow is
// created by an open request and destroyed by accept or cancel; it never
// holds two states at once (e.g. error and previewing are mutually exclusive).
type CaptureState string

const (
	// CaptureClosed is both the initial and the terminal state. A session
	// whose capture flow was never opened reports closed as well.
	CaptureClosed       CaptureState = "closed"
	CaptureInitializing CaptureState = "initializing"
	CaptureStreaming    CaptureState = "streaming"
	CaptureError        CaptureState = "error"
	CapturePreviewing   CaptureState = "previewing"
)

// captureTransitions enumerates every legal state change.
// open tears down whatever came before, so it is legal from any state,
// and cancel is likewise always legal; both are handled in CanTransition.
var captureTransitions = map[CaptureState][]CaptureState{
	CaptureInitializing: {CaptureStreaming, CaptureError},
	CaptureStreaming:    {CapturePreviewing, CaptureError},
	CapturePreviewing:   {CaptureStreaming, CaptureClosed},
	CaptureError:        {CaptureInitializing},
}

// CanTransition reports whether moving from s to next is a legal step of the
// capture state machine.
func (s CaptureState) CanTransition(next CaptureState) bool {
	// Reopening restarts the flow and closing releases it, from anywhere.
	if next == CaptureInitializing && s != CaptureError {
		return true
	}
	if next == CaptureClosed {
		return true
	}
	for _, allowed := range captureTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
