package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptureTransitions(t *testing.T) {
	cases := []struct {
		name string
		from CaptureState
		to   CaptureState
		want bool
	}{
		{"open from closed", CaptureClosed, CaptureInitializing, true},
		{"stream acquired", CaptureInitializing, CaptureStreaming, true},
		{"device failure while initializing", CaptureInitializing, CaptureError, true},
		{"frame captured", CaptureStreaming, CapturePreviewing, true},
		{"device failure while streaming", CaptureStreaming, CaptureError, true},
		{"retake", CapturePreviewing, CaptureStreaming, true},
		{"accept closes the flow", CapturePreviewing, CaptureClosed, true},
		{"retry after failure", CaptureError, CaptureInitializing, true},

		{"reopen while streaming", CaptureStreaming, CaptureInitializing, true},
		{"reopen while previewing", CapturePreviewing, CaptureInitializing, true},
		{"cancel from closed", CaptureClosed, CaptureClosed, true},
		{"cancel from initializing", CaptureInitializing, CaptureClosed, true},
		{"cancel from streaming", CaptureStreaming, CaptureClosed, true},
		{"cancel from error", CaptureError, CaptureClosed, true},

		{"cannot stream without opening", CaptureClosed, CaptureStreaming, false},
		{"cannot preview without streaming", CaptureClosed, CapturePreviewing, false},
		{"cannot preview while initializing", CaptureInitializing, CapturePreviewing, false},
		{"cannot stream out of error", CaptureError, CaptureStreaming, false},
		{"cannot preview out of error", CaptureError, CapturePreviewing, false},
		{"cannot fail while previewing", CapturePreviewing, CaptureError, false},
		{"cannot fail from closed", CaptureClosed, CaptureError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.from.CanTransition(tc.to))
		})
	}
}

func TestNewFormSessionStartsClosed(t *testing.T) {
	session := NewFormSession("abc")
	require.Equal(t, "abc", session.Nonce)
	require.Equal(t, CaptureClosed, session.CaptureState)
	require.NotNil(t, session.Staged)
	require.Empty(t, session.Staged)
	require.False(t, session.Submitting)
}

func TestCloseCaptureKeepsStagedImages(t *testing.T) {
	session := NewFormSession("abc")
	session.CaptureState = CapturePreviewing
	session.CaptureError = "boom"
	session.PendingStill = &StagedImage{FileName: "pending.jpg"}
	session.Staged[SlotAcknowledgement] = StagedImage{FileName: "kept.jpg"}

	session.CloseCapture()

	require.Equal(t, CaptureClosed, session.CaptureState)
	require.Empty(t, session.CaptureError)
	require.Nil(t, session.PendingStill)
	require.Contains(t, session.Staged, SlotAcknowledgement)
	require.Equal(t, "kept.jpg", session.Staged[SlotAcknowledgement].FileName)
}
