package models

import "time"

// SlotAcknowledgement is the single upload slot wired to both the file picker
// and the camera capture flow: the CNIC acknowledgement image.
const SlotAcknowledgement = "acknowledgement"

// StagedImage is the binary payload currently held for an upload slot, pending
// inclusion in the next submission. Preview, when set, is always derived from
// exactly the Data of the same staging event; the two are never updated
// independently (StagedAt ties them together).
type StagedImage struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	Preview     string    `json:"preview,omitempty"`
	StagedAt    time.Time `json:"staged_at"`
}

// FormSession carries all transient server-side state for one open form:
// the capture flow state, staged images per slot and the submission busy flag.
// It is JSON-serializable so the Redis storage can hold it as a single value.
type FormSession struct {
	Nonce        string                 `json:"nonce"`
	CaptureState CaptureState           `json:"capture_state"`
	CaptureError string                 `json:"capture_error,omitempty"`
	PendingStill *StagedImage           `json:"pending_still,omitempty"`
	Staged       map[string]StagedImage `json:"staged"`
	Submitting   bool                   `json:"submitting"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewFormSession returns a fresh session with no capture flow open and
// nothing staged.
func NewFormSession(nonce string) *FormSession {
	return &FormSession{
		Nonce:        nonce,
		CaptureState: CaptureClosed,
		Staged:       map[string]StagedImage{},
		CreatedAt:    time.Now(),
	}
}

// CloseCapture drops every piece of capture flow state. Staged images are
// deliberately untouched; cancel never un-stages an accepted image.
func (s *FormSession) CloseCapture() {
	s.CaptureState = CaptureClosed
	s.CaptureError = ""
	s.PendingStill = nil
}
