package models

// StartSessionResponse hands the browser its session credentials. Both values
// must accompany every later capture, upload and submit call.
type StartSessionResponse struct {
	SessionId string `json:"session_id"`
	Nonce     string `json:"nonce"`
}

// SessionRef identifies the form session an operation acts on.
type SessionRef struct {
	SessionId string `json:"session_id"`
	Nonce     string `json:"nonce"`
}

// CaptureFailRequest reports a device failure (permission denial, missing or
// broken camera) observed by the browser while opening the stream.
type CaptureFailRequest struct {
	SessionRef
	Message string `json:"message"`
}

// CaptureFrameRequest carries one full camera frame for the guided crop.
// Frame is base64 (optionally data-URI prefixed); DisplayWidth/DisplayHeight
// are the on-screen dimensions of the video element the guide overlay was
// rendered against, which generally differ from the frame's native pixel size.
type CaptureFrameRequest struct {
	SessionRef
	Frame         string  `json:"frame"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

// CaptureFrameResponse returns the cropped card still for on-screen preview.
type CaptureFrameResponse struct {
	Preview string `json:"preview"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// CaptureStateResponse reports the capture flow state after a transition.
type CaptureStateResponse struct {
	State   CaptureState `json:"state"`
	Message string       `json:"message,omitempty"`
}

// Base64UploadRequest is the file-picker variant that sends a pre-encoded data
// string instead of a multipart file part.
type Base64UploadRequest struct {
	SessionRef
	Data     string `json:"data"`
	FileName string `json:"file_name,omitempty"`
}

// SlotResponse describes what is currently staged for a slot.
type SlotResponse struct {
	Slot        string `json:"slot"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Preview     string `json:"preview,omitempty"`
	StagedAt    string `json:"staged_at"`
}
