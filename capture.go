package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cnic-capture/images"
	"cnic-capture/models"
)

const ERR_CAPTURE_TRANSITION = "illegal capture state transition"
const ERR_FRAME_NOT_READY = "frame not ready"

// handleCaptureOpen opens (or reopens) the guided capture flow. Any prior
// capture state is torn down first, so two capture sessions never coexist.
func handleCaptureOpen(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	ref, err := decodeJSON[models.SessionRef](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if !session.CaptureState.CanTransition(models.CaptureInitializing) {
		respondWithErr(w, http.StatusConflict, ERR_CAPTURE_TRANSITION, ERR_CAPTURE_TRANSITION,
			fmt.Errorf("cannot open capture from state %q", session.CaptureState))
		return
	}

	session.CloseCapture()
	session.CaptureState = models.CaptureInitializing
	if storeCapture(state, ref, session, w) {
		return
	}

	slog.Info("Capture flow opened", "session_id", ref.SessionId)
	respondCaptureState(w, session)
}

// handleCaptureStarted is the browser's signal that the camera stream was
// acquired; the flow moves from initializing to streaming.
func handleCaptureStarted(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	ref, err := decodeJSON[models.SessionRef](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if session.CaptureState != models.CaptureInitializing {
		respondWithErr(w, http.StatusConflict, ERR_CAPTURE_TRANSITION, ERR_CAPTURE_TRANSITION,
			fmt.Errorf("cannot start streaming from state %q", session.CaptureState))
		return
	}

	session.CaptureState = models.CaptureStreaming
	session.CaptureError = ""
	if storeCapture(state, ref, session, w) {
		return
	}

	slog.Debug("Capture stream started", "session_id", ref.SessionId)
	respondCaptureState(w, session)
}

// handleCaptureFail records a device failure (permission denial, no camera,
// hardware error). The flow moves to the recoverable error state; it is never
// fatal to the host form.
func handleCaptureFail(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	request, err := decodeJSON[models.CaptureFailRequest](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, request.SessionRef)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if !session.CaptureState.CanTransition(models.CaptureError) {
		respondWithErr(w, http.StatusConflict, ERR_CAPTURE_TRANSITION, ERR_CAPTURE_TRANSITION,
			fmt.Errorf("cannot report device failure from state %q", session.CaptureState))
		return
	}

	session.CaptureState = models.CaptureError
	session.CaptureError = request.Message
	session.PendingStill = nil
	if storeCapture(state, request.SessionRef, session, w) {
		return
	}

	slog.Warn("Capture device failure reported", "session_id", request.SessionId, "message", request.Message)
	respondCaptureState(w, session)
}

// handleCaptureFrame crops one camera frame to the guide region and moves the
// flow to previewing. A frame that is not ready yet (empty, undecodable or
// with unusable geometry) is rejected without changing state; the caller must
// re-trigger the capture.
func handleCaptureFrame(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	request, err := decodeJSON[models.CaptureFrameRequest](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, request.SessionRef)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if session.CaptureState != models.CaptureStreaming {
		respondWithErr(w, http.StatusConflict, ERR_CAPTURE_TRANSITION, ERR_CAPTURE_TRANSITION,
			fmt.Errorf("cannot capture a frame from state %q", session.CaptureState))
		return
	}

	if request.Frame == "" {
		respondWithErr(w, http.StatusUnprocessableEntity, ERR_FRAME_NOT_READY, ERR_FRAME_NOT_READY,
			fmt.Errorf("empty frame"))
		return
	}

	frameBytes, _, err := images.DecodeBase64(request.Frame)
	if err != nil {
		respondWithErr(w, http.StatusUnprocessableEntity, ERR_FRAME_NOT_READY, ERR_FRAME_NOT_READY, err)
		return
	}
	frame, err := images.Decode(frameBytes)
	if err != nil {
		respondWithErr(w, http.StatusUnprocessableEntity, ERR_FRAME_NOT_READY, ERR_FRAME_NOT_READY, err)
		return
	}

	card, err := images.CropCard(frame, request.DisplayWidth, request.DisplayHeight)
	if err != nil {
		respondWithErr(w, http.StatusUnprocessableEntity, ERR_FRAME_NOT_READY, "failed to crop frame", err)
		return
	}
	still, err := images.EncodeCardJPEG(card)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to encode card still", err)
		return
	}

	session.CaptureState = models.CapturePreviewing
	session.PendingStill = &models.StagedImage{
		FileName:    fmt.Sprintf("cnic-%d.jpg", time.Now().Unix()),
		ContentType: "image/jpeg",
		Data:        still,
		StagedAt:    time.Now(),
	}
	if storeCapture(state, request.SessionRef, session, w) {
		return
	}

	slog.Info("Frame captured", "session_id", request.SessionId, "still_bytes", len(still))

	response := models.CaptureFrameResponse{
		Preview: encodeDataURI("image/jpeg", still),
		Width:   images.CardOutputWidth,
		Height:  images.CardOutputHeight,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

// handleCaptureRetake discards the pending still and restarts the stream
// without closing the flow.
func handleCaptureRetake(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	ref, err := decodeJSON[models.SessionRef](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if session.CaptureState != models.CapturePreviewing {
		respondWithErr(w, http.StatusConflict, ERR_CAPTURE_TRANSITION, ERR_CAPTURE_TRANSITION,
			fmt.Errorf("cannot retake from state %q", session.CaptureState))
		return
	}

	session.CaptureState = models.CaptureStreaming
	session.PendingStill = nil
	if storeCapture(state, ref, session, w) {
		return
	}

	slog.Debug("Capture retake", "session_id", ref.SessionId)
	respondCaptureState(w, session)
}

// handleCaptureAccept hands the pending still to the upload slot and closes
// the capture flow. Exactly one staged binary results per accept.
func handleCaptureAccept(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	ref, err := decodeJSON[models.SessionRef](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if session.CaptureState != models.CapturePreviewing || session.PendingStill == nil {
		respondWithErr(w, http.StatusConflict, ERR_CAPTURE_TRANSITION, ERR_CAPTURE_TRANSITION,
			fmt.Errorf("cannot accept from state %q", session.CaptureState))
		return
	}

	staged := *session.PendingStill
	staged.StagedAt = time.Now()
	session.Staged[models.SlotAcknowledgement] = staged
	session.CloseCapture()
	if storeCapture(state, ref, session, w) {
		return
	}

	slog.Info("Capture accepted and staged", "session_id", ref.SessionId, "slot", models.SlotAcknowledgement, "file_name", staged.FileName)

	generatePreviewAsync(state, ref, models.SlotAcknowledgement, staged)

	if err := writeJSON(w, http.StatusOK, slotResponse(models.SlotAcknowledgement, staged)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

// handleCaptureCancel releases the capture flow from any state. Already
// staged images are left alone; only capture residue is cleared.
func handleCaptureCancel(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	ref, err := decodeJSON[models.SessionRef](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	session.CloseCapture()
	if storeCapture(state, ref, session, w) {
		return
	}

	slog.Info("Capture flow cancelled", "session_id", ref.SessionId)
	respondCaptureState(w, session)
}

// helpers ------------

func storeCapture(state *ServerState, ref models.SessionRef, session *models.FormSession, w http.ResponseWriter) bool {
	if err := state.sessionStorage.StoreSession(ref.SessionId, session); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to store session", err)
		return true
	}
	return false
}

func respondCaptureState(w http.ResponseWriter, session *models.FormSession) {
	response := models.CaptureStateResponse{
		State:   session.CaptureState,
		Message: session.CaptureError,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}
