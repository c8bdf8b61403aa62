package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"cnic-capture/models"
)

const ERR_SUBMISSION_BUSY = "a submission is already in progress"
const ERR_UPSTREAM = "order update rejected upstream"

// handleOrderUpdate assembles the current field values and every staged image
// into exactly one outbound partial-update request. Success resets the whole
// session; failure preserves it byte for byte so the user can correct and
// resubmit. A busy flag serializes submissions; there is no queueing.
func handleOrderUpdate(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	request, err := decodeJSON[models.OrderUpdateRequest](r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, request.SessionRef)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if session.Submitting {
		respondWithErr(w, http.StatusConflict, ERR_SUBMISSION_BUSY, ERR_SUBMISSION_BUSY,
			fmt.Errorf("session %s", request.SessionId))
		return
	}
	session.Submitting = true
	if storeCapture(state, request.SessionRef, session, w) {
		return
	}

	fields := request.FormFields()
	slog.Info("Submitting order update", "session_id", request.SessionId, "fields", len(fields), "images", len(session.Staged))

	result, err := state.updateClient.UpdateOrder(fields, session.Staged)
	if err != nil {
		// Deliberately keep fields and staged images for correction.
		session.Submitting = false
		if storeErr := state.sessionStorage.StoreSession(request.SessionId, session); storeErr != nil {
			slog.Error("Failed to clear busy flag after rejected submission", "session_id", request.SessionId, "error", storeErr)
		}
		respondWithErr(w, http.StatusBadGateway, ERR_UPSTREAM, ERR_UPSTREAM, err)
		return
	}

	// Full form reset: removing the session drops every staged image and
	// preview in one step.
	if err := state.sessionStorage.RemoveSession(request.SessionId); err != nil {
		slog.Error(ERR_SESSION_REMOVAL, "session_id", request.SessionId, "error", err)
	}

	message := result.Message
	if message == "" {
		message = "order updated"
	}
	if err := writeJSON(w, http.StatusOK, models.OrderUpdateResponse{Message: message}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Order update completed", "session_id", request.SessionId, "status", result.Status)
}
