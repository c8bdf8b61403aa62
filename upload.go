package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cnic-capture/images"
	"cnic-capture/models"

	"github.com/gorilla/mux"
)

const ERR_UNKNOWN_SLOT = "unknown upload slot"
const ERR_NOT_AN_IMAGE = "only image uploads are accepted"
const ERR_TOO_LARGE = "image exceeds the 2 MiB limit"

// maxUploadBytes caps staged payloads; anything at or above is rejected.
const maxUploadBytes = 2 << 20

// handleUpload normalizes an accepted image source into a staged binary plus
// preview for the named slot. It accepts a multipart file part or a JSON body
// with a base64 data string. On any rejection the previously staged value for
// the slot is left untouched.
func handleUpload(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	slot := mux.Vars(r)["slot"]
	if !knownSlot(state, slot) {
		respondWithErr(w, http.StatusNotFound, ERR_UNKNOWN_SLOT, ERR_UNKNOWN_SLOT, fmt.Errorf("slot %q", slot))
		return
	}

	var ref models.SessionRef
	var staged models.StagedImage
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		ref, staged, err = readMultipartUpload(r)
	} else {
		ref, staged, err = readBase64Upload(r)
	}
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	if len(staged.Data) >= maxUploadBytes {
		respondWithErr(w, http.StatusBadRequest, ERR_TOO_LARGE, ERR_TOO_LARGE,
			fmt.Errorf("payload of %d bytes", len(staged.Data)))
		return
	}

	contentType := staged.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(staged.Data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		respondWithErr(w, http.StatusBadRequest, ERR_NOT_AN_IMAGE, ERR_NOT_AN_IMAGE,
			fmt.Errorf("content type %q", contentType))
		return
	}
	staged.ContentType = contentType

	// The binary is staged immediately; the preview follows asynchronously.
	staged.StagedAt = time.Now()
	session.Staged[slot] = staged
	if storeCapture(state, ref, session, w) {
		return
	}

	slog.Info("Image staged", "session_id", ref.SessionId, "slot", slot, "file_name", staged.FileName, "size", len(staged.Data))

	generatePreviewAsync(state, ref, slot, staged)

	if err := writeJSON(w, http.StatusOK, slotResponse(slot, staged)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

// readMultipartUpload pulls the session reference and file part out of a
// browser file-picker submission.
func readMultipartUpload(r *http.Request) (models.SessionRef, models.StagedImage, error) {
	if err := r.ParseMultipartForm(maxUploadBytes * 2); err != nil {
		return models.SessionRef{}, models.StagedImage{}, fmt.Errorf("parse multipart form: %w", err)
	}
	ref := models.SessionRef{
		SessionId: r.FormValue("session_id"),
		Nonce:     r.FormValue("nonce"),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ref, models.StagedImage{}, fmt.Errorf("file part missing: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ref, models.StagedImage{}, fmt.Errorf("failed to read file part: %w", err)
	}

	return ref, models.StagedImage{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// readBase64Upload decodes the file-picker variant that delivers the image as
// a pre-encoded data string. A synthesized timestamped name is used when the
// caller supplies none.
func readBase64Upload(r *http.Request) (models.SessionRef, models.StagedImage, error) {
	request, err := decodeJSON[models.Base64UploadRequest](r)
	if err != nil {
		return models.SessionRef{}, models.StagedImage{}, err
	}

	data, contentType, err := images.DecodeBase64(request.Data)
	if err != nil {
		return request.SessionRef, models.StagedImage{}, err
	}

	fileName := request.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	return request.SessionRef, models.StagedImage{
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// handleGetSlot reports what is currently staged for a slot, including the
// preview once it has been generated.
func handleGetSlot(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	slot := mux.Vars(r)["slot"]
	if !knownSlot(state, slot) {
		respondWithErr(w, http.StatusNotFound, ERR_UNKNOWN_SLOT, ERR_UNKNOWN_SLOT, fmt.Errorf("slot %q", slot))
		return
	}

	ref := models.SessionRef{
		SessionId: r.URL.Query().Get("session_id"),
		Nonce:     r.URL.Query().Get("nonce"),
	}
	session, err := loadSession(state.sessionStorage, ref)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_SESSION, ERR_INVALID_SESSION, err)
		return
	}

	staged, ok := session.Staged[slot]
	if !ok {
		respondWithErr(w, http.StatusNotFound, "nothing staged", "nothing staged for slot", fmt.Errorf("slot %q", slot))
		return
	}

	if err := writeJSON(w, http.StatusOK, slotResponse(slot, staged)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

// generatePreviewAsync derives the slot preview in the background and writes
// it back to the same slot. The preview is only attached when the slot still
// holds the same staging event, so a preview can never describe a payload
// other than the one staged next to it.
func generatePreviewAsync(state *ServerState, ref models.SessionRef, slot string, staged models.StagedImage) {
	go func() {
		preview, err := images.PreviewBase64(staged.Data)
		if err != nil {
			slog.Warn("Failed to generate preview", "session_id", ref.SessionId, "slot", slot, "error", err)
			return
		}

		session, err := state.sessionStorage.RetrieveSession(ref.SessionId)
		if err != nil {
			slog.Warn("Session gone before preview finished", "session_id", ref.SessionId, "error", err)
			return
		}
		current, ok := session.Staged[slot]
		if !ok || !current.StagedAt.Equal(staged.StagedAt) {
			slog.Debug("Slot restaged before preview finished, dropping preview", "session_id", ref.SessionId, "slot", slot)
			return
		}

		current.Preview = preview
		session.Staged[slot] = current
		if err := state.sessionStorage.StoreSession(ref.SessionId, session); err != nil {
			slog.Warn("Failed to store preview", "session_id", ref.SessionId, "slot", slot, "error", err)
			return
		}
		slog.Debug("Preview generated", "session_id", ref.SessionId, "slot", slot)
	}()
}

// helpers ------------

func knownSlot(state *ServerState, slot string) bool {
	for _, s := range state.slots {
		if s == slot {
			return true
		}
	}
	return false
}

func slotResponse(slot string, staged models.StagedImage) models.SlotResponse {
	return models.SlotResponse{
		Slot:        slot,
		FileName:    staged.FileName,
		ContentType: staged.ContentType,
		Size:        len(staged.Data),
		Preview:     staged.Preview,
		StagedAt:    staged.StagedAt.Format(time.RFC3339),
	}
}

func encodeDataURI(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}
