package api

import (
	"fmt"
	"net/http"
	"strings"

	"example.com/chizen/internal/narration"
)

type voiceRequest struct {
	Text string `json:"text"`
}

func (h *Handler) generateVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "text is required")
		return
	}
	if h.svc.Voice == nil || !h.svc.Voice.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "narration is not configured")
		return
	}
	url := h.svc.Voice.Synthesize(r.Context(), text)
	if url == "" {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to generate audio")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "audio_url": url})
}

type voiceBatchRequest struct {
	Texts []string `json:"texts"`
}

func (h *Handler) batchVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "texts is required")
		return
	}
	if len(req.Texts) > narration.MaxBatch {
		writeError(w, http.StatusBadRequest, "validation_failed", fmt.Sprintf("at most %d texts per batch", narration.MaxBatch))
		return
	}
	if h.svc.Voice == nil || !h.svc.Voice.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "narration is not configured")
		return
	}
	urls := h.svc.Voice.SynthesizeAll(r.Context(), req.Texts)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "audio_urls": urls})
}

func (h *Handler) voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"voices": narration.Voices})
}
