package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"enveye/internal/diff"
	"enveye/internal/evidence"
	"enveye/internal/session"
)

// DiagnosisHandler drives the AI diagnosis lifecycle: start, follow-up,
// view, close, and flag.
type DiagnosisHandler struct {
	registry *session.Registry
	backend  session.Backend
	gather   *evidence.Collector
}

func NewDiagnosisHandler(registry *session.Registry, backend session.Backend, gather *evidence.Collector) *DiagnosisHandler {
	return &DiagnosisHandler{registry: registry, backend: backend, gather: gather}
}

// HandleStart seeds a new diagnosis session from the compared diff and the
// optional evidence the operator attached.
func (h *DiagnosisHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Diff            json.RawMessage `json:"diff"`
		ErrorMessage    string          `json:"error_message"`
		ErrorScreenshot string          `json:"error_screenshot"`
		LogPath         string          `json:"log_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	raw, err := diff.ParseRawDiff(in.Diff)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid diff payload: %v", err))
		return
	}

	var screenshot []byte
	if s := strings.TrimSpace(in.ErrorScreenshot); s != "" {
		screenshot, err = evidence.DecodeDataURL(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "error_screenshot is not valid base64")
			return
		}
		if err := evidence.ValidateScreenshot(screenshot); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	bundle := h.gather.Collect(r.Context(), evidence.Request{
		ErrorMessage: in.ErrorMessage,
		Screenshot:   screenshot,
		LogPath:      in.LogPath,
	})

	mgr := session.NewManager(h.backend)
	result, err := mgr.Start(r.Context(), session.StartInput{
		Records:  diff.Normalize(raw),
		Evidence: bundle,
	})
	if err != nil {
		log.Printf("start diagnosis failed: %v", err)
		respondError(w, http.StatusBadGateway, "diagnosis backend unavailable")
		return
	}
	h.registry.Add(result.SessionID, mgr)

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":  result.SessionID,
		"ai_response": result.Response,
	})
}

func (h *DiagnosisHandler) HandleFollowup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID    string `json:"session_id"`
		FollowupText string `json:"followup_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	mgr, ok := h.registry.Get(strings.TrimSpace(in.SessionID))
	if !ok {
		respondError(w, http.StatusNotFound, "Invalid session")
		return
	}

	response, err := mgr.Followup(r.Context(), in.FollowupText)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyFollowup):
			respondError(w, http.StatusBadRequest, "followup_text is required")
		case errors.Is(err, session.ErrBusy):
			respondError(w, http.StatusConflict, "a follow-up is already in flight")
		case errors.Is(err, session.ErrInvalidState):
			respondError(w, http.StatusConflict, "session is not active")
		default:
			log.Printf("followup for %s failed: %v", in.SessionID, err)
			respondError(w, http.StatusBadGateway, "diagnosis backend unavailable")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":  in.SessionID,
		"ai_response": response,
	})
}

func (h *DiagnosisHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.registry.Get(r.PathValue("session_id"))
	if !ok {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": mgr.SessionID(),
		"created_at": mgr.CreatedAt().Format("2006-01-02T15:04:05"),
		"status":     mgr.State(),
		"flagged":    mgr.Flagged(),
		"messages":   mgr.Messages(),
	})
}

func (h *DiagnosisHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	mgr, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err := mgr.Close(r.Context()); err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			respondError(w, http.StatusConflict, "session is not active")
			return
		}
		log.Printf("close for %s failed: %v", id, err)
		respondError(w, http.StatusBadGateway, "diagnosis backend unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Session %s marked as resolved", id),
	})
}

func (h *DiagnosisHandler) HandleFlag(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"session_id"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	mgr, ok := h.registry.Get(strings.TrimSpace(in.SessionID))
	if !ok {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "No reason provided"
	}
	if err := mgr.Flag(r.Context(), reason); err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadyFlagged):
			respondError(w, http.StatusConflict, "session is already flagged")
		case errors.Is(err, session.ErrInvalidState):
			respondError(w, http.StatusConflict, "session is not active")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Feedback recorded"})
}
