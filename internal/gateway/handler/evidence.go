package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"enveye/internal/evidence"
)

// EvidenceHandler serves the standalone evidence utilities the dashboard
// calls before or outside a diagnosis session.
type EvidenceHandler struct {
	ocr  evidence.TextExtractor
	logs evidence.LogReader
}

func NewEvidenceHandler(ocr evidence.TextExtractor, logs evidence.LogReader) *EvidenceHandler {
	return &EvidenceHandler{ocr: ocr, logs: logs}
}

// HandleOCR extracts text from a base64 screenshot.
func (h *EvidenceHandler) HandleOCR(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Base64Image string `json:"base64_image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.Base64Image) == "" {
		respondError(w, http.StatusBadRequest, "No image provided")
		return
	}
	if h.ocr == nil {
		respondError(w, http.StatusServiceUnavailable, "OCR is not configured")
		return
	}

	image, err := evidence.DecodeDataURL(in.Base64Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is not valid base64")
		return
	}
	if err := evidence.ValidateScreenshot(image); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := h.ocr.ExtractText(r.Context(), image)
	if err != nil {
		log.Printf("ocr failed: %v", err)
		respondError(w, http.StatusInternalServerError, "OCR processing failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"text": evidence.CleanText(text)})
}

// HandleReadLog returns the condensed content of a log file on the
// gateway host.
func (h *EvidenceHandler) HandleReadLog(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	path := strings.TrimSpace(in.Path)
	if path == "" {
		respondError(w, http.StatusBadRequest, "No log path provided")
		return
	}

	content, err := h.logs.ReadLog(r.Context(), path)
	if err != nil {
		log.Printf("read log %s failed: %v", path, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"content": content})
}
