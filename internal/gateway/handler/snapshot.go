package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"enveye/internal/diff"
	"enveye/internal/snapshot"
)

// maxSnapshotBytes caps one uploaded snapshot document.
const maxSnapshotBytes = 32 << 20

type SnapshotHandler struct {
	store *snapshot.Store
}

func NewSnapshotHandler(store *snapshot.Store) *SnapshotHandler {
	return &SnapshotHandler{store: store}
}

// HandleUpload accepts a multipart snapshot upload from the agent:
// file field "snapshot" plus hostname / app_path / label form fields.
func (h *SnapshotHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxSnapshotBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	hostname := strings.TrimSpace(r.FormValue("hostname"))
	if hostname == "" {
		hostname = "unknown_host"
	}
	appPath := strings.TrimSpace(r.FormValue("app_path"))
	if appPath == "" {
		appPath = "unknown_app"
	}
	vmType := strings.TrimSpace(r.FormValue("vm_type"))
	if vmType == "" {
		vmType = "local"
	}

	content, err := readUpload(r, "snapshot")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := snapshot.BuildName(hostname, appPath, vmType, r.FormValue("label"))
	if err := h.store.Save(r.Context(), name, content); err != nil {
		log.Printf("snapshot upload from %s failed: %v", hostname, err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("snapshot received and saved: %s", name)
	respondJSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Snapshot from %s collected successfully!", hostname),
		"filename": name,
	})
}

// HandleCompare diffs the environment contexts of two uploaded snapshot
// documents and returns both the grouped differences and the flattened
// display records.
func (h *SnapshotHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(2 * maxSnapshotBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	before, err := readSnapshotUpload(r, "file1")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	after, err := readSnapshotUpload(r, "file2")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	differences := diff.Compare(before.EnvironmentContext, after.EnvironmentContext)
	respondJSON(w, http.StatusOK, map[string]any{
		"differences": differences,
		"records":     diff.Normalize(differences),
	})
}

func (h *SnapshotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"snapshots": names})
}

func (h *SnapshotHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	content, err := h.store.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			respondError(w, http.StatusNotFound, "File not found.")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(content)
}

func (h *SnapshotHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if err := h.store.Delete(r.Context(), name); err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			respondError(w, http.StatusNotFound, "File not found.")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Snapshot %s deleted", name)})
}

func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing file field %q", field)
	}
	defer file.Close()
	return readAllCapped(file)
}

func readSnapshotUpload(r *http.Request, field string) (*snapshot.Snapshot, error) {
	content, err := readUpload(r, field)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", field, err)
	}
	return snap, nil
}

func readAllCapped(file multipart.File) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(file, maxSnapshotBytes+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxSnapshotBytes {
		return nil, fmt.Errorf("upload exceeds %d MB limit", maxSnapshotBytes>>20)
	}
	if !json.Valid(content) {
		return nil, errors.New("upload is not valid JSON")
	}
	return content, nil
}
