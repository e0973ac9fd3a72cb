package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"enveye/internal/collector"
	"enveye/internal/snapshot"
)

// CollectHandler triggers snapshot collection on a remote machine and
// stores the result.
type CollectHandler struct {
	collector *collector.Collector
	store     *snapshot.Store
}

func NewCollectHandler(c *collector.Collector, store *snapshot.Store) *CollectHandler {
	return &CollectHandler{collector: c, store: store}
}

func (h *CollectHandler) HandleRemoteCollect(w http.ResponseWriter, r *http.Request) {
	var req collector.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	log.Printf("remote collect request: %s folder=%s type=%s", req.VMIP, req.AppFolder, req.VMType)
	result, err := h.collector.Collect(r.Context(), req)
	if err != nil {
		if errors.Is(err, collector.ErrUnsupportedVMType) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported VM type: %s", req.VMType))
			return
		}
		log.Printf("remote collect from %s failed: %v", req.VMIP, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.store.Save(r.Context(), result.Name, result.Content); err != nil {
		log.Printf("remote collect save %s failed: %v", result.Name, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     fmt.Sprintf("Snapshot from %s collected and uploaded!", req.VMIP),
		"vm_hostname": req.VMIP,
		"snapshot":    result.Name,
	})
}
