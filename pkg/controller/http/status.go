package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
)

// StatusHandler reports sync progress and accepts full sync requests
type StatusHandler struct {
	syncUC interfaces.SyncStatusUseCase
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(syncUC interfaces.SyncStatusUseCase) *StatusHandler {
	return &StatusHandler{syncUC: syncUC}
}

// Get returns counters of the sync worker and the last full sync report
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := h.syncUC.Status(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode status response", "error", err)
	}
}

// Trigger requests a full sync. 202 means a new run was scheduled, 409 that
// one is already pending.
func (h *StatusHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := http.StatusAccepted
	result := "scheduled"
	if !h.syncUC.TriggerFullSync(ctx) {
		code = http.StatusConflict
		result = "already pending"
	}
	ctxlog.From(ctx).Info("Full sync requested over HTTP", "result", result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": result,
	}); err != nil {
		ctxlog.From(ctx).Error("Failed to encode trigger response", "error", err)
	}
}
