package main

import (
	"encoding/json"
	"net/http"

	"github.com/maradi/fieldsync/internal/db"
	apperrors "github.com/maradi/fieldsync/internal/errors"
	"github.com/maradi/fieldsync/internal/syncq"
	"github.com/maradi/fieldsync/internal/syncq/engine"
)

// SyncHandler exposes the queue and orchestrator to the device UI.
type SyncHandler struct {
	engine *engine.Engine
	store  *db.Store
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(eng *engine.Engine, store *db.Store) *SyncHandler {
	return &SyncHandler{engine: eng, store: store}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an application error onto an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperrors.Is(err, apperrors.ErrValidation) {
		status = http.StatusBadRequest
	} else if apperrors.Is(err, apperrors.ErrNotFound) {
		status = http.StatusNotFound
	} else if apperrors.Is(err, apperrors.ErrSyncOffline) || apperrors.Is(err, apperrors.ErrSyncInProgress) {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// enqueue decodes a payload, queues it and answers with the record id.
func (h *SyncHandler) enqueue(w http.ResponseWriter, r *http.Request, p syncq.Payload) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
		return
	}

	id, err := h.engine.Enqueue(deref(p))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// deref unwraps the pointer the JSON decoder needed into the value form
// the queue works with.
func deref(p syncq.Payload) syncq.Payload {
	switch v := p.(type) {
	case *syncq.AddStockPayload:
		return *v
	case *syncq.MarkSalePayload:
		return *v
	case *syncq.AuditScanPayload:
		return *v
	default:
		return p
	}
}

// AddStock handles POST /queue/add-stock
func (h *SyncHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, &syncq.AddStockPayload{})
}

// MarkSale handles POST /queue/mark-sale
func (h *SyncHandler) MarkSale(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, &syncq.MarkSalePayload{})
}

// AuditScan handles POST /queue/audit-scan
func (h *SyncHandler) AuditScan(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, &syncq.AuditScanPayload{})
}

// Status handles GET /sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// SyncNow handles POST /sync/now
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.engine.SyncNow(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// RetryFailed handles POST /sync/retry-failed
func (h *SyncHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	count, err := h.engine.RetryFailed()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reset": count})
}

// ClearError handles POST /sync/clear-error
func (h *SyncHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.engine.ClearError()
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Records handles GET /sync/records, the attempted-action audit trail.
func (h *SyncHandler) Records(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records, err := h.store.ListSyncRecords(100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// CatalogHandler serves the offline item/serial caches to the UI.
type CatalogHandler struct {
	store *db.Store
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store *db.Store) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// Items handles GET /catalog/items
func (h *CatalogHandler) Items(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := h.store.ListItems()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Serials handles GET /catalog/serials?status=...
func (h *CatalogHandler) Serials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	serials, err := h.store.ListSerials(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serials)
}
