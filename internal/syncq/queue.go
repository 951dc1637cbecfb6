package syncq

import (
	"github.com/maradi/fieldsync/internal/db"
	"github.com/maradi/fieldsync/internal/errors"
	"github.com/maradi/fieldsync/internal/logging"
	"github.com/maradi/fieldsync/internal/models"
)

// Queue is the typed enqueue API over the durable store. Callers never see
// storage details; they hand in a payload and get back the record id.
//
// Enqueue is local-only: it validates, writes, and returns. No network wait.
type Queue struct {
	store *db.Store
}

// NewQueue creates a Queue over the given store.
func NewQueue(store *db.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue validates the payload, persists a new pending record and returns
// its id. A validation failure rejects the action before anything is
// written; a storage failure propagates, it is never swallowed.
func (q *Queue) Enqueue(p Payload) (models.UUID, error) {
	if p == nil {
		return "", errors.New(errors.ErrValidation, "payload is required")
	}

	// Normalize defaults before the payload is frozen on disk.
	if add, ok := p.(AddStockPayload); ok {
		if add.Quantity == 0 {
			add.Quantity = 1
		}
		p = add
	}

	if err := p.Validate(); err != nil {
		return "", err
	}

	raw, err := EncodePayload(p)
	if err != nil {
		return "", err
	}

	rec := &models.SyncRecord{
		ActionType: string(p.Kind()),
		Payload:    raw,
	}
	if err := q.store.InsertSyncRecord(rec); err != nil {
		return "", err
	}

	logging.Info("queued field action", map[string]interface{}{
		"id":          rec.ID.String(),
		"action_type": rec.ActionType,
	})

	return rec.ID, nil
}

// PendingCount returns the number of pending records, straight from the
// durable store.
func (q *Queue) PendingCount() (int, error) {
	return q.store.CountSyncRecords(models.SyncStatusPending)
}
