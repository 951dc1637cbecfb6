package models

import (
	"encoding/json"
	"time"
)

// Sync record statuses. Transitions are driven solely by the drain path:
// pending -> syncing -> synced | pending (retry) | failed.
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

// Action types for queued mutations. Closed set; adding a kind means
// adding a payload variant and an executor.
const (
	ActionAddStock  = "add_stock"
	ActionMarkSale  = "mark_sale"
	ActionAuditScan = "audit_scan"
)

// SyncRecord represents one queued field action awaiting remote confirmation.
type SyncRecord struct {
	ID           UUID            `db:"id" json:"id"`
	ActionType   string          `db:"action_type" json:"action_type"` // add_stock, mark_sale, audit_scan
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"` // pending, syncing, synced, failed
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	ServerID     *string         `db:"server_id" json:"server_id,omitempty"`
	CreatedAt    int64           `db:"created_at" json:"created_at"`
	UpdatedAt    int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for SyncRecord.
func (SyncRecord) TableName() string {
	return "sync_queue"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (r *SyncRecord) CreatedAtTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (r *SyncRecord) Touch() {
	r.UpdatedAt = time.Now().Unix()
}
