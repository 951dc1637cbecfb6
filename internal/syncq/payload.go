// Package syncq provides the typed mutation queue for offline field actions.
package syncq

import (
	"encoding/json"
	"fmt"

	"github.com/maradi/fieldsync/internal/errors"
	"github.com/maradi/fieldsync/internal/models"
)

// SchemaVersion is the current on-disk payload schema version. Stored with
// every payload so future builds can decode records queued by older ones.
const SchemaVersion = 1

// ActionType identifies a mutation kind. Closed set: extending it means
// adding a payload variant and an executor.
type ActionType string

const (
	ActionAddStock  ActionType = models.ActionAddStock
	ActionMarkSale  ActionType = models.ActionMarkSale
	ActionAuditScan ActionType = models.ActionAuditScan
)

// Payload is the kind-specific immutable data captured at enqueue time.
type Payload interface {
	Kind() ActionType
	Validate() error
}

// AddStockPayload records a new serial-numbered unit of stock.
// At most one of ImageURL (already uploaded, captured online) or ImageURI
// (local file, captured offline) may be set.
type AddStockPayload struct {
	ItemID       string `json:"itemId"`
	SerialNumber string `json:"serialNumber"`
	BatchNumber  string `json:"batchNumber,omitempty"`
	Quantity     int    `json:"quantity"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ImageURI     string `json:"imageUri,omitempty"`
}

// Kind returns the action type for AddStockPayload.
func (AddStockPayload) Kind() ActionType { return ActionAddStock }

// Validate checks the local preconditions for queueing an add-stock action.
func (p AddStockPayload) Validate() error {
	if p.ItemID == "" {
		return errors.New(errors.ErrValidation, "add_stock: itemId is required")
	}
	if p.SerialNumber == "" {
		return errors.New(errors.ErrValidation, "add_stock: serialNumber is required")
	}
	if p.Quantity < 0 {
		return errors.New(errors.ErrValidation, "add_stock: quantity must not be negative")
	}
	if p.ImageURL != "" && p.ImageURI != "" {
		return errors.New(errors.ErrValidation, "add_stock: imageUrl and imageUri are mutually exclusive")
	}
	return nil
}

// MarkSalePayload marks one or more serials as sold.
type MarkSalePayload struct {
	SerialIDs []string `json:"serialIds"`
	SoldTo    string   `json:"soldTo,omitempty"`
	SoldType  string   `json:"soldType,omitempty"`
}

// Kind returns the action type for MarkSalePayload.
func (MarkSalePayload) Kind() ActionType { return ActionMarkSale }

// Validate checks the local preconditions for queueing a mark-sale action.
func (p MarkSalePayload) Validate() error {
	if len(p.SerialIDs) == 0 {
		return errors.New(errors.ErrValidation, "mark_sale: at least one serialId is required")
	}
	for _, id := range p.SerialIDs {
		if id == "" {
			return errors.New(errors.ErrValidation, "mark_sale: serialIds must not contain empty ids")
		}
	}
	return nil
}

// AuditScanPayload records a discrepancy found during a stock audit.
type AuditScanPayload struct {
	AuditID      string `json:"auditId"`
	SerialID     string `json:"serialId"`
	SerialNumber string `json:"serialNumber"`
	Type         string `json:"type"` // found, missing, damaged
	Notes        string `json:"notes,omitempty"`
}

// Kind returns the action type for AuditScanPayload.
func (AuditScanPayload) Kind() ActionType { return ActionAuditScan }

// Validate checks the local preconditions for queueing an audit scan.
func (p AuditScanPayload) Validate() error {
	if p.AuditID == "" {
		return errors.New(errors.ErrValidation, "audit_scan: auditId is required")
	}
	if p.SerialID == "" {
		return errors.New(errors.ErrValidation, "audit_scan: serialId is required")
	}
	if p.SerialNumber == "" {
		return errors.New(errors.ErrValidation, "audit_scan: serialNumber is required")
	}
	if p.Type == "" {
		return errors.New(errors.ErrValidation, "audit_scan: type is required")
	}
	return nil
}

// envelope is the stored payload form: the data wrapped with its schema
// version. The kind tag lives in the record's action_type column.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload for durable storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.Kind(), err)
	}
	raw, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.Kind(), err)
	}
	return raw, nil
}

// DecodePayload deserializes a stored payload, dispatching on the kind tag.
func DecodePayload(kind ActionType, raw json.RawMessage) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode payload envelope: %w", err)
	}
	if env.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("payload schema version %d is newer than supported %d", env.SchemaVersion, SchemaVersion)
	}

	switch kind {
	case ActionAddStock:
		var p AddStockPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode add_stock payload: %w", err)
		}
		return p, nil
	case ActionMarkSale:
		var p MarkSalePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode mark_sale payload: %w", err)
		}
		return p, nil
	case ActionAuditScan:
		var p AuditScanPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode audit_scan payload: %w", err)
		}
		return p, nil
	default:
		return nil, errors.New(errors.ErrUnknownAction, fmt.Sprintf("unknown action type %q", kind))
	}
}
