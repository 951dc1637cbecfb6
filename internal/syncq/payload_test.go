package syncq

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/maradi/fieldsync/internal/errors"
)

// TestAddStockPayloadValidate tests local preconditions for add_stock.
func TestAddStockPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload AddStockPayload
		wantErr bool
	}{
		{
			name:    "valid minimal",
			payload: AddStockPayload{ItemID: "i-1", SerialNumber: "E1001", Quantity: 1},
		},
		{
			name:    "valid with local image",
			payload: AddStockPayload{ItemID: "i-1", SerialNumber: "E1001", Quantity: 1, ImageURI: "file:///tmp/photo.jpg"},
		},
		{
			name:    "missing item id",
			payload: AddStockPayload{SerialNumber: "E1001", Quantity: 1},
			wantErr: true,
		},
		{
			name:    "missing serial number",
			payload: AddStockPayload{ItemID: "i-1", Quantity: 1},
			wantErr: true,
		},
		{
			name:    "negative quantity",
			payload: AddStockPayload{ItemID: "i-1", SerialNumber: "E1001", Quantity: -1},
			wantErr: true,
		},
		{
			name:    "both image fields set",
			payload: AddStockPayload{ItemID: "i-1", SerialNumber: "E1001", Quantity: 1, ImageURL: "https://cdn/x.jpg", ImageURI: "file:///tmp/x.jpg"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.wantErr && !errors.Is(err, errors.ErrValidation) {
				t.Errorf("Expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

// TestMarkSalePayloadValidate tests local preconditions for mark_sale.
func TestMarkSalePayloadValidate(t *testing.T) {
	valid := MarkSalePayload{SerialIDs: []string{"s-1", "s-2"}, SoldTo: "Walk-in", SoldType: "retail"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if err := (MarkSalePayload{}).Validate(); err == nil {
		t.Error("Expected error for empty serial list")
	}
	if err := (MarkSalePayload{SerialIDs: []string{"s-1", ""}}).Validate(); err == nil {
		t.Error("Expected error for empty serial id")
	}
}

// TestAuditScanPayloadValidate tests local preconditions for audit_scan.
func TestAuditScanPayloadValidate(t *testing.T) {
	valid := AuditScanPayload{AuditID: "a-1", SerialID: "s-1", SerialNumber: "E1001", Type: "missing"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	missing := []AuditScanPayload{
		{SerialID: "s-1", SerialNumber: "E1001", Type: "missing"},
		{AuditID: "a-1", SerialNumber: "E1001", Type: "missing"},
		{AuditID: "a-1", SerialID: "s-1", Type: "missing"},
		{AuditID: "a-1", SerialID: "s-1", SerialNumber: "E1001"},
	}
	for i, p := range missing {
		if err := p.Validate(); err == nil {
			t.Errorf("Case %d: expected validation error", i)
		}
	}
}

// TestEncodeDecodeRoundTrip tests the stored envelope form and kind dispatch.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := []Payload{
		AddStockPayload{ItemID: "i-1", SerialNumber: "E1001", Quantity: 2, ImageURI: "file:///tmp/p.jpg"},
		MarkSalePayload{SerialIDs: []string{"s-1"}, SoldTo: "Acme", SoldType: "wholesale"},
		AuditScanPayload{AuditID: "a-1", SerialID: "s-1", SerialNumber: "E1001", Type: "found", Notes: "shelf 3"},
	}

	for _, p := range payloads {
		raw, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("%s: EncodePayload failed: %v", p.Kind(), err)
		}

		var env struct {
			SchemaVersion int `json:"schema_version"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s: stored form is not an envelope: %v", p.Kind(), err)
		}
		if env.SchemaVersion != SchemaVersion {
			t.Errorf("%s: expected schema version %d, got %d", p.Kind(), SchemaVersion, env.SchemaVersion)
		}

		decoded, err := DecodePayload(p.Kind(), raw)
		if err != nil {
			t.Fatalf("%s: DecodePayload failed: %v", p.Kind(), err)
		}
		if decoded.Kind() != p.Kind() {
			t.Errorf("Expected kind %s, got %s", p.Kind(), decoded.Kind())
		}
	}
}

// TestDecodePayloadUnknownKind tests rejection of unknown action types.
func TestDecodePayloadUnknownKind(t *testing.T) {
	raw, _ := EncodePayload(AddStockPayload{ItemID: "i-1", SerialNumber: "E1001", Quantity: 1})

	_, err := DecodePayload(ActionType("transfer_stock"), raw)
	if err == nil {
		t.Fatal("Expected error for unknown action type")
	}
	if !errors.Is(err, errors.ErrUnknownAction) {
		t.Errorf("Expected UNKNOWN_ACTION_TYPE, got %v", err)
	}
}

// TestDecodePayloadNewerSchema tests the forward-version guard.
func TestDecodePayloadNewerSchema(t *testing.T) {
	raw := []byte(`{"schema_version":99,"data":{"itemId":"i-1","serialNumber":"E1001","quantity":1}}`)

	_, err := DecodePayload(ActionAddStock, raw)
	if err == nil {
		t.Fatal("Expected error for newer schema version")
	}
	if !strings.Contains(err.Error(), "newer") {
		t.Errorf("Unexpected error message: %v", err)
	}
}
