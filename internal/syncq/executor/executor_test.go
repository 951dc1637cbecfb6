package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/syncq"
)

func testClient(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, "test-token", 5*time.Second)
}

// TestAddStockSuccess tests the plain create path without an image.
func TestAddStockSuccess(t *testing.T) {
	var got api.CreateSerialRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/serials", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "srv-99", "serialNumber": got.SerialNumber})
	}))

	exec := &AddStockExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.AddStockPayload{
		ItemID:       "i-1",
		SerialNumber: "E1001",
		Quantity:     2,
	})

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "srv-99", res.RemoteID)
	assert.Equal(t, "E1001", got.SerialNumber)
	assert.Equal(t, 2, got.Quantity)
}

// TestAddStockUploadsImageFirst tests that a queued local image is uploaded
// before the create call and its URL is carried into the request.
func TestAddStockUploadsImageFirst(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(imgPath, []byte("jpeg-bytes"), 0644))

	var calls []string
	var created api.CreateSerialRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case "/api/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "serials", r.FormValue("folder"))
			_, _, err := r.FormFile("file")
			require.NoError(t, err)
			json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/serials/photo.jpg"})
		case "/api/serials":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			json.NewEncoder(w).Encode(map[string]string{"id": "srv-1"})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))

	exec := &AddStockExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.AddStockPayload{
		ItemID:       "i-1",
		SerialNumber: "E1001",
		ImageURI:     imgPath,
	})

	require.Equal(t, Success, res.Outcome)
	require.Equal(t, []string{"/api/upload", "/api/serials"}, calls)
	assert.Equal(t, "https://cdn.example.com/serials/photo.jpg", created.ImageURL)
	assert.Equal(t, 1, created.Quantity, "quantity defaults to 1")
}

// TestAddStockUploadFailureIsRetryable tests that an upload failure aborts
// the attempt before the create call.
func TestAddStockUploadFailureIsRetryable(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(imgPath, []byte("jpeg-bytes"), 0644))

	serialCalls := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/serials" {
			serialCalls++
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "storage unavailable"})
	}))

	exec := &AddStockExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.AddStockPayload{
		ItemID:       "i-1",
		SerialNumber: "E1001",
		ImageURI:     imgPath,
	})

	assert.Equal(t, Retryable, res.Outcome)
	assert.Zero(t, serialCalls, "create must not run after a failed upload")
}

// TestAddStockDuplicateIsConflict tests duplicate-serial classification.
func TestAddStockDuplicateIsConflict(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"409 status", http.StatusConflict, `{"error":"conflict"}`},
		{"already exists message", http.StatusBadRequest, `{"error":"Serial number already exists"}`},
		{"duplicate message", http.StatusUnprocessableEntity, `{"message":"duplicate serial"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			exec := &AddStockExecutor{client: client}
			res := exec.Execute(context.Background(), syncq.AddStockPayload{
				ItemID:       "i-1",
				SerialNumber: "E1001",
				Quantity:     1,
			})

			assert.Equal(t, Conflict, res.Outcome)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

// TestAddStockServerErrorIsRetryable tests that 5xx stays retryable.
func TestAddStockServerErrorIsRetryable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	exec := &AddStockExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.AddStockPayload{
		ItemID:       "i-1",
		SerialNumber: "E1001",
		Quantity:     1,
	})

	assert.Equal(t, Retryable, res.Outcome)
}

// TestMarkSaleSuccess tests the bulk mark-sold happy path.
func TestMarkSaleSuccess(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/serials/mark-sold", r.URL.Path)
		var req api.MarkSoldRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(api.MarkSoldResponse{Updated: req.SerialIDs})
	}))

	exec := &MarkSaleExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.MarkSalePayload{
		SerialIDs: []string{"s-1", "s-2"},
		SoldTo:    "Walk-in",
	})

	assert.Equal(t, Success, res.Outcome)
}

// TestMarkSaleAlreadySoldIsConflict tests whole-record conflict when the
// server reports any serial as unavailable.
func TestMarkSaleAlreadySoldIsConflict(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.MarkSoldResponse{
			Updated:     []string{"s-1"},
			AlreadySold: []string{"s-2"},
		})
	}))

	exec := &MarkSaleExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.MarkSalePayload{SerialIDs: []string{"s-1", "s-2"}})

	assert.Equal(t, Conflict, res.Outcome)
	assert.Contains(t, res.Reason, "alreadySold=1")
}

// TestMarkSaleConflictMessage tests message-based conflict classification.
func TestMarkSaleConflictMessage(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "serial s-2 is already sold"})
	}))

	exec := &MarkSaleExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.MarkSalePayload{SerialIDs: []string{"s-2"}})

	assert.Equal(t, Conflict, res.Outcome)
}

// TestMarkSaleNetworkFailureIsRetryable tests transient classification.
func TestMarkSaleNetworkFailureIsRetryable(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", "", 200*time.Millisecond)

	exec := &MarkSaleExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.MarkSalePayload{SerialIDs: []string{"s-1"}})

	assert.Equal(t, Retryable, res.Outcome)
}

// TestAuditScanSuccess tests discrepancy submission.
func TestAuditScanSuccess(t *testing.T) {
	var req api.DiscrepancyRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/audits/discrepancies", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
	}))

	exec := &AuditScanExecutor{client: client}
	res := exec.Execute(context.Background(), syncq.AuditScanPayload{
		AuditID:      "a-1",
		SerialID:     "s-1",
		SerialNumber: "E1001",
		Type:         "missing",
		Notes:        "not on shelf",
	})

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "missing", req.Type)
}

// TestAuditScanEndpointMissingIsRetryable tests that 404/501 keeps the scan
// queued instead of failing it.
func TestAuditScanEndpointMissingIsRetryable(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusNotImplemented} {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		exec := &AuditScanExecutor{client: client}
		res := exec.Execute(context.Background(), syncq.AuditScanPayload{
			AuditID:      "a-1",
			SerialID:     "s-1",
			SerialNumber: "E1001",
			Type:         "found",
		})

		assert.Equal(t, Retryable, res.Outcome, "status %d", status)
		assert.Contains(t, res.Reason, "not available yet")
	}
}

// TestNewRegistryCoversAllActions tests the closed executor set.
func TestNewRegistryCoversAllActions(t *testing.T) {
	registry := NewRegistry(api.NewClient("http://localhost", "", time.Second))

	for _, action := range []syncq.ActionType{syncq.ActionAddStock, syncq.ActionMarkSale, syncq.ActionAuditScan} {
		assert.Contains(t, registry, action)
	}
	assert.Len(t, registry, 3)
}

// TestWrongPayloadTypeIsRetryable tests the type-mismatch guard.
func TestWrongPayloadTypeIsRetryable(t *testing.T) {
	exec := &AddStockExecutor{client: api.NewClient("http://localhost", "", time.Second)}
	res := exec.Execute(context.Background(), syncq.MarkSalePayload{SerialIDs: []string{"s-1"}})

	assert.Equal(t, Retryable, res.Outcome)
}
