package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret-token", 5*time.Second)
}

// TestClientSendsBearerToken tests request authentication.
func TestClientSendsBearerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Write([]byte("{}"))
	})

	err := client.Health(context.Background())
	require.NoError(t, err)
}

// TestHealthTreatsErrorStatusAsReachable tests the reachability semantics:
// any HTTP answer proves the server is up.
func TestHealthTreatsErrorStatusAsReachable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.NoError(t, client.Health(context.Background()))
}

// TestHealthFailsWhenUnreachable tests that a connection failure is
// reported as offline.
func TestHealthFailsWhenUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond)

	assert.Error(t, client.Health(context.Background()))
}

// TestErrorEnvelopeDecoding tests both server error body shapes.
func TestErrorEnvelopeDecoding(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error":"serial not found"}`, "serial not found"},
		{"message field", `{"message":"invalid token"}`, "invalid token"},
		{"no body", ``, "request failed: 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			})

			_, err := client.CreateSerial(context.Background(), CreateSerialRequest{})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

// TestCreateSerial tests request shape and response decoding.
func TestCreateSerial(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/serials", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateSerialRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "E1001", req.SerialNumber)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateSerialResponse{ID: "srv-7", SerialNumber: req.SerialNumber})
	})

	resp, err := client.CreateSerial(context.Background(), CreateSerialRequest{
		ItemID:       "i-1",
		SerialNumber: "E1001",
		Quantity:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-7", resp.ID)
}

// TestMarkSoldDecodesPartialOutcome tests the per-serial outcome lists.
func TestMarkSoldDecodesPartialOutcome(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/serials/mark-sold", r.URL.Path)
		json.NewEncoder(w).Encode(MarkSoldResponse{
			Updated:     []string{"s-1"},
			NotFound:    []string{"s-3"},
			AlreadySold: []string{"s-2"},
		})
	})

	resp, err := client.MarkSold(context.Background(), MarkSoldRequest{SerialIDs: []string{"s-1", "s-2", "s-3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1"}, resp.Updated)
	assert.Equal(t, []string{"s-2"}, resp.AlreadySold)
	assert.Equal(t, []string{"s-3"}, resp.NotFound)
}

// TestListItems tests catalog fetch decoding.
func TestListItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/items", r.URL.Path)
		json.NewEncoder(w).Encode([]ItemDTO{
			{ID: "i-1", ItemCode: "RING-01", ItemName: "Gold Ring", IsActive: true},
		})
	})

	items, err := client.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "RING-01", items[0].ItemCode)
}

// TestAvailableSerials tests the list envelope and the item filter.
func TestAvailableSerials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/serials/available", r.URL.Path)
		require.Equal(t, "i-1", r.URL.Query().Get("itemId"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []SerialDTO{{ID: "s-1", ItemID: "i-1", SerialNumber: "E1001", Status: "available", Quantity: 1}},
			"total": 1,
		})
	})

	serials, err := client.AvailableSerials(context.Background(), "i-1")
	require.NoError(t, err)
	require.Len(t, serials, 1)
	assert.Equal(t, "E1001", serials[0].SerialNumber)
}
