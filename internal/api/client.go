// Package api provides the typed client for the inventory server's REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// APIError is a non-2xx response from the server. Executors classify
// outcomes by its status code and message text.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// Client calls the inventory server. All methods take a context; a network
// failure returns a plain error, a server rejection returns *APIError.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL and bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// errorEnvelope is the server's JSON error body: {"error": ...} or {"message": ...}.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		msg := ""
		if json.Unmarshal(data, &envelope) == nil {
			if envelope.Error != "" {
				msg = envelope.Error
			} else {
				msg = envelope.Message
			}
		}
		if msg == "" {
			msg = fmt.Sprintf("request failed: %d", resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// postJSON marshals body and POSTs it.
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json", out)
}

// Health probes the server. Any HTTP response, including an error status,
// proves the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
	if _, ok := err.(*APIError); ok {
		return nil
	}
	return err
}

// CreateSerialRequest is the create-serial endpoint's body.
type CreateSerialRequest struct {
	ItemID       string `json:"itemId"`
	SerialNumber string `json:"serialNumber"`
	BatchNumber  string `json:"batchNumber,omitempty"`
	Quantity     int    `json:"quantity"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// CreateSerialResponse is the created serial record.
type CreateSerialResponse struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serialNumber"`
}

// CreateSerial registers a new serial-numbered unit.
func (c *Client) CreateSerial(ctx context.Context, req CreateSerialRequest) (*CreateSerialResponse, error) {
	var resp CreateSerialResponse
	if err := c.postJSON(ctx, "/api/serials", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkSoldRequest is the bulk mark-sold endpoint's body.
type MarkSoldRequest struct {
	SerialIDs []string `json:"serialIds"`
	SoldTo    string   `json:"soldTo,omitempty"`
	SoldType  string   `json:"soldType,omitempty"`
}

// MarkSoldResponse reports the per-serial outcome of a bulk mark-sold call.
type MarkSoldResponse struct {
	Updated     []string `json:"updated"`
	NotFound    []string `json:"notFound"`
	AlreadySold []string `json:"alreadySold"`
}

// MarkSold marks serials as sold in a single request.
func (c *Client) MarkSold(ctx context.Context, req MarkSoldRequest) (*MarkSoldResponse, error) {
	var resp MarkSoldResponse
	if err := c.postJSON(ctx, "/api/serials/mark-sold", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DiscrepancyRequest reports one audit scan discrepancy.
type DiscrepancyRequest struct {
	AuditID      string `json:"auditId"`
	SerialID     string `json:"serialId"`
	SerialNumber string `json:"serialNumber"`
	Type         string `json:"type"`
	Notes        string `json:"notes,omitempty"`
}

// ReportDiscrepancy submits an audit scan discrepancy.
func (c *Client) ReportDiscrepancy(ctx context.Context, req DiscrepancyRequest) error {
	return c.postJSON(ctx, "/api/audits/discrepancies", req, nil)
}

// uploadResponse is the upload endpoint's body.
type uploadResponse struct {
	URL string `json:"url"`
}

// UploadImage uploads a local image file and returns its public URL.
// The folder selects the server-side bucket path ("serials" for stock photos).
func (c *Client) UploadImage(ctx context.Context, localPath, folder string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.WriteField("folder", folder); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var resp uploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload", &buf, w.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// ItemDTO is a catalog item as served by the items endpoint.
type ItemDTO struct {
	ID            string  `json:"id"`
	ItemCode      string  `json:"itemCode"`
	ItemName      string  `json:"itemName"`
	Category      string  `json:"category"`
	MasterPrice   float64 `json:"masterPrice"`
	InventoryType string  `json:"inventoryType"`
	UOM           string  `json:"uom"`
	IsActive      bool    `json:"isActive"`
}

// ListItems fetches the catalog for the offline cache.
func (c *Client) ListItems(ctx context.Context) ([]ItemDTO, error) {
	var items []ItemDTO
	if err := c.do(ctx, http.MethodGet, "/api/items", nil, "", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SerialDTO is a serial as served by the available-serials endpoint.
type SerialDTO struct {
	ID           string  `json:"id"`
	ItemID       string  `json:"itemId"`
	SerialNumber string  `json:"serialNumber"`
	BatchNumber  *string `json:"batchNumber"`
	Status       string  `json:"status"`
	Quantity     int     `json:"quantity"`
	ImageURL     *string `json:"imageUrl"`
	DateAdded    int64   `json:"dateAdded"`
}

// availableSerialsResponse is the available-serials list envelope.
type availableSerialsResponse struct {
	Items []SerialDTO `json:"items"`
	Total int         `json:"total"`
}

// AvailableSerials fetches available serials for the offline cache,
// optionally scoped to one item.
func (c *Client) AvailableSerials(ctx context.Context, itemID string) ([]SerialDTO, error) {
	path := "/api/serials/available"
	if itemID != "" {
		path += "?itemId=" + url.QueryEscape(itemID)
	}
	var resp availableSerialsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
