package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/logging"
	"github.com/maradi/fieldsync/internal/syncq"
)

// AddStockExecutor creates a serial record on the server. When the payload
// carries a local image reference it uploads the image first; an upload
// failure is transient and aborts the attempt before the create call.
type AddStockExecutor struct {
	client *api.Client
}

// Execute implements Executor for add_stock.
func (e *AddStockExecutor) Execute(ctx context.Context, p syncq.Payload) Result {
	payload, ok := p.(syncq.AddStockPayload)
	if !ok {
		return retryable(fmt.Errorf("add_stock: unexpected payload type %T", p))
	}

	imageURL := payload.ImageURL
	if imageURL == "" && payload.ImageURI != "" {
		url, err := e.client.UploadImage(ctx, payload.ImageURI, "serials")
		if err != nil {
			// Upload failures are never conflicts: the serial was not
			// created, so the whole attempt can simply run again.
			return retryable(fmt.Errorf("image upload failed: %w", err))
		}
		imageURL = url
		logging.Debug("uploaded queued image", map[string]interface{}{
			"serial_number": payload.SerialNumber,
		})
	}

	quantity := payload.Quantity
	if quantity == 0 {
		quantity = 1
	}

	resp, err := e.client.CreateSerial(ctx, api.CreateSerialRequest{
		ItemID:       payload.ItemID,
		SerialNumber: payload.SerialNumber,
		BatchNumber:  payload.BatchNumber,
		Quantity:     quantity,
		ImageURL:     imageURL,
	})
	if err != nil {
		if isDuplicateSerial(err) {
			// The serial genuinely exists server-side; nothing is lost
			// by dropping the intent.
			return conflict(err.Error())
		}
		return retryable(err)
	}

	return Result{Outcome: Success, RemoteID: resp.ID}
}

// isDuplicateSerial reports whether the create-serial error means the
// serial number already exists on the server.
func isDuplicateSerial(err error) bool {
	apiErr, ok := err.(*api.APIError)
	if !ok {
		return false
	}
	if apiErr.Status == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
