package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/syncq"
)

// MarkSaleExecutor marks serials as sold with one bulk call. If the server
// reports any serial as already sold or missing, the whole record is a
// conflict: the server's state is authoritative for availability. The
// conflict grain is the attempt, not the individual serial.
type MarkSaleExecutor struct {
	client *api.Client
}

// Execute implements Executor for mark_sale.
func (e *MarkSaleExecutor) Execute(ctx context.Context, p syncq.Payload) Result {
	payload, ok := p.(syncq.MarkSalePayload)
	if !ok {
		return retryable(fmt.Errorf("mark_sale: unexpected payload type %T", p))
	}

	resp, err := e.client.MarkSold(ctx, api.MarkSoldRequest{
		SerialIDs: payload.SerialIDs,
		SoldTo:    payload.SoldTo,
		SoldType:  payload.SoldType,
	})
	if err != nil {
		if isAvailabilityConflict(err) {
			return conflict(err.Error())
		}
		return retryable(err)
	}

	if len(resp.AlreadySold) > 0 || len(resp.NotFound) > 0 {
		return conflict(fmt.Sprintf("serials not available (server state): alreadySold=%d notFound=%d",
			len(resp.AlreadySold), len(resp.NotFound)))
	}

	return Result{Outcome: Success}
}

// isAvailabilityConflict reports whether the mark-sold error means server
// state already settled the serials' availability.
func isAvailabilityConflict(err error) bool {
	apiErr, ok := err.(*api.APIError)
	if !ok {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "already sold") || strings.Contains(msg, "not available")
}
