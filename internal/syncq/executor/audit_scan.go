package executor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/syncq"
)

// AuditScanExecutor reports an audit discrepancy. A not-implemented answer
// from the server (404/501) is not a data problem, only a capability that
// is not live yet, so the scan stays queued for a future attempt. No
// conflict case exists for audit scans.
type AuditScanExecutor struct {
	client *api.Client
}

// Execute implements Executor for audit_scan.
func (e *AuditScanExecutor) Execute(ctx context.Context, p syncq.Payload) Result {
	payload, ok := p.(syncq.AuditScanPayload)
	if !ok {
		return retryable(fmt.Errorf("audit_scan: unexpected payload type %T", p))
	}

	err := e.client.ReportDiscrepancy(ctx, api.DiscrepancyRequest{
		AuditID:      payload.AuditID,
		SerialID:     payload.SerialID,
		SerialNumber: payload.SerialNumber,
		Type:         payload.Type,
		Notes:        payload.Notes,
	})
	if err != nil {
		if apiErr, ok := err.(*api.APIError); ok &&
			(apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusNotImplemented) {
			return retryable(fmt.Errorf("audit endpoint not available yet"))
		}
		return retryable(err)
	}

	return Result{Outcome: Success}
}
