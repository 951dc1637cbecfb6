// Package executor translates queued mutation intents into remote calls and
// classifies their outcomes.
package executor

import (
	"context"
	"fmt"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/syncq"
)

// Outcome is the classified result of one remote attempt.
type Outcome int

const (
	// Success: the server accepted the mutation.
	Success Outcome = iota
	// Conflict: server-side state no longer permits the mutation. The
	// intent is obsolete; under server-wins it is discarded as synced
	// with no effect, never retried.
	Conflict
	// Retryable: transient failure (network, 5xx, timeout). The record
	// stays eligible for another attempt.
	Retryable
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Conflict:
		return "conflict"
	case Retryable:
		return "retryable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the tagged outcome of an execution attempt.
type Result struct {
	Outcome  Outcome
	RemoteID string // server-assigned id, set on Success when the server returns one
	Reason   string // failure or conflict reason, empty on plain Success
}

// Executor executes one mutation kind. Implementations never return an
// error: every outcome, including an unexpected one, is folded into the
// Result tag.
type Executor interface {
	Execute(ctx context.Context, p syncq.Payload) Result
}

// Registry is the closed executor set, one per action type.
type Registry map[syncq.ActionType]Executor

// NewRegistry builds the production executor set over the API client.
func NewRegistry(client *api.Client) Registry {
	return Registry{
		syncq.ActionAddStock:  &AddStockExecutor{client: client},
		syncq.ActionMarkSale:  &MarkSaleExecutor{client: client},
		syncq.ActionAuditScan: &AuditScanExecutor{client: client},
	}
}

// retryable builds a Retryable result from an error.
func retryable(err error) Result {
	return Result{Outcome: Retryable, Reason: err.Error()}
}

// conflict builds a Conflict result with the given reason.
func conflict(reason string) Result {
	return Result{Outcome: Conflict, Reason: reason}
}
