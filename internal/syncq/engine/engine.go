// Package engine provides the sync orchestrator: it observes connectivity,
// drains the mutation queue in order when online, and exposes aggregate
// status to the UI surface.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maradi/fieldsync/internal/connectivity"
	"github.com/maradi/fieldsync/internal/db"
	"github.com/maradi/fieldsync/internal/errors"
	"github.com/maradi/fieldsync/internal/logging"
	"github.com/maradi/fieldsync/internal/models"
	"github.com/maradi/fieldsync/internal/syncq"
	"github.com/maradi/fieldsync/internal/syncq/executor"
)

// MaxRetries is the number of attempts a record gets before it is parked
// as failed and left for manual intervention.
const MaxRetries = 3

// State is the orchestrator's aggregate state.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
)

// Status is a snapshot of the orchestrator for the UI.
type Status struct {
	State        State      `json:"state"`
	Online       bool       `json:"online"`
	PendingCount int        `json:"pending_count"`
	FailedCount  int        `json:"failed_count"`
	LastError    *string    `json:"last_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// Engine drains the mutation queue. It is constructed explicitly with its
// dependencies and has a Start/Stop lifecycle; nothing here is a package
// singleton.
//
// At most one drain runs at a time: a trigger while one is in flight is a
// no-op. Enqueues may happen concurrently with a drain; they only append
// and are picked up on the next pass.
type Engine struct {
	store     *db.Store
	queue     *syncq.Queue
	executors executor.Registry
	monitor   *connectivity.Monitor

	mu            sync.Mutex
	state         State
	pendingCount  int
	failedCount   int
	lastError     *string
	lastSyncedAt  *time.Time
	drainActive   bool
	unsubscribe   func()
	isRunning     bool
	subscribers   map[int]func(Status)
	nextSubID     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine over the given dependencies.
func New(store *db.Store, queue *syncq.Queue, executors executor.Registry, monitor *connectivity.Monitor) *Engine {
	return &Engine{
		store:       store,
		queue:       queue,
		executors:   executors,
		monitor:     monitor,
		state:       StateIdle,
		subscribers: make(map[int]func(Status)),
	}
}

// Start wires the engine to the connectivity monitor and reconciles the
// pending counter from the store. Exactly one monitor subscription is held
// at a time; starting again swaps it.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	old := e.unsubscribe
	e.mu.Unlock()

	if old != nil {
		old()
	}

	unsub := e.monitor.Subscribe(func(online bool) {
		e.notify()
		if online {
			e.TriggerDrain()
		}
	})

	e.mu.Lock()
	e.unsubscribe = unsub
	e.mu.Unlock()

	e.refreshCounts()

	if e.monitor.IsOnline() {
		e.TriggerDrain()
	}

	logging.Info("sync engine started", nil)
}

// Stop detaches from the monitor and waits for an in-flight drain to
// finish. A drain pass always runs to completion once started.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	unsub := e.unsubscribe
	e.unsubscribe = nil
	cancel := e.cancel
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	e.wg.Wait()
	if cancel != nil {
		cancel()
	}

	logging.Info("sync engine stopped", nil)
}

// Enqueue queues a field action. The pending counter reflects the record
// before any network activity; if the device is online a drain is
// triggered immediately.
func (e *Engine) Enqueue(p syncq.Payload) (models.UUID, error) {
	id, err := e.queue.Enqueue(p)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.pendingCount++
	e.mu.Unlock()
	e.notify()

	if e.monitor.IsOnline() {
		e.TriggerDrain()
	}
	return id, nil
}

// TriggerDrain starts a background drain pass. Returns false when a drain
// is already in flight (the trigger is a no-op) or the engine is stopped.
func (e *Engine) TriggerDrain() bool {
	e.mu.Lock()
	if !e.isRunning || e.drainActive {
		e.mu.Unlock()
		return false
	}
	e.drainActive = true
	ctx := e.ctx
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.drain(ctx)
	}()
	return true
}

// SyncNow runs a drain pass and waits for it. A second caller while a pass
// is in flight gets ErrSyncInProgress and nothing else happens.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.monitor.IsOnline() {
		msg := "device is offline; sync will run when connected"
		e.mu.Lock()
		e.lastError = &msg
		e.mu.Unlock()
		e.notify()
		return errors.New(errors.ErrSyncOffline, msg)
	}

	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return errors.New(errors.ErrInternal, "sync engine is not running")
	}
	if e.drainActive {
		e.mu.Unlock()
		return errors.New(errors.ErrSyncInProgress, "a sync pass is already running")
	}
	e.drainActive = true
	e.mu.Unlock()

	e.wg.Add(1)
	defer e.wg.Done()
	e.drain(ctx)
	return nil
}

// RetryFailed returns all failed records to pending with their retry
// budget reset, then triggers a drain if the device is online. Returns how
// many records were reset.
func (e *Engine) RetryFailed() (int, error) {
	count, err := e.store.ResetFailedSyncRecords()
	if err != nil {
		return 0, err
	}

	e.refreshCounts()

	if count > 0 && e.monitor.IsOnline() {
		e.TriggerDrain()
	}
	return count, nil
}

// ClearError resets the aggregate error state and the latest error message.
func (e *Engine) ClearError() {
	e.mu.Lock()
	e.lastError = nil
	if e.state == StateError {
		e.state = StateIdle
	}
	e.mu.Unlock()
	e.notify()
}

// Status returns a snapshot for the UI.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:        e.state,
		Online:       e.monitor.IsOnline(),
		PendingCount: e.pendingCount,
		FailedCount:  e.failedCount,
		LastError:    e.lastError,
		LastSyncedAt: e.lastSyncedAt,
	}
}

// Subscribe registers a callback invoked on every status change and
// returns its unsubscribe handle.
func (e *Engine) Subscribe(fn func(Status)) func() {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

// drain processes all currently pending records oldest-first, sequentially.
// Sequential processing keeps server-side ordering meaningful: a stock-add
// must land before a later sale of the same serial.
func (e *Engine) drain(ctx context.Context) {
	e.setState(StateSyncing)

	defer func() {
		e.mu.Lock()
		e.drainActive = false
		e.mu.Unlock()
	}()

	records, err := e.store.PendingSyncRecords()
	if err != nil {
		msg := err.Error()
		e.mu.Lock()
		e.lastError = &msg
		e.state = StateError
		e.mu.Unlock()
		e.notify()
		logging.Error("failed to read pending records", err, nil)
		return
	}

	hadFailure := false
	for _, rec := range records {
		failed, err := e.processRecord(ctx, rec)
		if err != nil {
			// Storage failure mid-pass: abort, the next records would
			// hit the same store.
			msg := err.Error()
			e.mu.Lock()
			e.lastError = &msg
			e.mu.Unlock()
			hadFailure = true
			logging.Error("aborting sync pass on storage failure", err, map[string]interface{}{
				"record_id": rec.ID.String(),
			})
			break
		}
		if failed {
			hadFailure = true
		}
	}

	now := time.Now()
	e.mu.Lock()
	if hadFailure {
		e.state = StateError
	} else {
		e.state = StateIdle
	}
	e.lastSyncedAt = &now
	e.mu.Unlock()

	// Counters come from the store after a pass, never from in-memory
	// arithmetic, so crashes and partial updates cannot cause drift.
	e.refreshCounts()
}

// processRecord runs one record through its executor and applies the state
// transition. Returns whether the record ended failed; the error return is
// reserved for storage failures.
func (e *Engine) processRecord(ctx context.Context, rec *models.SyncRecord) (bool, error) {
	if err := e.store.UpdateSyncStatus(rec.ID, db.SyncUpdate{Status: models.SyncStatusSyncing}); err != nil {
		return false, err
	}

	result := e.execute(ctx, rec)

	switch result.Outcome {
	case executor.Success:
		upd := db.SyncUpdate{Status: models.SyncStatusSynced, ClearError: true}
		if result.RemoteID != "" {
			upd.ServerID = &result.RemoteID
		}
		if err := e.store.UpdateSyncStatus(rec.ID, upd); err != nil {
			return false, err
		}
		logging.Info("record synced", map[string]interface{}{
			"record_id":   rec.ID.String(),
			"action_type": rec.ActionType,
		})
		return false, nil

	case executor.Conflict:
		// Server wins: the intent is obsolete, recorded as synced with no
		// effect. The reason stays on the record for audit.
		reason := result.Reason
		if err := e.store.UpdateSyncStatus(rec.ID, db.SyncUpdate{
			Status:       models.SyncStatusSynced,
			ErrorMessage: &reason,
		}); err != nil {
			return false, err
		}
		logging.Warn("record dropped on authoritative conflict", map[string]interface{}{
			"record_id":   rec.ID.String(),
			"action_type": rec.ActionType,
			"reason":      result.Reason,
		})
		return false, nil

	default: // Retryable
		retries := rec.RetryCount + 1
		status := models.SyncStatusPending
		if retries >= MaxRetries {
			status = models.SyncStatusFailed
		}
		reason := result.Reason
		if err := e.store.UpdateSyncStatus(rec.ID, db.SyncUpdate{
			Status:       status,
			RetryCount:   &retries,
			ErrorMessage: &reason,
		}); err != nil {
			return false, err
		}

		e.mu.Lock()
		e.lastError = &reason
		e.mu.Unlock()

		if status == models.SyncStatusFailed {
			logging.Error("record failed after exhausting retries", nil, map[string]interface{}{
				"record_id":   rec.ID.String(),
				"action_type": rec.ActionType,
				"retry_count": retries,
				"reason":      result.Reason,
			})
			return true, nil
		}
		logging.Warn("record attempt failed, will retry", map[string]interface{}{
			"record_id":   rec.ID.String(),
			"action_type": rec.ActionType,
			"retry_count": retries,
			"reason":      result.Reason,
		})
		return false, nil
	}
}

// execute decodes the payload and invokes the executor. Every problem,
// including a panic inside an executor, is folded into a retryable result;
// nothing escapes past the orchestrator boundary.
func (e *Engine) execute(ctx context.Context, rec *models.SyncRecord) (result executor.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = executor.Result{
				Outcome: executor.Retryable,
				Reason:  fmt.Sprintf("executor panic: %v", r),
			}
		}
	}()

	payload, err := syncq.DecodePayload(syncq.ActionType(rec.ActionType), rec.Payload)
	if err != nil {
		return executor.Result{Outcome: executor.Retryable, Reason: err.Error()}
	}

	exec, ok := e.executors[payload.Kind()]
	if !ok {
		return executor.Result{
			Outcome: executor.Retryable,
			Reason:  fmt.Sprintf("no executor for action type %q", rec.ActionType),
		}
	}

	return exec.Execute(ctx, payload)
}

// refreshCounts reloads the pending and failed counters from the store and
// notifies subscribers.
func (e *Engine) refreshCounts() {
	pending, err := e.store.CountSyncRecords(models.SyncStatusPending)
	if err != nil {
		logging.Error("failed to count pending records", err, nil)
		return
	}
	failed, err := e.store.CountSyncRecords(models.SyncStatusFailed)
	if err != nil {
		logging.Error("failed to count failed records", err, nil)
		return
	}

	e.mu.Lock()
	e.pendingCount = pending
	e.failedCount = failed
	e.mu.Unlock()
	e.notify()
}

// setState sets the aggregate state and notifies subscribers.
func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.notify()
}

// notify fans the current status out to subscribers outside the lock.
func (e *Engine) notify() {
	status := e.Status()

	e.mu.Lock()
	var callbacks []func(Status)
	for _, fn := range e.subscribers {
		callbacks = append(callbacks, fn)
	}
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn(status)
	}
}
