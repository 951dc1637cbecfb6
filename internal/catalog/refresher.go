// Package catalog keeps the read-only item/serial caches warm so the UI
// can look up names and availability while offline.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/db"
	"github.com/maradi/fieldsync/internal/logging"
	"github.com/maradi/fieldsync/internal/models"
)

// Refresher opportunistically pulls catalog items and available serials
// into the cache tables. Caches are advisory: they are never the source of
// truth and are never written back to the server, so refresh failures are
// logged and otherwise ignored.
type Refresher struct {
	client   *api.Client
	store    *db.Store
	interval time.Duration

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewRefresher creates a Refresher. A zero interval disables the periodic
// loop; Refresh can still be called directly.
func NewRefresher(client *api.Client, store *db.Store, interval time.Duration) *Refresher {
	return &Refresher{
		client:   client,
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Refresh pulls the catalog and available serials once. Partial progress
// is kept: an error fetching serials does not roll back refreshed items.
func (r *Refresher) Refresh(ctx context.Context) error {
	items, err := r.client.ListItems(ctx)
	if err != nil {
		return err
	}
	for _, dto := range items {
		item := &models.Item{
			ServerID:      dto.ID,
			ItemCode:      dto.ItemCode,
			ItemName:      dto.ItemName,
			Category:      dto.Category,
			MasterPrice:   dto.MasterPrice,
			InventoryType: dto.InventoryType,
			UOM:           dto.UOM,
			IsActive:      dto.IsActive,
		}
		if err := r.store.UpsertItem(item); err != nil {
			return err
		}
	}

	serials, err := r.client.AvailableSerials(ctx, "")
	if err != nil {
		return err
	}
	for _, dto := range serials {
		serial := &models.Serial{
			ServerID:     dto.ID,
			ItemID:       dto.ItemID,
			SerialNumber: dto.SerialNumber,
			BatchNumber:  dto.BatchNumber,
			Status:       dto.Status,
			Quantity:     dto.Quantity,
			ImageURL:     dto.ImageURL,
			DateAdded:    dto.DateAdded,
		}
		if err := r.store.UpsertSerial(serial); err != nil {
			return err
		}
	}

	logging.Debug("catalog caches refreshed", map[string]interface{}{
		"items":   len(items),
		"serials": len(serials),
	})
	return nil
}

// Start refreshes once and then on the configured interval.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = true
	r.mu.Unlock()

	if err := r.Refresh(ctx); err != nil {
		logging.Warn("initial catalog refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if r.interval <= 0 {
		return
	}

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop stops the periodic refresh loop.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	started := r.interval > 0
	r.mu.Unlock()

	if started {
		close(r.stopCh)
		r.wg.Wait()
	}
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				logging.Warn("catalog refresh failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
