package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/maradi/fieldsync/internal/errors"
	"github.com/maradi/fieldsync/internal/models"
	"github.com/maradi/fieldsync/internal/uuid"
)

// Store provides the durable-store operations for the sync queue and the
// item/serial cache tables.
//
// Every mutation of a sync record is one UPDATE statement, so partial
// status updates are atomic per record. Only the drain path updates
// status fields; enqueue only inserts.
type Store struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (s *Store) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate.
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Sync queue operations
// =====================================================

// InsertSyncRecord appends a new record to the sync queue. The record is
// created pending with zero retries; a storage error propagates to the
// caller, enqueue never silently drops data.
func (s *Store) InsertSyncRecord(rec *models.SyncRecord) error {
	now := time.Now().Unix()
	if rec.ID == "" {
		rec.ID = models.UUID(uuid.New())
	}
	rec.Status = models.SyncStatusPending
	rec.RetryCount = 0
	rec.ErrorMessage = nil
	rec.ServerID = nil
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
	INSERT INTO sync_queue (id, action_type, payload, status, retry_count, error_message, server_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to insert sync record", err)
	}
	if _, err := stmt.Exec(rec.ID, rec.ActionType, string(rec.Payload), rec.Status,
		rec.RetryCount, rec.ErrorMessage, rec.ServerID, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to insert sync record", err)
	}
	return nil
}

// SyncUpdate describes a partial update of a sync record's mutable fields.
// Nil pointer fields are left untouched; ClearError sets error_message to NULL.
type SyncUpdate struct {
	Status       string
	RetryCount   *int
	ErrorMessage *string
	ClearError   bool
	ServerID     *string
}

// UpdateSyncStatus partially updates the mutable fields of one record with a
// single UPDATE statement.
func (s *Store) UpdateSyncStatus(id models.UUID, upd SyncUpdate) error {
	set := "status = ?, updated_at = ?"
	args := []interface{}{upd.Status, time.Now().Unix()}

	if upd.RetryCount != nil {
		set += ", retry_count = ?"
		args = append(args, *upd.RetryCount)
	}
	if upd.ClearError {
		set += ", error_message = NULL"
	} else if upd.ErrorMessage != nil {
		set += ", error_message = ?"
		args = append(args, *upd.ErrorMessage)
	}
	if upd.ServerID != nil {
		set += ", server_id = ?"
		args = append(args, *upd.ServerID)
	}
	args = append(args, id)

	res, err := s.db.Exec("UPDATE sync_queue SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to update sync record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to update sync record", err)
	}
	if affected == 0 {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("sync record %s not found", id))
	}
	return nil
}

const syncRecordColumns = "id, action_type, payload, status, retry_count, error_message, server_id, created_at, updated_at"

// PendingSyncRecords returns all pending records oldest-first. The rowid
// tiebreak keeps insertion order for records created within the same second.
func (s *Store) PendingSyncRecords() ([]*models.SyncRecord, error) {
	query := "SELECT " + syncRecordColumns + " FROM sync_queue WHERE status = ? ORDER BY created_at ASC, rowid ASC"
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to query pending records", err)
	}
	rows, err := stmt.Query(models.SyncStatusPending)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to query pending records", err)
	}
	defer rows.Close()

	return scanSyncRecords(rows)
}

// GetSyncRecord returns a single record by id.
func (s *Store) GetSyncRecord(id models.UUID) (*models.SyncRecord, error) {
	query := "SELECT " + syncRecordColumns + " FROM sync_queue WHERE id = ?"
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to get sync record", err)
	}

	rec := &models.SyncRecord{}
	var payload string
	err = stmt.QueryRow(id).Scan(&rec.ID, &rec.ActionType, &payload, &rec.Status,
		&rec.RetryCount, &rec.ErrorMessage, &rec.ServerID, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("sync record %s not found", id))
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to get sync record", err)
	}
	rec.Payload = []byte(payload)
	return rec, nil
}

// ListSyncRecords returns the most recent records regardless of status,
// newest first. Used by the UI surface as the attempted-action audit trail.
func (s *Store) ListSyncRecords(limit int) ([]*models.SyncRecord, error) {
	query := "SELECT " + syncRecordColumns + " FROM sync_queue ORDER BY created_at DESC, rowid DESC LIMIT ?"
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to list sync records", err)
	}
	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to list sync records", err)
	}
	defer rows.Close()

	return scanSyncRecords(rows)
}

// CountSyncRecords returns the number of records with the given status
// without loading rows. Cheap enough for UI badges.
func (s *Store) CountSyncRecords(status string) (int, error) {
	stmt, err := s.PrepareStmt("SELECT COUNT(*) FROM sync_queue WHERE status = ?")
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to count sync records", err)
	}
	var count int
	if err := stmt.QueryRow(status).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to count sync records", err)
	}
	return count, nil
}

// ResetFailedSyncRecords returns all failed records to pending with retry
// count zero and the error cleared, making them eligible for the next drain.
func (s *Store) ResetFailedSyncRecords() (int, error) {
	res, err := s.db.Exec(
		"UPDATE sync_queue SET status = ?, retry_count = 0, error_message = NULL, updated_at = ? WHERE status = ?",
		models.SyncStatusPending, time.Now().Unix(), models.SyncStatusFailed)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to reset failed records", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to reset failed records", err)
	}
	return int(affected), nil
}

func scanSyncRecords(rows *sql.Rows) ([]*models.SyncRecord, error) {
	var records []*models.SyncRecord
	for rows.Next() {
		rec := &models.SyncRecord{}
		var payload string
		if err := rows.Scan(&rec.ID, &rec.ActionType, &payload, &rec.Status,
			&rec.RetryCount, &rec.ErrorMessage, &rec.ServerID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan sync record", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to scan sync records", err)
	}
	return records, nil
}

// =====================================================
// Catalog cache operations
// =====================================================

// UpsertItem inserts or refreshes a cached catalog item, keyed by server id.
func (s *Store) UpsertItem(item *models.Item) error {
	if item.ID == "" {
		item.ID = models.UUID(uuid.New())
	}
	item.SyncedAt = time.Now().Unix()

	query := `
	INSERT INTO items (id, server_id, item_code, item_name, category, master_price, inventory_type, uom, is_active, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(server_id) DO UPDATE SET
		item_code = excluded.item_code,
		item_name = excluded.item_name,
		category = excluded.category,
		master_price = excluded.master_price,
		inventory_type = excluded.inventory_type,
		uom = excluded.uom,
		is_active = excluded.is_active,
		synced_at = excluded.synced_at
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to upsert item", err)
	}
	if _, err := stmt.Exec(item.ID, item.ServerID, item.ItemCode, item.ItemName, item.Category,
		item.MasterPrice, item.InventoryType, item.UOM, item.IsActive, item.SyncedAt); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to upsert item", err)
	}
	return nil
}

// UpsertSerial inserts or refreshes a cached serial, keyed by server id.
func (s *Store) UpsertSerial(serial *models.Serial) error {
	if serial.ID == "" {
		serial.ID = models.UUID(uuid.New())
	}
	serial.SyncedAt = time.Now().Unix()

	query := `
	INSERT INTO serials (id, server_id, item_id, serial_number, batch_number, status, quantity, image_url, date_added, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(server_id) DO UPDATE SET
		item_id = excluded.item_id,
		serial_number = excluded.serial_number,
		batch_number = excluded.batch_number,
		status = excluded.status,
		quantity = excluded.quantity,
		image_url = excluded.image_url,
		date_added = excluded.date_added,
		synced_at = excluded.synced_at
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to upsert serial", err)
	}
	if _, err := stmt.Exec(serial.ID, serial.ServerID, serial.ItemID, serial.SerialNumber,
		serial.BatchNumber, serial.Status, serial.Quantity, serial.ImageURL,
		serial.DateAdded, serial.SyncedAt); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to upsert serial", err)
	}
	return nil
}

const itemColumns = "id, server_id, item_code, item_name, category, master_price, inventory_type, uom, is_active, synced_at"

// ItemByCode returns a cached item by its item code.
func (s *Store) ItemByCode(code string) (*models.Item, error) {
	stmt, err := s.PrepareStmt("SELECT " + itemColumns + " FROM items WHERE item_code = ?")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to get item", err)
	}
	item := &models.Item{}
	err = stmt.QueryRow(code).Scan(&item.ID, &item.ServerID, &item.ItemCode, &item.ItemName,
		&item.Category, &item.MasterPrice, &item.InventoryType, &item.UOM, &item.IsActive, &item.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("item %s not cached", code))
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to get item", err)
	}
	return item, nil
}

// ListItems returns all cached catalog items.
func (s *Store) ListItems() ([]*models.Item, error) {
	stmt, err := s.PrepareStmt("SELECT " + itemColumns + " FROM items ORDER BY item_code")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to list items", err)
	}
	rows, err := stmt.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to list items", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item := &models.Item{}
		if err := rows.Scan(&item.ID, &item.ServerID, &item.ItemCode, &item.ItemName,
			&item.Category, &item.MasterPrice, &item.InventoryType, &item.UOM, &item.IsActive, &item.SyncedAt); err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const serialColumns = "id, server_id, item_id, serial_number, batch_number, status, quantity, image_url, date_added, synced_at"

// SerialByNumber returns a cached serial by its serial number.
func (s *Store) SerialByNumber(serialNumber string) (*models.Serial, error) {
	stmt, err := s.PrepareStmt("SELECT " + serialColumns + " FROM serials WHERE serial_number = ?")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to get serial", err)
	}
	serial := &models.Serial{}
	err = stmt.QueryRow(serialNumber).Scan(&serial.ID, &serial.ServerID, &serial.ItemID,
		&serial.SerialNumber, &serial.BatchNumber, &serial.Status, &serial.Quantity,
		&serial.ImageURL, &serial.DateAdded, &serial.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("serial %s not cached", serialNumber))
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to get serial", err)
	}
	return serial, nil
}

// ListSerials returns cached serials, optionally filtered by status.
func (s *Store) ListSerials(status string) ([]*models.Serial, error) {
	query := "SELECT " + serialColumns + " FROM serials"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY serial_number"

	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to list serials", err)
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to list serials", err)
	}
	defer rows.Close()

	var serials []*models.Serial
	for rows.Next() {
		serial := &models.Serial{}
		if err := rows.Scan(&serial.ID, &serial.ServerID, &serial.ItemID,
			&serial.SerialNumber, &serial.BatchNumber, &serial.Status, &serial.Quantity,
			&serial.ImageURL, &serial.DateAdded, &serial.SyncedAt); err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan serial", err)
		}
		serials = append(serials, serial)
	}
	return serials, rows.Err()
}
