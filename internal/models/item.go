package models

import "time"

// Item is a read-only local mirror of a catalog item, used for offline
// lookup while adding stock. Never written back to the server.
type Item struct {
	ID            UUID    `db:"id" json:"id"`
	ServerID      string  `db:"server_id" json:"server_id"`
	ItemCode      string  `db:"item_code" json:"item_code"`
	ItemName      string  `db:"item_name" json:"item_name"`
	Category      string  `db:"category" json:"category"`
	MasterPrice   float64 `db:"master_price" json:"master_price"`
	InventoryType string  `db:"inventory_type" json:"inventory_type"`
	UOM           string  `db:"uom" json:"uom"`
	IsActive      bool    `db:"is_active" json:"is_active"`
	SyncedAt      int64   `db:"synced_at" json:"synced_at"`
}

// TableName returns the table name for Item.
func (Item) TableName() string {
	return "items"
}

// SyncedAtTime returns the SyncedAt as time.Time.
func (i *Item) SyncedAtTime() time.Time {
	return time.Unix(i.SyncedAt, 0)
}
