package models

// Serial is a read-only local mirror of a serial-numbered unit, used for
// offline mark-sale and audit lookups.
type Serial struct {
	ID           UUID    `db:"id" json:"id"`
	ServerID     string  `db:"server_id" json:"server_id"`
	ItemID       string  `db:"item_id" json:"item_id"`
	SerialNumber string  `db:"serial_number" json:"serial_number"`
	BatchNumber  *string `db:"batch_number" json:"batch_number,omitempty"`
	Status       string  `db:"status" json:"status"`
	Quantity     int     `db:"quantity" json:"quantity"`
	ImageURL     *string `db:"image_url" json:"image_url,omitempty"`
	DateAdded    int64   `db:"date_added" json:"date_added"`
	SyncedAt     int64   `db:"synced_at" json:"synced_at"`
}

// TableName returns the table name for Serial.
func (Serial) TableName() string {
	return "serials"
}
