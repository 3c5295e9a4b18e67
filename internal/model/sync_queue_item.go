package model

import "time"

// Sync queue actions and statuses.
const (
	SyncActionCreateRecord = "create_record"
	SyncActionSyncUser     = "sync_user"

	SyncStatusPending   = "pending"
	SyncStatusSuccess   = "success"
	SyncStatusFailed    = "failed"
	SyncStatusAbandoned = "abandoned"
)

// SyncQueueItem is one pending outbound operation against the server.
// Items are created whenever a record cannot be synced immediately and are
// consumed by the Sync Engine oldest-first. Once attempts reach MaxAttempts
// the item transitions to the terminal "abandoned" status: it is excluded
// from automatic retries but remains queryable for inspection.
type SyncQueueItem struct {
	ID uint `gorm:"primaryKey"`

	RecordID   *uint         `gorm:"index"`
	Record     *AccessRecord `gorm:"foreignKey:RecordID"`
	RecordType string        `gorm:"type:varchar(20);not null"` // access_record | user
	Action     string        `gorm:"type:varchar(20);not null"`
	// Payload is the serialized operation data, kept so the item stays
	// self-contained even if the source row changes.
	Payload string `gorm:"not null"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:5"`
	LastAttempt *time.Time
	Status      string `gorm:"index;type:varchar(10);not null;default:pending"`
	ErrorMsg    *string

	CreatedAt time.Time
}
