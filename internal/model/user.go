package model

import "time"

// User stores a registered person synced from the server or enrolled locally.
// Cedula (document id) is the primary business identifier.
type User struct {
	ID      uint   `gorm:"primaryKey"`
	Cedula  string `gorm:"uniqueIndex;not null"`
	Nombre  string `gorm:"not null"`
	Empresa string `gorm:"not null;default:principal"`
	// FingerprintTemplateID is an opaque slot handle into the sensor's own
	// storage (AS608: 1-162). The template itself never leaves the sensor.
	// Unique across active users.
	FingerprintTemplateID *int `gorm:"index"`
	IsActive              bool `gorm:"not null;default:true"`
	// Slot is the server-side slot assignment from the user-database sync.
	Slot *int
	// Synced marks whether the server knows about this user. Locally
	// enrolled users start unsynced.
	Synced    bool `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
