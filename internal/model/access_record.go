package model

import "time"

// Access record enums. Stored as plain strings to keep the SQLite schema
// readable from sqlite3 on the device.
const (
	AccessEntrada = "entrada"
	AccessSalida  = "salida"

	MethodOnline  = "online"
	MethodOffline = "offline"

	VerificationFacial      = "facial"
	VerificationFingerprint = "fingerprint"
	VerificationManual      = "manual"
)

// AccessRecord is one confirmed verification outcome. Created exactly once
// per verified access; after creation only the Sync Engine mutates it
// (is_synced flip, attempt counters).
type AccessRecord struct {
	ID uint `gorm:"primaryKey"`
	// TerminalRecordID is the terminal-local UUID sent to the server;
	// ServerID is assigned by the server once the record is uploaded.
	TerminalRecordID string  `gorm:"uniqueIndex;not null"`
	ServerID         *string `gorm:"index"`

	UserID *uint `gorm:"index"`
	User   *User `gorm:"foreignKey:UserID"`
	// Cedula is always populated, even when no user row matched.
	Cedula       string `gorm:"index;not null"`
	EmployeeName string `gorm:"not null"`

	AccessTimestamp time.Time `gorm:"index;not null"`
	AccessType      string    `gorm:"type:varchar(10);not null"` // entrada | salida
	Method          string    `gorm:"type:varchar(10);not null"` // online | offline
	// VerificationType: facial | fingerprint | manual
	VerificationType string   `gorm:"type:varchar(15);not null"`
	ConfidenceScore  *float64 // meaningful for facial/fingerprint only

	DeviceID     string `gorm:"not null"`
	LocationName string

	// Sync state — owned by the Sync Engine
	IsSynced        bool `gorm:"index;not null;default:false"`
	SyncAttempts    int  `gorm:"not null;default:0"`
	LastSyncAttempt *time.Time
	SyncError       *string

	CreatedAt time.Time
}
