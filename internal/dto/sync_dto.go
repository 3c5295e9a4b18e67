package dto

import "time"

// SyncStatusResponse reports queue and connectivity state for the UI's
// status bar.
type SyncStatusResponse struct {
	Online         bool             `json:"online"`
	BreakerState   string           `json:"breaker_state"`
	SyncInProgress bool             `json:"sync_in_progress"`
	QueueCounts    map[string]int64 `json:"queue_counts"`
	LastFullSync   *time.Time       `json:"last_full_sync,omitempty"`
}

// FullSyncResponse reports the outcome of a manually triggered full sync.
type FullSyncResponse struct {
	Status          string   `json:"status"` // success | partial_success | skipped_offline | already_in_progress
	UsersProcessed  int      `json:"users_processed"`
	RecordsUploaded int      `json:"records_uploaded"`
	RecordsFailed   int      `json:"records_failed"`
	Errors          []string `json:"errors,omitempty"`
	DurationMs      int64    `json:"duration_ms"`
}
