package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/config"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/infra"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// Full sync statuses.
const (
	SyncResultSuccess           = "success"
	SyncResultPartial           = "partial_success"
	SyncResultSkippedOffline    = "skipped_offline"
	SyncResultAlreadyInProgress = "already_in_progress"
)

// QueuePassResult summarizes one bounded pass over pending queue items.
type QueuePassResult struct {
	Uploaded    int
	Failed      int
	Abandoned   int
	NotReady    int // backoff delay not yet elapsed
	BreakerOpen bool
}

// FullSyncResult reports a complete bidirectional synchronization.
type FullSyncResult struct {
	Status          string
	UsersProcessed  int
	RecordsUploaded int
	RecordsFailed   int
	Errors          []string
	Duration        time.Duration
}

// SyncStatus is a point-in-time snapshot for the status endpoint.
type SyncStatus struct {
	Online       bool
	BreakerState string
	InProgress   bool
	QueueCounts  map[string]int64
	LastFullSync *time.Time
}

// SyncService reconciles the local store with the server without ever
// blocking the verification path. Sync errors are isolated per item and
// bounded by each item's max-attempts ceiling.
type SyncService interface {
	Enqueuer
	ProcessQueue(ctx context.Context) (*QueuePassResult, error)
	PerformFullSync(ctx context.Context) *FullSyncResult
	Status(ctx context.Context) (*SyncStatus, error)
}

type syncService struct {
	cfg     *config.Config
	queue   repository.SyncQueueRepository
	records repository.AccessRecordRepository
	users   repository.UserRepository
	api     remote.Client
	cb      *infra.CircuitBreaker

	inProgress atomic.Bool

	mu           sync.Mutex
	lastUserSync *time.Time
	lastFullSync *time.Time
}

func NewSyncService(
	cfg *config.Config,
	queue repository.SyncQueueRepository,
	records repository.AccessRecordRepository,
	users repository.UserRepository,
	api remote.Client,
	cb *infra.CircuitBreaker,
) SyncService {
	return &syncService{
		cfg:     cfg,
		queue:   queue,
		records: records,
		users:   users,
		api:     api,
		cb:      cb,
	}
}

// EnqueueRecord appends a pending upload operation for a freshly created
// access record. The payload is serialized now so the item stays
// self-contained.
func (s *syncService) EnqueueRecord(ctx context.Context, rec *model.AccessRecord) error {
	payload, err := json.Marshal(bulkRecordFrom(rec))
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	id := rec.ID
	item := &model.SyncQueueItem{
		RecordID:    &id,
		RecordType:  "access_record",
		Action:      model.SyncActionCreateRecord,
		Payload:     string(payload),
		MaxAttempts: s.cfg.SyncMaxAttempts,
		Status:      model.SyncStatusPending,
	}
	return s.queue.Create(ctx, item)
}

// ProcessQueue runs at most one pass over pending items: oldest first,
// bounded by the configured batch size, each item attempted at most once
// regardless of its computed backoff. An open circuit breaker skips the
// pass entirely without consuming attempts.
func (s *syncService) ProcessQueue(ctx context.Context) (*QueuePassResult, error) {
	result := &QueuePassResult{}

	if s.cb.State() == infra.CBOpen {
		log.Debug().Msg("sync: circuit breaker open, skipping queue pass")
		result.BreakerOpen = true
		return result, nil
	}

	items, err := s.queue.ListPending(ctx, s.cfg.SyncBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending sync items: %w", err)
	}

	for i := range items {
		item := &items[i]

		// Breaker may have tripped mid-pass
		if s.cb.State() == infra.CBOpen {
			log.Debug().Msg("sync: circuit breaker opened mid-pass, stopping")
			result.BreakerOpen = true
			break
		}

		if !s.readyForAttempt(item) {
			result.NotReady++
			continue
		}

		s.attemptItem(ctx, item, result)
	}

	return result, nil
}

// readyForAttempt checks the exponential backoff window:
// delay = min(2^attempts, cap) seconds since the last attempt.
func (s *syncService) readyForAttempt(item *model.SyncQueueItem) bool {
	if item.LastAttempt == nil {
		return true
	}
	return time.Since(*item.LastAttempt) >= s.backoffDelay(item.Attempts)
}

func (s *syncService) backoffDelay(attempts int) time.Duration {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Duration(s.cfg.SyncBackoffCapSec) * time.Second,
		Factor: 2,
	}
	return b.ForAttempt(float64(attempts))
}

func (s *syncService) attemptItem(ctx context.Context, item *model.SyncQueueItem, result *QueuePassResult) {
	var attemptErr error
	var permanent bool

	switch item.Action {
	case model.SyncActionCreateRecord:
		attemptErr, permanent = s.uploadRecordItem(ctx, item)
	default:
		attemptErr = fmt.Errorf("unsupported sync action: %s", item.Action)
		permanent = true
	}

	now := time.Now().UTC()
	item.LastAttempt = &now

	if attemptErr == nil {
		item.Status = model.SyncStatusSuccess
		item.ErrorMsg = nil
		if err := s.queue.Update(ctx, item); err != nil {
			log.Error().Err(err).Uint("item_id", item.ID).Msg("sync: failed to mark item success")
		}
		result.Uploaded++
		return
	}

	item.Attempts++
	msg := attemptErr.Error()
	item.ErrorMsg = &msg

	switch {
	case permanent:
		item.Status = model.SyncStatusFailed
		result.Failed++
		log.Warn().Uint("item_id", item.ID).Str("error", msg).
			Msg("sync: permanent failure, item marked failed")
	case item.Attempts >= item.MaxAttempts:
		item.Status = model.SyncStatusAbandoned
		result.Abandoned++
		log.Error().Uint("item_id", item.ID).Int("attempts", item.Attempts).
			Msg("sync: max attempts reached, item abandoned")
	default:
		result.Failed++
		log.Warn().Uint("item_id", item.ID).Int("attempts", item.Attempts).
			Dur("next_delay", s.backoffDelay(item.Attempts)).
			Str("error", msg).
			Msg("sync: upload failed, will retry")
	}

	if item.RecordID != nil {
		if err := s.records.IncrementSyncAttempts(ctx, *item.RecordID, msg); err != nil {
			log.Error().Err(err).Uint("record_id", *item.RecordID).
				Msg("sync: failed to bump record sync attempts")
		}
	}
	if err := s.queue.Update(ctx, item); err != nil {
		log.Error().Err(err).Uint("item_id", item.ID).Msg("sync: failed to update item")
	}
}

// uploadRecordItem pushes one record through the breaker. The bool return
// marks permanent failures (server rejected the payload) that must not be
// retried.
func (s *syncService) uploadRecordItem(ctx context.Context, item *model.SyncQueueItem) (err error, permanent bool) {
	var rec remote.BulkRecord
	if jsonErr := json.Unmarshal([]byte(item.Payload), &rec); jsonErr != nil {
		return fmt.Errorf("corrupt payload: %w", jsonErr), true
	}

	var resp *remote.BulkUploadResponse
	cbErr := s.cb.Execute(func() error {
		r, callErr := s.api.UploadBulkRecords(ctx, []remote.BulkRecord{rec})
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	})
	if cbErr != nil {
		var apiErr *remote.APIError
		if errors.As(cbErr, &apiErr) {
			return cbErr, true
		}
		return cbErr, false
	}

	for _, failed := range resp.FailedRecords {
		if failed.TerminalRecordID == rec.TerminalRecordID {
			return fmt.Errorf("server rejected record: %s", failed.Error), true
		}
	}

	var serverID *string
	for _, processed := range resp.ProcessedRecords {
		if processed.TerminalRecordID == rec.TerminalRecordID {
			sid := processed.ServerID
			serverID = &sid
			break
		}
	}

	if item.RecordID != nil {
		if markErr := s.records.MarkSynced(ctx, *item.RecordID, serverID); markErr != nil {
			// The upload went through; failing to flip the flag would
			// re-upload next pass, so surface it as a retryable error.
			return fmt.Errorf("mark record synced: %w", markErr), false
		}
	}
	return nil, false
}

// PerformFullSync runs the user-database pull and one queue pass.
// Non-reentrant: a second call while one is running reports
// already_in_progress and does nothing.
func (s *syncService) PerformFullSync(ctx context.Context) *FullSyncResult {
	if !s.inProgress.CompareAndSwap(false, true) {
		return &FullSyncResult{Status: SyncResultAlreadyInProgress}
	}
	defer s.inProgress.Store(false)

	start := time.Now()
	result := &FullSyncResult{Status: SyncResultSuccess}

	if !s.api.CheckConnectivity(ctx) {
		result.Status = SyncResultSkippedOffline
		result.Duration = time.Since(start)
		return result
	}

	log.Info().Msg("sync: starting full synchronization")

	if n, err := s.pullUsers(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("user sync failed: %v", err))
	} else {
		result.UsersProcessed = n
	}

	if err := s.requeueOrphans(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("orphan sweep failed: %v", err))
	}

	if pass, err := s.ProcessQueue(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("queue pass failed: %v", err))
	} else {
		result.RecordsUploaded = pass.Uploaded
		result.RecordsFailed = pass.Failed + pass.Abandoned
	}

	if len(result.Errors) > 0 {
		result.Status = SyncResultPartial
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastFullSync = &now
	s.mu.Unlock()

	result.Duration = time.Since(start)
	log.Info().
		Str("status", result.Status).
		Int("users", result.UsersProcessed).
		Int("uploaded", result.RecordsUploaded).
		Dur("duration", result.Duration).
		Msg("sync: full synchronization finished")
	return result
}

// requeueOrphans re-enqueues unsynced records that have no queue item at
// all, which happens when the enqueue right after record creation failed.
func (s *syncService) requeueOrphans(ctx context.Context) error {
	recs, err := s.records.ListUnsynced(ctx, s.cfg.SyncBatchSize)
	if err != nil {
		return err
	}

	for i := range recs {
		rec := &recs[i]
		exists, err := s.queue.ExistsForRecord(ctx, rec.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.EnqueueRecord(ctx, rec); err != nil {
			log.Error().Err(err).Uint("record_id", rec.ID).Msg("sync: orphan requeue failed")
			continue
		}
		log.Info().Uint("record_id", rec.ID).Msg("sync: orphan record requeued")
	}
	return nil
}

// pullUsers downloads the user-database delta and upserts it locally.
func (s *syncService) pullUsers(ctx context.Context) (int, error) {
	s.mu.Lock()
	since := s.lastUserSync
	s.mu.Unlock()

	resp, err := s.api.SyncUserDatabase(ctx, since)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, r := range resp.Records {
		if r.Cedula == "" {
			continue
		}
		empresa := r.Empresa
		if empresa == "" {
			empresa = "principal"
		}
		u := &model.User{
			Cedula:   r.Cedula,
			Nombre:   r.Nombre,
			Empresa:  empresa,
			Slot:     r.Slot,
			IsActive: true,
			Synced:   true,
		}
		if err := s.users.Upsert(ctx, u); err != nil {
			log.Error().Err(err).Str("cedula", r.Cedula).Msg("sync: user upsert failed")
			continue
		}
		processed++
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastUserSync = &now
	s.mu.Unlock()

	log.Info().Int("processed", processed).Int("total", resp.TotalRecords).
		Msg("sync: user database updated")
	return processed, nil
}

func (s *syncService) Status(ctx context.Context) (*SyncStatus, error) {
	counts, err := s.queue.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	last := s.lastFullSync
	s.mu.Unlock()

	return &SyncStatus{
		Online:       s.api.CheckConnectivity(ctx),
		BreakerState: s.cb.State().String(),
		InProgress:   s.inProgress.Load(),
		QueueCounts:  counts,
		LastFullSync: last,
	}, nil
}

func bulkRecordFrom(rec *model.AccessRecord) remote.BulkRecord {
	return remote.BulkRecord{
		UserID:           rec.UserID,
		Cedula:           rec.Cedula,
		EmployeeName:     rec.EmployeeName,
		AccessTimestamp:  rec.AccessTimestamp.UTC().Format(time.RFC3339),
		Method:           rec.Method,
		VerificationType: rec.VerificationType,
		ConfidenceScore:  rec.ConfidenceScore,
		DeviceID:         rec.DeviceID,
		LocationName:     rec.LocationName,
		TerminalRecordID: rec.TerminalRecordID,
		CreatedAt:        rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
