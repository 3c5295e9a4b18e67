package service

// In-memory stubs shared by the service tests. Repositories hold plain
// slices; the remote client is fully scriptable per call.

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/config"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"

	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		TerminalID:         "TERM001",
		LocationName:       "Planta Norte",
		CameraEnabled:      true,
		FingerprintEnabled: true,
		SyncBatchSize:      50,
		SyncMaxAttempts:    5,
		SyncBackoffCapSec:  3600,
	}
}

// ── UserRepository stub ──────────────────────────────────────────────────────

type stubUserRepo struct {
	users  []*model.User
	nextID uint
}

func newStubUserRepo(users ...*model.User) *stubUserRepo {
	r := &stubUserRepo{}
	for _, u := range users {
		_ = r.Create(context.Background(), u)
	}
	return r
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	r.nextID++
	u.ID = r.nextID
	cloned := *u
	r.users = append(r.users, &cloned)
	return nil
}

func (r *stubUserRepo) FindByCedula(_ context.Context, cedula string) (*model.User, error) {
	for _, u := range r.users {
		if u.Cedula == cedula && u.IsActive {
			cloned := *u
			return &cloned, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByTemplateID(_ context.Context, templateID int) (*model.User, error) {
	for _, u := range r.users {
		if u.FingerprintTemplateID != nil && *u.FingerprintTemplateID == templateID && u.IsActive {
			cloned := *u
			return &cloned, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, u *model.User) error {
	for i, existing := range r.users {
		if existing.ID == u.ID {
			cloned := *u
			r.users[i] = &cloned
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubUserRepo) Upsert(_ context.Context, u *model.User) error {
	for i, existing := range r.users {
		if existing.Cedula == u.Cedula {
			u.ID = existing.ID
			cloned := *u
			cloned.IsActive = true
			r.users[i] = &cloned
			*u = cloned
			return nil
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.IsActive = true
	cloned := *u
	r.users = append(r.users, &cloned)
	return nil
}

func (r *stubUserRepo) Deactivate(_ context.Context, id uint) error {
	for _, u := range r.users {
		if u.ID == id {
			u.IsActive = false
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── AccessRecordRepository stub ──────────────────────────────────────────────

type stubRecordRepo struct {
	records []*model.AccessRecord
	nextID  uint

	createErr error
}

func newStubRecordRepo() *stubRecordRepo { return &stubRecordRepo{} }

func (r *stubRecordRepo) Create(_ context.Context, _ *gorm.DB, rec *model.AccessRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now()
	cloned := *rec
	r.records = append(r.records, &cloned)
	return nil
}

func (r *stubRecordRepo) FindByID(_ context.Context, id uint) (*model.AccessRecord, error) {
	for _, rec := range r.records {
		if rec.ID == id {
			cloned := *rec
			return &cloned, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRecordRepo) LastByCedula(_ context.Context, cedula string) (*model.AccessRecord, error) {
	var last *model.AccessRecord
	for _, rec := range r.records {
		if rec.Cedula != cedula {
			continue
		}
		if last == nil || rec.AccessTimestamp.After(last.AccessTimestamp) ||
			(rec.AccessTimestamp.Equal(last.AccessTimestamp) && rec.ID > last.ID) {
			last = rec
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *last
	return &cloned, nil
}

func (r *stubRecordRepo) ListUnsynced(_ context.Context, limit int) ([]model.AccessRecord, error) {
	var out []model.AccessRecord
	for _, rec := range r.records {
		if !rec.IsSynced {
			out = append(out, *rec)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *stubRecordRepo) MarkSynced(_ context.Context, id uint, serverID *string) error {
	for _, rec := range r.records {
		if rec.ID == id {
			rec.IsSynced = true
			rec.SyncError = nil
			if serverID != nil {
				rec.ServerID = serverID
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubRecordRepo) IncrementSyncAttempts(_ context.Context, id uint, errMsg string) error {
	for _, rec := range r.records {
		if rec.ID == id {
			rec.SyncAttempts++
			now := time.Now()
			rec.LastSyncAttempt = &now
			rec.SyncError = &errMsg
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubRecordRepo) DB() *gorm.DB { return nil }

// ── SyncQueueRepository stub ─────────────────────────────────────────────────

type stubQueueRepo struct {
	items  []*model.SyncQueueItem
	nextID uint
}

func newStubQueueRepo() *stubQueueRepo { return &stubQueueRepo{} }

func (r *stubQueueRepo) Create(_ context.Context, item *model.SyncQueueItem) error {
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	cloned := *item
	r.items = append(r.items, &cloned)
	return nil
}

func (r *stubQueueRepo) ListPending(_ context.Context, limit int) ([]model.SyncQueueItem, error) {
	var out []model.SyncQueueItem
	for _, item := range r.items {
		if item.Status == model.SyncStatusPending && item.Attempts < item.MaxAttempts {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubQueueRepo) Update(_ context.Context, item *model.SyncQueueItem) error {
	for i, existing := range r.items {
		if existing.ID == item.ID {
			cloned := *item
			r.items[i] = &cloned
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubQueueRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, item := range r.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (r *stubQueueRepo) ExistsForRecord(_ context.Context, recordID uint) (bool, error) {
	for _, item := range r.items {
		if item.RecordID != nil && *item.RecordID == recordID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubQueueRepo) byID(id uint) *model.SyncQueueItem {
	for _, item := range r.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// ── remote.Client stub ───────────────────────────────────────────────────────

type stubAPI struct {
	online bool

	autoResult *remote.VerificationResult
	autoErr    error
	autoCalls  int

	manualResult *remote.VerificationResult
	manualErr    error

	syncResp *remote.UserSyncResponse
	syncErr  error

	uploadResp    *remote.BulkUploadResponse
	uploadErr     error
	uploadCalls   int
	uploadedBatch []remote.BulkRecord
}

func (a *stubAPI) CheckConnectivity(_ context.Context) bool { return a.online }

func (a *stubAPI) VerifyFaceAutomatic(_ context.Context, _ []byte, _, _ *float64) (*remote.VerificationResult, error) {
	a.autoCalls++
	if a.autoErr != nil {
		return nil, a.autoErr
	}
	if a.autoResult == nil {
		return nil, errors.New("no scripted result")
	}
	return a.autoResult, nil
}

func (a *stubAPI) VerifyFaceManual(_ context.Context, _ string, _ []byte, _ string, _, _ *float64) (*remote.VerificationResult, error) {
	if a.manualErr != nil {
		return nil, a.manualErr
	}
	if a.manualResult == nil {
		return nil, errors.New("no scripted result")
	}
	return a.manualResult, nil
}

func (a *stubAPI) SyncUserDatabase(_ context.Context, _ *time.Time) (*remote.UserSyncResponse, error) {
	if a.syncErr != nil {
		return nil, a.syncErr
	}
	if a.syncResp == nil {
		return &remote.UserSyncResponse{}, nil
	}
	return a.syncResp, nil
}

func (a *stubAPI) UploadBulkRecords(_ context.Context, records []remote.BulkRecord) (*remote.BulkUploadResponse, error) {
	a.uploadCalls++
	a.uploadedBatch = append(a.uploadedBatch, records...)
	if a.uploadErr != nil {
		return nil, a.uploadErr
	}
	if a.uploadResp != nil {
		return a.uploadResp, nil
	}
	// Default: accept everything
	resp := &remote.BulkUploadResponse{}
	for _, rec := range records {
		resp.ProcessedRecords = append(resp.ProcessedRecords, remote.ProcessedRecord{
			TerminalRecordID: rec.TerminalRecordID,
			ServerID:         "srv-" + rec.TerminalRecordID,
		})
	}
	resp.Summary.ProcessedSuccessfully = len(records)
	return resp, nil
}

var _ remote.Client = (*stubAPI)(nil)
