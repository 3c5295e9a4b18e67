package repository

import (
	"context"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"

	"gorm.io/gorm"
)

type AccessRecordRepository interface {
	// Create inserts the record; tx may be nil (unit test mode) or an open
	// transaction from DB().Transaction.
	Create(ctx context.Context, tx *gorm.DB, rec *model.AccessRecord) error
	FindByID(ctx context.Context, id uint) (*model.AccessRecord, error)
	// LastByCedula returns the most recent record for a cedula, used for
	// the entry/exit toggle. gorm.ErrRecordNotFound when none exists.
	LastByCedula(ctx context.Context, cedula string) (*model.AccessRecord, error)
	ListUnsynced(ctx context.Context, limit int) ([]model.AccessRecord, error)
	MarkSynced(ctx context.Context, id uint, serverID *string) error
	IncrementSyncAttempts(ctx context.Context, id uint, errMsg string) error
	DB() *gorm.DB
}

type accessRecordRepo struct{ db *gorm.DB }

func NewAccessRecordRepository(db *gorm.DB) AccessRecordRepository {
	return &accessRecordRepo{db: db}
}

func (r *accessRecordRepo) Create(ctx context.Context, tx *gorm.DB, rec *model.AccessRecord) error {
	db := tx
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(rec).Error
}

func (r *accessRecordRepo) FindByID(ctx context.Context, id uint) (*model.AccessRecord, error) {
	var rec model.AccessRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *accessRecordRepo) LastByCedula(ctx context.Context, cedula string) (*model.AccessRecord, error) {
	var rec model.AccessRecord
	err := r.db.WithContext(ctx).
		Where("cedula = ?", cedula).
		Order("access_timestamp DESC, id DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *accessRecordRepo) ListUnsynced(ctx context.Context, limit int) ([]model.AccessRecord, error) {
	var recs []model.AccessRecord
	err := r.db.WithContext(ctx).
		Where("is_synced = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *accessRecordRepo) MarkSynced(ctx context.Context, id uint, serverID *string) error {
	updates := map[string]interface{}{
		"is_synced":  true,
		"sync_error": nil,
	}
	if serverID != nil {
		updates["server_id"] = *serverID
	}
	return r.db.WithContext(ctx).
		Model(&model.AccessRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *accessRecordRepo) IncrementSyncAttempts(ctx context.Context, id uint, errMsg string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&model.AccessRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_attempts":     gorm.Expr("sync_attempts + 1"),
			"last_sync_attempt": now,
			"sync_error":        errMsg,
		}).Error
}

func (r *accessRecordRepo) DB() *gorm.DB { return r.db }
