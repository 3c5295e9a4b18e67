package repository

import (
	"context"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"

	"gorm.io/gorm"
)

type SyncQueueRepository interface {
	Create(ctx context.Context, item *model.SyncQueueItem) error
	// ListPending returns pending items with attempts below their ceiling,
	// oldest-created-first, bounded by limit.
	ListPending(ctx context.Context, limit int) ([]model.SyncQueueItem, error)
	Update(ctx context.Context, item *model.SyncQueueItem) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
	// ExistsForRecord reports whether any queue item (in any status)
	// references the given access record.
	ExistsForRecord(ctx context.Context, recordID uint) (bool, error)
}

type syncQueueRepo struct{ db *gorm.DB }

func NewSyncQueueRepository(db *gorm.DB) SyncQueueRepository {
	return &syncQueueRepo{db: db}
}

func (r *syncQueueRepo) Create(ctx context.Context, item *model.SyncQueueItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *syncQueueRepo) ListPending(ctx context.Context, limit int) ([]model.SyncQueueItem, error) {
	var items []model.SyncQueueItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempts < max_attempts", model.SyncStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *syncQueueRepo) Update(ctx context.Context, item *model.SyncQueueItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *syncQueueRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.SyncQueueItem{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.N
	}
	return counts, nil
}

func (r *syncQueueRepo) ExistsForRecord(ctx context.Context, recordID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SyncQueueItem{}).
		Where("record_id = ?", recordID).
		Count(&count).Error
	return count > 0, err
}
