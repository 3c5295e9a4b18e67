package repository

import (
	"context"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByCedula(ctx context.Context, cedula string) (*model.User, error)
	FindByTemplateID(ctx context.Context, templateID int) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u *model.User) error
	// Upsert creates or updates by cedula; used by the sync engine when
	// pulling server-side user deltas.
	Upsert(ctx context.Context, u *model.User) error
	Deactivate(ctx context.Context, id uint) error
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) FindByCedula(ctx context.Context, cedula string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("cedula = ? AND is_active = ?", cedula, true).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) FindByTemplateID(ctx context.Context, templateID int) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("fingerprint_template_id = ? AND is_active = ?", templateID, true).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&users).Error
	return users, err
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	var existing model.User
	err := r.db.WithContext(ctx).Where("cedula = ?", u.Cedula).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(u).Error
	}
	if err != nil {
		return err
	}
	existing.Nombre = u.Nombre
	existing.Empresa = u.Empresa
	existing.IsActive = true
	existing.Synced = u.Synced
	if u.FingerprintTemplateID != nil {
		existing.FingerprintTemplateID = u.FingerprintTemplateID
	}
	if u.Slot != nil {
		existing.Slot = u.Slot
	}
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*u = existing
	return nil
}

func (r *userRepo) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
