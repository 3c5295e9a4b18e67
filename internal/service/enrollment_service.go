package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/hardware"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Enrollment validation errors, surfaced to the UI as 400s.
var (
	ErrInvalidCedula     = errors.New("cedula must be 6-12 digits")
	ErrInvalidNombre     = errors.New("nombre must be at least 2 characters")
	ErrTemplateRange     = errors.New("fingerprint template slot must be between 1 and 162")
	ErrTemplateInUse     = errors.New("fingerprint template slot already assigned to an active user")
	ErrSensorUnavailable = errors.New("fingerprint sensor not available")
)

// EnrollInput registers or updates a user on this terminal.
type EnrollInput struct {
	Cedula     string
	Nombre     string
	Empresa    string
	TemplateID *int // sensor slot to capture a fingerprint into
}

// EnrollmentService creates local users, optionally capturing a
// fingerprint into a sensor template slot. Locally enrolled users are
// flagged unsynced until the next user-database pull confirms them.
type EnrollmentService interface {
	Enroll(ctx context.Context, in EnrollInput) (*model.User, error)
}

type enrollmentService struct {
	users  repository.UserRepository
	sensor hardware.FingerprintSensor // nil when disabled
}

func NewEnrollmentService(users repository.UserRepository, sensor hardware.FingerprintSensor) EnrollmentService {
	return &enrollmentService{users: users, sensor: sensor}
}

func (s *enrollmentService) Enroll(ctx context.Context, in EnrollInput) (*model.User, error) {
	cedula := strings.ReplaceAll(strings.TrimSpace(in.Cedula), " ", "")
	if !ValidCedula(cedula) || len(cedula) > 12 {
		return nil, ErrInvalidCedula
	}
	nombre := strings.TrimSpace(in.Nombre)
	if len(nombre) < 2 {
		return nil, ErrInvalidNombre
	}
	empresa := strings.ToLower(strings.TrimSpace(in.Empresa))
	if empresa == "" {
		empresa = "principal"
	}

	if in.TemplateID != nil {
		if *in.TemplateID < 1 || *in.TemplateID > 162 {
			return nil, ErrTemplateRange
		}
		// Template handles must be unique across active users
		owner, err := s.users.FindByTemplateID(ctx, *in.TemplateID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template ownership check: %w", err)
		}
		if owner != nil && owner.Cedula != cedula {
			return nil, ErrTemplateInUse
		}

		if s.sensor == nil || !s.sensor.Available() {
			return nil, ErrSensorUnavailable
		}
		if err := s.sensor.Enroll(ctx, *in.TemplateID); err != nil {
			return nil, fmt.Errorf("fingerprint capture: %w", err)
		}
	}

	user := &model.User{
		Cedula:                cedula,
		Nombre:                nombre,
		Empresa:               empresa,
		FingerprintTemplateID: in.TemplateID,
		IsActive:              true,
		Synced:                false,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	log.Info().Str("cedula", cedula).Bool("fingerprint", in.TemplateID != nil).
		Msg("user enrolled")
	return user, nil
}
