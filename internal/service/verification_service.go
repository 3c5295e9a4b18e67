package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/config"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/hardware"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// VerificationRequest is the unified input for all verification methods.
type VerificationRequest struct {
	Method string // facial | fingerprint | manual
	Image  []byte // JPEG bytes, facial only
	Cedula string // manual (and kept across fallbacks once known)
	Lat    *float64
	Lng    *float64
	// ForcedType overrides the entry/exit auto-detection.
	ForcedType string
}

// VerificationOutcome is the normalized result of a verification attempt.
// Verify never panics or returns an error across this boundary: every
// internal failure becomes an outcome with Success=false.
type VerificationOutcome struct {
	Success           bool
	Verified          bool
	User              *model.User
	Confidence        float64
	MethodUsed        string
	VerificationType  string // entrada | salida
	RecordID          *uint
	ErrorMessage      string
	FallbackAvailable bool
	Timestamp         time.Time
}

// VerificationService orchestrates facial, fingerprint and manual
// verification, applies the fallback policy, and persists confirmed
// accesses locally before anything touches the network.
type VerificationService interface {
	Verify(ctx context.Context, req VerificationRequest) *VerificationOutcome
	VerifyWithFallback(ctx context.Context, req VerificationRequest) *VerificationOutcome
}

type verificationService struct {
	cfg      *config.Config
	users    repository.UserRepository
	records  repository.AccessRecordRepository
	enqueuer Enqueuer
	api      remote.Client
	sensor   hardware.FingerprintSensor // nil when disabled

	// writeMu serializes AccessRecord creation so concurrent triggers
	// cannot interleave partial writes with a sync read.
	writeMu sync.Mutex
}

// Enqueuer is the slice of the sync engine the orchestrator needs.
type Enqueuer interface {
	EnqueueRecord(ctx context.Context, rec *model.AccessRecord) error
}

func NewVerificationService(
	cfg *config.Config,
	users repository.UserRepository,
	records repository.AccessRecordRepository,
	enqueuer Enqueuer,
	api remote.Client,
	sensor hardware.FingerprintSensor,
) VerificationService {
	return &verificationService{
		cfg:      cfg,
		users:    users,
		records:  records,
		enqueuer: enqueuer,
		api:      api,
		sensor:   sensor,
	}
}

// errDuplicateTap marks a successful match inside the debounce window.
var errDuplicateTap = errors.New("duplicate verification within debounce window")

func (s *verificationService) Verify(ctx context.Context, req VerificationRequest) *VerificationOutcome {
	log.Info().Str("method", req.Method).Msg("verification started")

	switch req.Method {
	case model.VerificationFacial:
		return s.verifyFacial(ctx, req)
	case model.VerificationFingerprint:
		return s.verifyFingerprint(ctx, req)
	case model.VerificationManual:
		return s.verifyManual(ctx, req)
	default:
		return failureOutcome(req.Method, fmt.Sprintf("unsupported verification method: %s", req.Method), false)
	}
}

func (s *verificationService) VerifyWithFallback(ctx context.Context, req VerificationRequest) *VerificationOutcome {
	primary := s.Verify(ctx, req)
	if primary.Success && primary.Verified {
		return primary
	}

	fallbacks := s.fallbackMethods(ctx, req.Method)

	for _, method := range fallbacks {
		log.Info().Str("primary", req.Method).Str("fallback", method).
			Msg("attempting fallback verification")

		fbReq := VerificationRequest{
			Method:     method,
			Cedula:     req.Cedula,
			Lat:        req.Lat,
			Lng:        req.Lng,
			ForcedType: req.ForcedType,
		}
		if method != model.VerificationManual {
			fbReq.Image = req.Image
		}

		outcome := s.Verify(ctx, fbReq)
		if outcome.Success && outcome.Verified {
			if method != req.Method {
				outcome.MethodUsed = req.Method + "_to_" + method
			}
			return outcome
		}
	}

	out := failureOutcome(req.Method, "all verification methods failed", len(fallbacks) > 0)
	return out
}

// fallbackMethods computes the ordered fallback list for a failed primary.
// Manual entry is the terminal fallback for the biometric methods, but can
// itself fall forward to biometrics if conditions allow.
func (s *verificationService) fallbackMethods(ctx context.Context, primary string) []string {
	var methods []string

	switch primary {
	case model.VerificationFacial:
		if s.fingerprintUsable() {
			methods = append(methods, model.VerificationFingerprint)
		}
		methods = append(methods, model.VerificationManual)

	case model.VerificationFingerprint:
		if s.api.CheckConnectivity(ctx) {
			methods = append(methods, model.VerificationFacial)
		}
		methods = append(methods, model.VerificationManual)

	case model.VerificationManual:
		if s.fingerprintUsable() {
			methods = append(methods, model.VerificationFingerprint)
		}
		if s.cfg.CameraEnabled && s.api.CheckConnectivity(ctx) {
			methods = append(methods, model.VerificationFacial)
		}
	}

	return methods
}

func (s *verificationService) fingerprintUsable() bool {
	return s.cfg.FingerprintEnabled && s.sensor != nil
}

// ── Facial (online) ──────────────────────────────────────────────────────────

func (s *verificationService) verifyFacial(ctx context.Context, req VerificationRequest) *VerificationOutcome {
	if len(req.Image) == 0 {
		return failureOutcome(model.VerificationFacial, "no image data provided for facial verification", false)
	}

	// Connectivity gate first: fail fast so fallback can kick in without
	// waiting for the full API timeout.
	if !s.api.CheckConnectivity(ctx) {
		return failureOutcome(model.VerificationFacial, "cannot perform facial verification: terminal is offline", true)
	}

	// The request's GPS fix wins; otherwise fall back to the terminal's
	// fixed installation coordinates.
	lat, lng := req.Lat, req.Lng
	if (lat == nil || lng == nil) && (s.cfg.LocationLat != 0 || s.cfg.LocationLng != 0) {
		lat, lng = &s.cfg.LocationLat, &s.cfg.LocationLng
	}

	result, err := s.api.VerifyFaceAutomatic(ctx, req.Image, lat, lng)
	if err != nil {
		return failureOutcome(model.VerificationFacial, fmt.Sprintf("facial verification failed: %v", err), true)
	}

	if !result.Verified {
		msg := result.Mensaje
		if msg == "" {
			msg = "face not recognized"
		}
		out := failureOutcome(model.VerificationFacial, msg, true)
		out.Success = true // the attempt itself completed
		return out
	}

	accessType := result.TipoRegistro
	if req.ForcedType != "" {
		accessType = req.ForcedType
	}
	if accessType == "" {
		accessType = model.AccessEntrada
	}

	// Confidence is the inverse of the embedding distance.
	confidence := 1.0 - result.Distance

	// Link to a local user row when one exists; facial works even for
	// users the terminal has never synced.
	user, err := s.users.FindByCedula(ctx, result.Cedula)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Err(err).Str("cedula", result.Cedula).Msg("local user lookup failed")
		user = nil
	}

	name := result.Nombre
	if user != nil {
		name = user.Nombre
	}

	outcome := &VerificationOutcome{
		Success:          true,
		Verified:         true,
		User:             user,
		Confidence:       confidence,
		MethodUsed:       model.VerificationFacial,
		VerificationType: accessType,
		Timestamp:        time.Now().UTC(),
	}

	// Facial verifications are already recorded server-side by the API
	// call itself: the local row is created pre-synced and never enqueued.
	s.persistRecord(ctx, outcome, persistParams{
		cedula:        result.Cedula,
		name:          name,
		method:        model.MethodOnline,
		serverID:      result.RecordID,
		alreadySynced: true,
	})

	return outcome
}

// ── Fingerprint (offline) ────────────────────────────────────────────────────

func (s *verificationService) verifyFingerprint(ctx context.Context, req VerificationRequest) *VerificationOutcome {
	if !s.fingerprintUsable() || !s.sensor.Available() {
		return failureOutcome(model.VerificationFingerprint, "fingerprint sensor not available", true)
	}

	match, err := s.sensor.Verify(ctx)
	if err != nil {
		if errors.Is(err, hardware.ErrNoMatch) {
			return failureOutcome(model.VerificationFingerprint, "fingerprint not recognized", true)
		}
		return failureOutcome(model.VerificationFingerprint, fmt.Sprintf("fingerprint verification failed: %v", err), true)
	}

	user, err := s.users.FindByTemplateID(ctx, match.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A match with no owning active user is a data problem, not a
			// sensor miss.
			return failureOutcome(model.VerificationFingerprint, "user not found for fingerprint template", false)
		}
		return failureOutcome(model.VerificationFingerprint, fmt.Sprintf("user lookup failed: %v", err), false)
	}

	accessType, err := s.resolveAccessType(ctx, user.Cedula, req.ForcedType)
	if err != nil {
		return failureOutcome(model.VerificationFingerprint, err.Error(), false)
	}

	outcome := &VerificationOutcome{
		Success:          true,
		Verified:         true,
		User:             user,
		Confidence:       match.Confidence,
		MethodUsed:       model.VerificationFingerprint,
		VerificationType: accessType,
		Timestamp:        time.Now().UTC(),
	}

	s.persistRecord(ctx, outcome, persistParams{
		cedula: user.Cedula,
		name:   user.Nombre,
		method: model.MethodOffline,
	})

	return outcome
}

// ── Manual (fallback) ────────────────────────────────────────────────────────

func (s *verificationService) verifyManual(ctx context.Context, req VerificationRequest) *VerificationOutcome {
	// Format check happens before any store lookup.
	if !ValidCedula(req.Cedula) {
		return failureOutcome(model.VerificationManual, "invalid document ID format", false)
	}

	user, err := s.users.FindByCedula(ctx, req.Cedula)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failureOutcome(model.VerificationManual, "user not found in local database", false)
		}
		return failureOutcome(model.VerificationManual, fmt.Sprintf("user lookup failed: %v", err), false)
	}

	accessType, err := s.resolveAccessType(ctx, user.Cedula, req.ForcedType)
	if err != nil {
		return failureOutcome(model.VerificationManual, err.Error(), false)
	}

	outcome := &VerificationOutcome{
		Success:          true,
		Verified:         true,
		User:             user,
		Confidence:       1.0, // operator-confirmed identity
		MethodUsed:       model.VerificationManual,
		VerificationType: accessType,
		Timestamp:        time.Now().UTC(),
	}

	s.persistRecord(ctx, outcome, persistParams{
		cedula: user.Cedula,
		name:   user.Nombre,
		method: model.MethodOffline,
	})

	return outcome
}

// ── Shared pieces ────────────────────────────────────────────────────────────

// ValidCedula reports whether a document id passes the format check:
// non-empty, digits only, at least 6 characters.
func ValidCedula(cedula string) bool {
	if len(cedula) < 6 {
		return false
	}
	for _, r := range cedula {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// resolveAccessType toggles entry/exit from the user's most recent record:
// last entrada → salida, otherwise entrada. forced overrides the toggle.
func (s *verificationService) resolveAccessType(ctx context.Context, cedula, forced string) (string, error) {
	last, err := s.records.LastByCedula(ctx, cedula)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if forced != "" {
				return forced, nil
			}
			return model.AccessEntrada, nil
		}
		// Storage faults default to entrada rather than blocking access.
		log.Warn().Err(err).Str("cedula", cedula).Msg("entry/exit lookup failed, defaulting to entrada")
		if forced != "" {
			return forced, nil
		}
		return model.AccessEntrada, nil
	}

	if window := s.cfg.EntryDebounce(); window > 0 {
		if time.Since(last.AccessTimestamp) < window {
			return "", errDuplicateTap
		}
	}

	if forced != "" {
		return forced, nil
	}
	if last.AccessType == model.AccessEntrada {
		return model.AccessSalida, nil
	}
	return model.AccessEntrada, nil
}

type persistParams struct {
	cedula        string
	name          string
	method        string // online | offline
	serverID      string // set for facial, assigned during the API call
	alreadySynced bool
}

// persistRecord writes the AccessRecord for a verified outcome. Exactly one
// record per verified outcome; unverified attempts are never persisted. A
// storage fault is logged but does not overturn the completed verification,
// so the outcome is returned to the caller either way (without RecordID).
func (s *verificationService) persistRecord(ctx context.Context, outcome *VerificationOutcome, p persistParams) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec := &model.AccessRecord{
		TerminalRecordID: uuid.NewString(),
		Cedula:           p.cedula,
		EmployeeName:     strings.TrimSpace(p.name),
		AccessTimestamp:  outcome.Timestamp,
		AccessType:       outcome.VerificationType,
		Method:           p.method,
		VerificationType: outcome.MethodUsed,
		ConfidenceScore:  &outcome.Confidence,
		DeviceID:         s.cfg.TerminalID,
		LocationName:     s.cfg.LocationName,
		IsSynced:         p.alreadySynced,
	}
	if outcome.User != nil {
		id := outcome.User.ID
		rec.UserID = &id
	}
	if p.serverID != "" {
		sid := p.serverID
		rec.ServerID = &sid
	}

	err := runTx(ctx, s.records.DB(), func(tx *gorm.DB) error {
		return s.records.Create(ctx, tx, rec)
	})
	if err != nil {
		log.Error().Err(err).Str("cedula", p.cedula).Msg("failed to persist access record")
		return
	}

	outcome.RecordID = &rec.ID

	if !p.alreadySynced {
		if err := s.enqueuer.EnqueueRecord(ctx, rec); err != nil {
			// The record row stays unsynced; the next full sync sweep will
			// still find it via the is_synced index.
			log.Error().Err(err).Uint("record_id", rec.ID).Msg("failed to enqueue record for sync")
		}
	}

	log.Info().
		Uint("record_id", rec.ID).
		Str("cedula", p.cedula).
		Str("type", rec.AccessType).
		Str("verification", rec.VerificationType).
		Msg("access record persisted")
}

// runTx executes fn inside a GORM transaction when db is available, or
// calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func failureOutcome(method, msg string, fallback bool) *VerificationOutcome {
	return &VerificationOutcome{
		Success:           false,
		Verified:          false,
		MethodUsed:        method,
		VerificationType:  model.AccessEntrada,
		ErrorMessage:      msg,
		FallbackAvailable: fallback,
		Timestamp:         time.Now().UTC(),
	}
}
