package hardware

import (
	"context"
	"errors"
)

// ErrNoMatch is returned when the sensor scanned a finger but found no
// matching template. Distinct from sensor faults.
var ErrNoMatch = errors.New("no matching fingerprint template")

// MatchResult is a successful template match from the sensor.
type MatchResult struct {
	// TemplateID is the sensor-side slot of the matched template. The
	// template itself never leaves the sensor.
	TemplateID int
	Confidence float64 // normalized to [0,1]
}

// FingerprintSensor is the capability interface over the AS608 (or mock).
// The real implementation talks UART to the sensor; selection happens at
// startup via configuration, never by runtime type inspection.
type FingerprintSensor interface {
	Available() bool
	// Verify waits for a finger and matches it against stored templates.
	// Returns ErrNoMatch when no template matches.
	Verify(ctx context.Context) (*MatchResult, error)
	// Enroll captures a new fingerprint into the given template slot.
	Enroll(ctx context.Context, templateID int) error
	// DeleteTemplate frees a template slot.
	DeleteTemplate(ctx context.Context, templateID int) error
}
