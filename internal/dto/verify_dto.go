package dto

import "time"

// RawFrame is an uncompressed camera frame (row-major, 3 bytes per pixel,
// BGR) for callers that cannot encode JPEG themselves.
type RawFrame struct {
	Width  int    `json:"width" binding:"required,gt=0"`
	Height int    `json:"height" binding:"required,gt=0"`
	Pixels []byte `json:"pixels" binding:"required"`
}

// VerifyRequest triggers one verification attempt from the UI process.
// Image is base64-encoded JPEG bytes; Frame is the raw-buffer alternative.
type VerifyRequest struct {
	Method     string    `json:"method" binding:"required,oneof=facial fingerprint manual"`
	Cedula     string    `json:"cedula"`
	Image      []byte    `json:"image"`
	Frame      *RawFrame `json:"frame"`
	Lat        *float64  `json:"lat"`
	Lng        *float64  `json:"lng"`
	ForcedType string    `json:"forced_type" binding:"omitempty,oneof=entrada salida"`
}

// VerifiedUser is the subset of user data the UI shows on the result screen.
type VerifiedUser struct {
	ID      uint   `json:"id"`
	Cedula  string `json:"cedula"`
	Nombre  string `json:"nombre"`
	Empresa string `json:"empresa"`
}

// VerifyResponse is the normalized outcome for the UI.
type VerifyResponse struct {
	Success           bool          `json:"success"`
	Verified          bool          `json:"verified"`
	User              *VerifiedUser `json:"user,omitempty"`
	Confidence        float64       `json:"confidence"`
	MethodUsed        string        `json:"method_used"`
	VerificationType  string        `json:"verification_type"`
	RecordID          *uint         `json:"record_id,omitempty"`
	ErrorMessage      string        `json:"error_message,omitempty"`
	FallbackAvailable bool          `json:"fallback_available"`
	Timestamp         time.Time     `json:"timestamp"`
}
