package dto

// EnrollRequest registers a user locally, optionally capturing a
// fingerprint into a sensor template slot. Requires the supervisor PIN.
type EnrollRequest struct {
	SupervisorPIN string `json:"supervisor_pin" binding:"required"`
	Cedula        string `json:"cedula" binding:"required,numeric,min=6,max=12"`
	Nombre        string `json:"nombre" binding:"required,min=2"`
	Empresa       string `json:"empresa"`
	// TemplateID is the sensor slot to enroll the fingerprint into (AS608: 1-162).
	TemplateID *int `json:"template_id" binding:"omitempty,min=1,max=162"`
}

// EnrollResponse returns the stored user.
type EnrollResponse struct {
	User VerifiedUser `json:"user"`
	// TemplateID echoes the enrolled slot when a fingerprint was captured.
	TemplateID *int `json:"template_id,omitempty"`
}
