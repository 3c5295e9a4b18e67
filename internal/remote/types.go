package remote

// VerificationResult is the facial verification response from the server.
// Field names follow the BioEntry API contract.
type VerificationResult struct {
	Verified           bool    `json:"verified"`
	Distance           float64 `json:"distance"`
	Cedula             string  `json:"cedula"`
	Nombre             string  `json:"nombre"`
	TipoRegistro       string  `json:"tipo_registro"` // entrada | salida
	RecordID           string  `json:"record_id"`
	Timestamp          string  `json:"timestamp"`
	Ubicacion          string  `json:"ubicacion"`
	Mensaje            string  `json:"mensaje"`
	FueraDeUbicacion   bool    `json:"fuera_de_ubicacion"`
	DistanciaUbicacion int     `json:"distancia_ubicacion"`
}

// UserSyncRecord is one user in the compressed delta the server returns
// from the terminal-sync endpoint.
type UserSyncRecord struct {
	Cedula  string `json:"c"`
	Nombre  string `json:"n"`
	Empresa string `json:"e"`
	Slot    *int   `json:"s"`
}

// UserSyncResponse is the terminal-sync pull response.
type UserSyncResponse struct {
	Records       []UserSyncRecord `json:"records"`
	SyncTimestamp string           `json:"sync_timestamp"`
	TotalRecords  int              `json:"total_records"`
}

// BulkRecord is one access record in the bulk upload payload.
type BulkRecord struct {
	UserID           *uint    `json:"user_id"`
	Cedula           string   `json:"cedula"`
	EmployeeName     string   `json:"employee_name"`
	AccessTimestamp  string   `json:"access_timestamp"`
	Method           string   `json:"method"`
	VerificationType string   `json:"verification_type"`
	ConfidenceScore  *float64 `json:"confidence_score"`
	DeviceID         string   `json:"device_id"`
	LocationName     string   `json:"location_name"`
	TerminalRecordID string   `json:"terminal_record_id"`
	CreatedAt        string   `json:"created_at"`
}

// ProcessedRecord reports a successfully stored record with its
// server-assigned id.
type ProcessedRecord struct {
	TerminalRecordID string `json:"terminal_record_id"`
	ServerID         string `json:"server_id"`
}

// FailedRecord reports a record the server rejected.
type FailedRecord struct {
	TerminalRecordID string `json:"terminal_record_id"`
	Error            string `json:"error"`
}

// BulkUploadResponse is the per-record outcome of a bulk upload.
type BulkUploadResponse struct {
	Summary struct {
		ProcessedSuccessfully int `json:"processed_successfully"`
		Failed                int `json:"failed"`
	} `json:"summary"`
	ProcessedRecords []ProcessedRecord `json:"processed_records"`
	FailedRecords    []FailedRecord    `json:"failed_records"`
}
