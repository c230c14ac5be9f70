package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeMissingField   = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Session errors
	ErrCodeSessionActive        = "session_active"
	ErrCodeProblemUsed          = "problem_used"
	ErrCodeInvalidPhase         = "invalid_phase"
	ErrCodeNoAudio              = "no_audio"
	ErrCodeNotIntroProblem      = "not_intro_problem"
	ErrCodeNoTeamSelected       = "no_team_selected"
	ErrCodeConfirmationRequired = "confirmation_required"

	// Upload errors
	ErrCodeUnsupportedMediaType = "unsupported_media_type"
	ErrCodeUploadFailed         = "upload_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
