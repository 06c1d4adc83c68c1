package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Entitlement errors
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeTokenExpired = "token_expired"

	// Generation errors
	ErrCodeGenerationCanceled = "generation_canceled"
	ErrCodeQuotaExceeded      = "quota_exceeded"
	ErrCodeEmptyQuiz          = "empty_quiz"
	ErrCodeExtractionFailed   = "extraction_failed"
	ErrCodeNoText             = "no_text"
	ErrCodeGenerationBusy     = "generation_in_progress"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
