package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Generation ────────────────────────────────────────────────────
	ErrInvalidRange    ErrCode = "INVALID_RANGE"
	ErrInvalidTimezone ErrCode = "INVALID_TIMEZONE"
	ErrNoAvailability  ErrCode = "NO_AVAILABILITY"
	ErrNoTopics        ErrCode = "NO_TOPICS"
	ErrAIUnavailable   ErrCode = "AI_UNAVAILABLE"
	ErrAIOutputInvalid ErrCode = "AI_OUTPUT_INVALID"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."

	case ErrInvalidRange:
		return "The date range is invalid or too long."
	case ErrInvalidTimezone:
		return "The timezone is not a valid IANA zone."
	case ErrNoAvailability:
		return "There is no free study time in the requested range."
	case ErrNoTopics:
		return "No topics belong to the selected subjects."
	case ErrAIUnavailable:
		return "The AI planner is unavailable. Please try again later."
	case ErrAIOutputInvalid:
		return "The AI planner returned an unusable timetable."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
