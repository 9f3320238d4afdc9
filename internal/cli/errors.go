package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by agents.
const (
	ErrConfigInvalid = "CONFIG_INVALID"

	// Input errors
	ErrSourceInvalid   = "SOURCE_INVALID"
	ErrTemplateInvalid = "TEMPLATE_INVALID"
	ErrFixtureInvalid  = "FIXTURE_INVALID"
	ErrEntityUnknown   = "ENTITY_UNKNOWN"
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// Database errors
	ErrDatabaseError    = "DATABASE_ERROR"
	ErrDatabaseNotFound = "DATABASE_NOT_FOUND"

	// Resolution errors
	ErrAuthMissing = "AUTH_MISSING"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnUnknownPlaceholder = "UNKNOWN_PLACEHOLDER"
	WarnUnusedVariable     = "UNUSED_VARIABLE"
	WarnNoValue            = "NO_VALUE"
)
