package internal

import "net/http"

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeRepoError is returned when the request to a repo fails with an error - these are transient
	// infrastructure errors, read operations may be retried by the caller
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeValidation is returned when any field in the transferred data does not validate - it carries
	// the offending field in the error details
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeInvalidUint is returned when an ID is required inside a request, but is not provided or in a wrong format
	ErrCodeInvalidUint = "INVALID_UINT"
	// ErrCodeEventNotFound is returned when an operation works on an event that does not exist
	ErrCodeEventNotFound = "EVENT_NOT_FOUND"
	// ErrCodeSongNotFound is returned when a referenced catalog entry does not exist
	ErrCodeSongNotFound = "SONG_NOT_FOUND"
	// ErrCodeRequestNotFound is returned when an operation works on a song request that does not exist
	ErrCodeRequestNotFound = "REQUEST_NOT_FOUND"
	// ErrCodeCrateNotFound is returned when a referenced crate does not exist
	ErrCodeCrateNotFound = "CRATE_NOT_FOUND"
	// ErrCodeInvalidStateTransition is returned when a mutation is attempted on a request whose current
	// status does not allow it (approving a rejected request, performing a pending one...)
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	// ErrCodeConflict is returned when a write collides with an existing entity in a way the caller
	// has to resolve (a racing duplicate catalog insert, for example)
	ErrCodeConflict = "CONFLICT"
	// ErrCodeTooManyRequests is returned when a singer has reached the configured limit of open
	// requests for one event
	ErrCodeTooManyRequests = "TOO_MANY_OPEN_REQUESTS"
	// ErrCodeDuplicateRequestNotAllowed is returned when duplicate song requests are disabled for an
	// event and the desired song has already been requested
	ErrCodeDuplicateRequestNotAllowed = "NO_DUPLICATE_REQUESTS"
	// ErrCodeNoCurrentEvent is returned when something depending on a currently active event is requested, but no
	// event is currently active
	ErrCodeNoCurrentEvent = "NO_EVENT_SELECTED"
	// ErrCodeImportFailed is returned when a catalog import could not read its source
	ErrCodeImportFailed = "IMPORT_FAILED"
	// ErrCodeImportSourceUnavailable is returned when an importer is not configured (missing Spotify
	// credentials, for example)
	ErrCodeImportSourceUnavailable = "IMPORT_SOURCE_UNAVAILABLE"
	// ErrCodeLoginFailed is returned when the user fails to login for some reason
	ErrCodeLoginFailed = "LOGIN_FAILED"
	// ErrCodeNotLoggedIn is returned when the user tried to access an API that needs a logged-in user, but the user
	// has no authenticated session
	ErrCodeNotLoggedIn = "NOT_LOGGED_IN"
	// ErrCodeAdminOnly is returned when a non-admin user tries to access an admin-only operation
	ErrCodeAdminOnly = "ADMIN_ONLY"
)

var (
	// ErrNoCurrentEvent is the default error returned when something requests an operation that depends on an event
	// being selected as current event, while no event has been selected
	ErrNoCurrentEvent = MakeError(
		http.StatusExpectationFailed,
		ErrCodeNoCurrentEvent,
		"No active event selected",
	)
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// MakeValidationError creates a VALIDATION_ERROR carrying the offending field name in its details
func MakeValidationError(message string, field string) *HTTPError {
	return MakeErrorWithData(
		http.StatusBadRequest,
		ErrCodeValidation,
		message,
		map[string]string{
			"field": field,
		},
	)
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}
