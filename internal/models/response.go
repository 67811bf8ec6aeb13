package models

// Machine-readable error kinds returned alongside every failure.
// The set mirrors the operation contracts: every typed failure a caller can
// branch on is one of these strings.
const (
	ErrCodeInvalidArgument    = "invalid-argument"
	ErrCodeUnauthenticated    = "unauthenticated"
	ErrCodePermissionDenied   = "permission-denied"
	ErrCodeNotFound           = "not-found"
	ErrCodeFailedPrecondition = "failed-precondition"
	ErrCodeResourceExhausted  = "resource-exhausted"
	ErrCodeAborted            = "aborted"
	ErrCodeInternal           = "internal"
)

// ErrorResponse - стандартная структура для ответа об ошибке в формате JSON.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
