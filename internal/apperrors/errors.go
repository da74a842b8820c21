package apperrors

import (
	"net/http"

	"github.com/pkg/errors"
)

// Error codes returned in the "code" field of error bodies
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeAlreadyFavorited = "ALREADY_FAVORITED"
	CodeUpstream         = "UPSTREAM_SERVICE_ERROR"
	CodeInfrastructure   = "INFRASTRUCTURE_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
)

// AppError is an error with a stable client-facing message, a business code and an HTTP status
type AppError struct {
	httpCode  int
	errorCode string
	message   string
	cause     error
}

// New creates an AppError
func New(httpCode int, errorCode, message string) *AppError {
	return &AppError{httpCode: httpCode, errorCode: errorCode, message: message}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap exposes the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches AppErrors by code so that sentinels survive WithMessage/WithCause copies
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.errorCode == t.errorCode && e.httpCode == t.httpCode
}

// HTTPCode returns the HTTP status code
func (e *AppError) HTTPCode() int { return e.httpCode }

// ErrorCode returns the business error code
func (e *AppError) ErrorCode() string { return e.errorCode }

// Message returns the client-facing message
func (e *AppError) Message() string { return e.message }

// WithMessage returns a copy carrying a different client-facing message
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{httpCode: e.httpCode, errorCode: e.errorCode, message: message, cause: e.cause}
}

// WithCause returns a copy wrapping an underlying error. The cause is logged, never sent to clients.
func (e *AppError) WithCause(err error) *AppError {
	return &AppError{httpCode: e.httpCode, errorCode: e.errorCode, message: e.message, cause: err}
}

var (
	ErrValidation     = New(http.StatusBadRequest, CodeValidation, "Validation failed")
	ErrUnauthorized   = New(http.StatusUnauthorized, CodeUnauthorized, "Not authenticated")
	ErrForbidden      = New(http.StatusForbidden, CodeForbidden, "Not allowed to modify this resource")
	ErrNotFound       = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrAlreadyExists  = New(http.StatusConflict, CodeAlreadyExists, "Resource already exists")
	ErrUpstream       = New(http.StatusBadGateway, CodeUpstream, "AI service unavailable")
	ErrInfrastructure = New(http.StatusInternalServerError, CodeInfrastructure, "Internal server error")
	ErrRateLimited    = New(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")

	ErrRecipeNotFound    = ErrNotFound.WithMessage("Recipe not found")
	ErrFavoriteNotFound  = ErrNotFound.WithMessage("Favorite not found")
	ErrUserNotFound      = ErrNotFound.WithMessage("User not found")
	ErrDraftNotFound     = ErrNotFound.WithMessage("Draft not found or expired")
	ErrAlreadyFavorited  = New(http.StatusConflict, CodeAlreadyFavorited, "Recipe already in favorites")
	ErrEmailTaken        = ErrAlreadyExists.WithMessage("Email already registered")
	ErrUsernameTaken     = ErrAlreadyExists.WithMessage("Username already taken")
	ErrInvalidCredential = ErrUnauthorized.WithMessage("Invalid email or password")
)

// Validation builds a 400 error with the given message
func Validation(message string) *AppError {
	return ErrValidation.WithMessage(message)
}

// Upstream wraps an AI provider failure
func Upstream(err error) *AppError {
	return ErrUpstream.WithCause(err)
}

// Infrastructure wraps a database or shell failure with context
func Infrastructure(err error, context string) *AppError {
	return ErrInfrastructure.WithCause(errors.Wrap(err, context))
}

// As extracts an *AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
