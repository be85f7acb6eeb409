// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gastos/internal/auth"
	"gastos/internal/core"
	"gastos/internal/draft"
	"gastos/internal/members"
	"gastos/internal/services"
	"gastos/internal/store"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// APIError is the body of every error response.
type APIError struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"sugerencia,omitempty"`
	Written    *int   `json:"guardados,omitempty"`
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"error interno","code":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(APIError{Error: message, Code: code})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, "validation", message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", message)
}

func ForbiddenError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusForbidden, "forbidden", message)
}

func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, "conflict", message)
}

// InternalServerError hides the cause; callers log it.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", "Error interno. Inténtalo de nuevo.")
}

// validationErrors are reported as 422 with their own message.
var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrInvalidViewMode,
	core.ErrNoMembers,
	draft.ErrMissingField,
	members.ErrBlankName,
	members.ErrDuplicate,
	members.ErrUnchanged,
	members.ErrUnknownMember,
	auth.ErrWeakPassword,
	auth.ErrInvalidEmail,
}

// FromError maps a domain error onto a response. Unknown errors become a
// generic 500 and are logged by the caller.
func FromError(err error) *JSONResponseBuilder {
	var split *services.SplitError
	switch {
	case errors.As(err, &split):
		written := split.Written
		return NewJSONResponse().
			Status(http.StatusInternalServerError).
			Body(APIError{Error: "No se pudieron guardar todos los gastos.", Code: "partial_write", Written: &written})
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError("No encontrado.")
	case errors.Is(err, auth.ErrNotAuthorized):
		return ForbiddenError(auth.ErrNotAuthorized.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return UnauthorizedError(err.Error())
	case errors.Is(err, members.ErrNotConfirmed):
		return ConflictError(err.Error())
	case errors.Is(err, auth.ErrEmailExists):
		return ConflictError(err.Error())
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return UnprocessableEntityError(err.Error())
		}
	}
	return InternalServerError()
}

// IsServerError reports whether FromError would answer 5xx.
func IsServerError(err error) bool {
	return FromError(err).statusCode >= 500
}
