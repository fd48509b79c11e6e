// Package httputil writes the JSON envelope shared by every endpoint:
// {"data": ...} on success and {"error": {...}} on failure.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
	"github.com/stonenotes/stonenotes/pkg/logger"
	"github.com/stonenotes/stonenotes/pkg/validator"
)

// Response is the envelope of single-resource responses.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the body of the "error" member.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON sends v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorCode sends an error envelope with an explicit code.
func WriteErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, Response{Error: &ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

// WriteError renders err through apperrors.Classify. Server side failures
// are logged with the cause; clients only see the generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, l *slog.Logger) {
	appErr := apperrors.Classify(err)
	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	WriteErrorCode(w, r, appErr.Status, appErr.Code, appErr.Message)
}

// WriteBadRequest reports a body that could not be decoded or failed
// validation. Field errors are listed under "fields".
func WriteBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	var fields validator.FieldErrors
	if !errors.As(err, &fields) {
		WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
		Code:      "VALIDATION_ERROR",
		Message:   "request validation failed",
		Fields:    fields,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

// Page is the envelope of list responses.
type Page[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPage wraps one page of items. A nil slice is sent as [].
func NewPage[T any](items []T, total, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Page[T]{
		Data:       items,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// PathID returns the canonical form of a UUID path parameter. On a malformed
// value it writes a 400 and reports false.
func PathID(w http.ResponseWriter, r *http.Request, raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "invalid id: "+raw)
		return "", false
	}
	return id.String(), true
}
