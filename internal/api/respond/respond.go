// Package respond writes the JSON envelopes used by every API handler:
// {"data": ...} on success and {"error": {"code", "message", "fields"}} on
// failure.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
)

// Error codes.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeConflict         = "CONFLICT"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Error is an API error.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard errors.
var (
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "invalid credentials", Status: http.StatusUnauthorized}
	ErrInvalidToken = &Error{Code: CodeUnauthorized, Message: "invalid or expired token", Status: http.StatusUnauthorized}
	ErrForbidden    = &Error{Code: CodeForbidden, Message: "access denied", Status: http.StatusForbidden}
	ErrInternal     = &Error{Code: CodeInternalError, Message: "internal server error", Status: http.StatusInternalServerError}
	ErrRateLimited  = &Error{Code: CodeRateLimited, Message: "too many requests", Status: http.StatusTooManyRequests}
	ErrLocked       = &Error{Code: CodeAccountLocked, Message: "account temporarily locked due to too many failed attempts", Status: http.StatusTooManyRequests}
	ErrInvalidBody  = &Error{Code: CodeBadRequest, Message: "invalid request body", Status: http.StatusBadRequest}
)

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

// Validation creates a 400 validation error with optional per-field messages.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidationFailed, Message: message, Fields: fields, Status: http.StatusBadRequest}
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

// Forbidden creates a 403 error with a custom message.
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message, Status: http.StatusForbidden}
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// JSON writes data in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Data: data})
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Fail writes err in the error envelope.
func Fail(w http.ResponseWriter, err *Error) {
	write(w, err.Status, envelope{Error: err})
}

// Internal logs err under op and writes a generic 500.
func Internal(w http.ResponseWriter, op string, err error) {
	log.Printf("%s error: %v", op, err)
	Fail(w, ErrInternal)
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Decode reads a JSON body into v. Unknown fields are ignored.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return err
	}
	return nil
}

// Page is a paginated list.
type Page struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// Pagination limits.
const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// ParsePage reads page and per_page from the query string with defaults.
func ParsePage(r *http.Request) (page, perPage int) {
	page, perPage = 1, DefaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = min(v, MaxPerPage)
	}
	return page, perPage
}

// NewPage builds a Page for items out of total.
func NewPage(items any, total int64, page, perPage int) Page {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Page{Items: items, Total: total, Page: page, PerPage: perPage, TotalPages: pages}
}
