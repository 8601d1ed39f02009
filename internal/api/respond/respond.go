// Package respond owns the JSON envelope shared by every API surface:
// handlers, middleware, and the router all write {data}/{error} through it.
// It sits below the handler packages so they can share one error taxonomy
// without importing the api package itself.
package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error is an API error carrying the wire code and the HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Wire error codes
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

// Fixed-message errors
var (
	ErrUnauthorized = &Error{
		Code:    CodeUnauthorized,
		Message: "invalid credentials",
		Status:  http.StatusUnauthorized,
	}

	ErrInvalidToken = &Error{
		Code:    CodeUnauthorized,
		Message: "invalid or expired token",
		Status:  http.StatusUnauthorized,
	}

	ErrForbidden = &Error{
		Code:    CodeForbidden,
		Message: "access denied",
		Status:  http.StatusForbidden,
	}

	ErrInternalServer = &Error{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
	}

	ErrRateLimited = &Error{
		Code:    CodeRateLimited,
		Message: "too many requests",
		Status:  http.StatusTooManyRequests,
	}

	ErrAccountLocked = &Error{
		Code:    CodeAccountLocked,
		Message: "account temporarily locked due to too many failed attempts",
		Status:  http.StatusTooManyRequests,
	}
)

// NewBadRequest creates a bad request error with a custom message.
func NewBadRequest(message string) *Error {
	return &Error{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewValidationError creates a validation error with a custom message.
func NewValidationError(message string) *Error {
	return &Error{
		Code:    CodeValidationFailed,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewConflict creates a conflict error with a custom message.
func NewConflict(message string) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// NewNotFound creates a not found error with a custom message.
func NewNotFound(message string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: message,
		Status:  http.StatusNotFound,
	}
}

// Response is the success envelope. Data is always present, null included,
// so clients can decode without probing for the key.
type Response struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error *Error `json:"error"`
}

// JSON writes a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// JSONError writes an error envelope using the error's status.
func JSONError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: e}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
