package api

import (
	"errors"
	"net/http"
)

type AppError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Status: http.StatusBadRequest, Message: "bad request", Code: "bad_request"}
	ErrUnauthorized   = &AppError{Status: http.StatusUnauthorized, Message: "unauthorized", Code: "unauthenticated"}
	ErrForbidden      = &AppError{Status: http.StatusForbidden, Message: "forbidden", Code: "forbidden"}
	ErrNotFound       = &AppError{Status: http.StatusNotFound, Message: "not found", Code: "not_found"}
	ErrInternalServer = &AppError{Status: http.StatusInternalServerError, Message: "internal server error", Code: "internal_error"}
	ErrInvalidToken   = &AppError{Status: http.StatusUnauthorized, Message: "invalid or expired token", Code: "unauthenticated"}
	ErrValidation     = &AppError{Status: http.StatusBadRequest, Message: "validation error", Code: "validation_error"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: msg, Code: "bad_request"}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: msg, Code: "validation_error"}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONRaw(w, appErr.Status, appErr)
		return
	}
	JSONRaw(w, http.StatusInternalServerError, ErrInternalServer)
}
