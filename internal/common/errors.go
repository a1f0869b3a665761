// Package common holds the error vocabulary and JSON response helpers shared
// by services and HTTP handlers.
package common

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidInput        = errors.New("invalid input")
	ErrMissingContribution = errors.New("please provide both audio and text")
	ErrRecordingFailed     = errors.New("error saving recorded audio")
	ErrUnsupportedAudio    = errors.New("unsupported audio format")
	ErrTooLarge            = errors.New("audio payload too large")
	ErrUnauthorized        = errors.New("unauthorized")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnsupportedAudio):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrMissingContribution),
		errors.Is(err, ErrRecordingFailed):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
