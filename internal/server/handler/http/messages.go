package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/atinyakov/asrcollect/internal/common"
	"go.uber.org/zap"
)

// Messages shown to contributors.
const (
	msgRegistered      = "Registration successful! Please login."
	msgUsernameTaken   = "Username already exists"
	msgInvalidCreds    = "Invalid credentials"
	msgMissingFields   = "Please provide both username and password"
	msgTranscribed     = "Thank you for your contribution! The transcription will be verified."
	msgContributed     = "Thank you for your contribution!"
	msgMissingContrib  = "Please provide both audio and text"
	msgRecordingFailed = "Error saving recorded audio: "
	msgNoSamples       = "No audio clips available for labeling at the moment. Check back later!"
	msgEmptyText       = "Please enter a transcription"
	msgUnsupported     = "Unsupported audio format. Use wav, mp3, ogg, webm, flac or m4a."
	msgTooLarge        = "The audio is too large"
	msgNotFound        = "Not found"
	msgInternal        = "Something went wrong, please try again"
)

// userMessage turns a service error into the text shown to the user.
// invalid is used for common.ErrInvalidInput, whose meaning depends on the form.
func userMessage(err error, invalid string) string {
	switch {
	case errors.Is(err, common.ErrAlreadyExists):
		return msgUsernameTaken
	case errors.Is(err, common.ErrInvalidCredentials):
		return msgInvalidCreds
	case errors.Is(err, common.ErrMissingContribution):
		return msgMissingContrib
	case errors.Is(err, common.ErrRecordingFailed):
		return msgRecordingFailed + strings.TrimPrefix(err.Error(), common.ErrRecordingFailed.Error()+": ")
	case errors.Is(err, common.ErrUnsupportedAudio):
		return msgUnsupported
	case errors.Is(err, common.ErrTooLarge):
		return msgTooLarge
	case errors.Is(err, common.ErrInvalidInput):
		return invalid
	case errors.Is(err, common.ErrNotFound):
		return msgNotFound
	}
	return msgInternal
}

// respondError writes err as a JSON error body, logging unexpected failures.
func respondError(w http.ResponseWriter, log *zap.Logger, err error, invalid string) {
	status := common.HTTPStatusFromError(err)
	if status == http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Error(err))
	}
	common.RespondWithError(w, status, userMessage(err, invalid))
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
