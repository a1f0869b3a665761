// Package models defines the core data structures for contributors and
// audio samples.
package models

import "time"

// User represents a registered contributor.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Username is the login name chosen by the user.
	Username string `json:"username"`
	// PasswordHash is the bcrypt digest of the user's password.
	PasswordHash string `json:"-"`
	// CreatedAt is the registration time.
	CreatedAt time.Time `json:"created_at"`
}

// SampleStatus is the labeling state of an audio sample.
type SampleStatus string

const (
	// StatusUnverified marks a sample waiting for a transcription.
	StatusUnverified SampleStatus = "unverified"
	// StatusPendingVerification marks a transcribed sample awaiting review.
	// No review step exists yet, so this is the terminal state.
	StatusPendingVerification SampleStatus = "pending_verification"
)

// AudioSample is one stored audio clip together with its transcription.
type AudioSample struct {
	// ID is the unique identifier for the sample.
	ID string `json:"id"`
	// Filename is the storage reference of the audio payload.
	Filename string `json:"filename"`
	// Text is the transcription; nil until the clip is labeled or when it
	// was imported without one.
	Text *string `json:"text,omitempty"`
	// ContributorID references the user who supplied the audio.
	ContributorID string `json:"contributor_id"`
	// Status is the labeling state.
	Status SampleStatus `json:"status"`
	// CreatedAt is the creation time in UTC.
	CreatedAt time.Time `json:"created_at"`
}

// Transcription returns the sample text or an empty string.
func (s AudioSample) Transcription() string {
	if s.Text == nil {
		return ""
	}
	return *s.Text
}
