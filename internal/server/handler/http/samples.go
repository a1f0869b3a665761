package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/middleware"
	"github.com/atinyakov/asrcollect/internal/models"
	"github.com/atinyakov/asrcollect/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// SampleService defines the labeling and contribution operations required
// by the handlers.
type SampleService interface {
	NextUnlabeled(ctx context.Context, userID string) (*models.AudioSample, error)
	SubmitTranscription(ctx context.Context, userID, sampleID, text string) error
	ContributeUpload(ctx context.Context, contributorID, filename string, r io.Reader, text string) (*models.AudioSample, error)
	ContributeRecording(ctx context.Context, contributorID, payload, text string) (*models.AudioSample, error)
	OpenAudio(ctx context.Context, sampleID string) (*models.AudioSample, io.ReadCloser, error)
}

// SampleHandler handles the labeling and contribution API and audio playback.
type SampleHandler struct {
	SampleService SampleService
	// MaxUploadBytes bounds request bodies carrying audio.
	MaxUploadBytes int64
	Log            *zap.Logger
}

// SampleResponse is the API view of an audio sample.
type SampleResponse struct {
	ID        string    `json:"id"`
	AudioURL  string    `json:"audio_url"`
	Text      *string   `json:"text,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newSampleResponse(s *models.AudioSample) SampleResponse {
	return SampleResponse{
		ID:        s.ID,
		AudioURL:  audioURL(s.ID),
		Text:      s.Text,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

func audioURL(id string) string {
	return "/audio/" + id
}

// TranscriptionRequest is the payload of POST /api/samples/{id}/transcription.
type TranscriptionRequest struct {
	Text string `json:"text"`
}

// RecordingRequest is the payload of POST /api/recordings. Audio is a base64
// data URL as produced by FileReader.readAsDataURL.
type RecordingRequest struct {
	Audio string `json:"audio"`
	Text  string `json:"text"`
}

// Next handles GET /api/samples/next. It answers 204 when nothing is left
// to label.
func (h *SampleHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	s, err := h.SampleService.NextUnlabeled(r.Context(), userID)
	if errors.Is(err, common.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		respondError(w, h.Log, err, msgEmptyText)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, newSampleResponse(s))
}

// Transcribe handles POST /api/samples/{id}/transcription.
func (h *SampleHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req TranscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	if err := h.SampleService.SubmitTranscription(r.Context(), userID, chi.URLParam(r, "id"), req.Text); err != nil {
		respondError(w, h.Log, err, msgEmptyText)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: msgTranscribed})
}

// Contribute handles POST /api/contributions, a multipart form with an
// "audio" file and a "text" field.
func (h *SampleHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	s, err := contributeUpload(w, r, h.SampleService, h.MaxUploadBytes)
	if err != nil {
		respondError(w, h.Log, err, msgMissingContrib)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, newSampleResponse(s))
}

// Record handles POST /api/recordings.
func (h *SampleHandler) Record(w http.ResponseWriter, r *http.Request) {
	// base64 inflates by 4/3.
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes/3*4+64<<10)
	var req RecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, bodyError(err), msgMissingContrib)
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	s, err := h.SampleService.ContributeRecording(r.Context(), userID, req.Audio, req.Text)
	if err != nil {
		respondError(w, h.Log, err, msgMissingContrib)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, newSampleResponse(s))
}

// Audio handles GET /audio/{id}. Seekable payloads are served with range
// support so browsers can scrub.
func (h *SampleHandler) Audio(w http.ResponseWriter, r *http.Request) {
	s, rc, err := h.SampleService.OpenAudio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.Log, err, msgNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", storage.ContentType(s.Filename))
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", s.CreatedAt, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		orNop(h.Log).Warn("stream audio", zap.String("sample_id", s.ID), zap.Error(err))
	}
}

// contributeUpload parses the multipart contribution form shared by the API
// and the HTML view and hands it to the service. A missing file is passed
// on as a nil reader so the service reports the missing contribution.
func contributeUpload(w http.ResponseWriter, r *http.Request, svc SampleService, maxBytes int64) (*models.AudioSample, error) {
	limit := maxBytes + 1<<20
	if r.ContentLength > limit {
		return nil, common.ErrTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, bodyError(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var (
		file     multipart.File
		filename string
	)
	if f, hdr, err := r.FormFile("audio"); err == nil {
		defer f.Close()
		file, filename = f, hdr.Filename
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	var audio io.Reader
	if file != nil {
		audio = file
	}
	return svc.ContributeUpload(r.Context(), userID, filename, audio, r.FormValue("text"))
}

// bodyError classifies request body failures.
func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return common.ErrTooLarge
	}
	return common.ErrInvalidInput
}
