package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// claimBatch is how many unlabeled samples are fetched per page while
// looking for one that can be claimed.
const claimBatch = 20

// SampleRepository defines the persistence operations needed by SampleService.
type SampleRepository interface {
	Create(ctx context.Context, s *models.AudioSample) error
	// ListByStatus returns up to limit samples in insertion order, after
	// skipping offset.
	ListByStatus(ctx context.Context, status models.SampleStatus, limit, offset int) ([]models.AudioSample, error)
	GetByID(ctx context.Context, id string) (*models.AudioSample, error)
	// UpdateTranscription sets the text and moves the sample to
	// pending_verification; common.ErrNotFound if no row matched.
	UpdateTranscription(ctx context.Context, id, text string) error
}

// AudioStore validates, names and persists audio payloads.
type AudioStore interface {
	StoreUploaded(ctx context.Context, contributorID, originalName string, r io.Reader) (string, error)
	StoreRecorded(ctx context.Context, contributorID, payload string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Claimer reserves samples for a single labeler.
type Claimer interface {
	Claim(ctx context.Context, sampleID, userID string) (bool, error)
	Release(ctx context.Context, sampleID, userID string) error
}

// SampleService implements the labeling and contribution workflows.
type SampleService struct {
	repo   SampleRepository
	audio  AudioStore
	claims Claimer
	log    *zap.Logger
	now    func() time.Time
}

// NewSampleService wires the workflow to its repository, audio store and
// claimer. log may be nil.
func NewSampleService(repo SampleRepository, audio AudioStore, claims Claimer, log *zap.Logger) *SampleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SampleService{repo: repo, audio: audio, claims: claims, log: log, now: time.Now}
}

// NextUnlabeled returns the oldest unverified sample the claimer grants to
// userID, or common.ErrNotFound when there is none. Pages of claimBatch
// samples are walked until one is granted or the samples run out.
func (s *SampleService) NextUnlabeled(ctx context.Context, userID string) (*models.AudioSample, error) {
	for offset := 0; ; offset += claimBatch {
		candidates, err := s.repo.ListByStatus(ctx, models.StatusUnverified, claimBatch, offset)
		if err != nil {
			return nil, err
		}
		for i := range candidates {
			sample := &candidates[i]
			ok, err := s.claims.Claim(ctx, sample.ID, userID)
			if err != nil {
				// Serve unclaimed rather than block labeling on the claim store.
				s.log.Warn("claim failed", zap.String("sample_id", sample.ID), zap.Error(err))
				return sample, nil
			}
			if ok {
				return sample, nil
			}
		}
		if len(candidates) < claimBatch {
			return nil, common.ErrNotFound
		}
	}
}

// SubmitTranscription overwrites the sample's text unconditionally and marks
// it pending verification. Concurrent submissions are not detected: the
// last write wins.
func (s *SampleService) SubmitTranscription(ctx context.Context, userID, sampleID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty transcription: %w", common.ErrInvalidInput)
	}
	if err := s.repo.UpdateTranscription(ctx, sampleID, text); err != nil {
		return err
	}
	if err := s.claims.Release(ctx, sampleID, userID); err != nil {
		s.log.Warn("release claim failed", zap.String("sample_id", sampleID), zap.Error(err))
	}
	return nil
}

// SubmitContribution records already stored audio together with its
// transcription as a new unverified sample.
func (s *SampleService) SubmitContribution(ctx context.Context, audioRef, text, contributorID string) (*models.AudioSample, error) {
	if audioRef == "" || strings.TrimSpace(text) == "" {
		return nil, common.ErrMissingContribution
	}
	return s.insert(ctx, audioRef, &text, contributorID)
}

// ContributeUpload stores an uploaded audio file and records it with text.
// Nothing is stored when the text or the file is missing.
func (s *SampleService) ContributeUpload(ctx context.Context, contributorID, filename string, r io.Reader, text string) (*models.AudioSample, error) {
	if r == nil || filename == "" || strings.TrimSpace(text) == "" {
		return nil, common.ErrMissingContribution
	}
	ref, err := s.audio.StoreUploaded(ctx, contributorID, filename, r)
	if err != nil {
		return nil, err
	}
	// A failed insert leaves the file for the orphan sweeper.
	return s.SubmitContribution(ctx, ref, text, contributorID)
}

// ContributeRecording stores a base64 browser recording and records it with
// text. Decode and write failures wrap common.ErrRecordingFailed.
func (s *SampleService) ContributeRecording(ctx context.Context, contributorID, payload, text string) (*models.AudioSample, error) {
	if strings.TrimSpace(payload) == "" || strings.TrimSpace(text) == "" {
		return nil, common.ErrMissingContribution
	}
	ref, err := s.audio.StoreRecorded(ctx, contributorID, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRecordingFailed, err)
	}
	return s.SubmitContribution(ctx, ref, text, contributorID)
}

// ImportUnlabeled stores a clip without a transcription so it shows up for
// labeling.
func (s *SampleService) ImportUnlabeled(ctx context.Context, contributorID, filename string, r io.Reader) (*models.AudioSample, error) {
	ref, err := s.audio.StoreUploaded(ctx, contributorID, filename, r)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, ref, nil, contributorID)
}

// OpenAudio returns the sample and a reader over its audio. The caller
// closes the reader.
func (s *SampleService) OpenAudio(ctx context.Context, sampleID string) (*models.AudioSample, io.ReadCloser, error) {
	sample, err := s.repo.GetByID(ctx, sampleID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.audio.Open(ctx, sample.Filename)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Error("audio missing for sample", zap.String("sample_id", sampleID), zap.String("filename", sample.Filename))
		}
		return nil, nil, err
	}
	return sample, rc, nil
}

func (s *SampleService) insert(ctx context.Context, ref string, text *string, contributorID string) (*models.AudioSample, error) {
	sample := &models.AudioSample{
		ID:            uuid.NewString(),
		Filename:      ref,
		Text:          text,
		ContributorID: contributorID,
		Status:        models.StatusUnverified,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, sample); err != nil {
		return nil, err
	}
	return sample, nil
}
