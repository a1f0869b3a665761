package http

import (
	"context"
	"io"
	"net/http"

	"github.com/atinyakov/asrcollect/internal/middleware"
	"github.com/atinyakov/asrcollect/internal/models"
	"github.com/atinyakov/asrcollect/internal/session"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	registerErr error
	loginErr    error
	user        *models.User
}

func (f *fakeAuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "u-" + username, Username: username}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if f.user != nil {
		return f.user, nil
	}
	return &models.User{ID: "u-" + username, Username: username}, nil
}

// fakeSessions records started and cleared sessions.
type fakeSessions struct {
	startErr error
	started  []string
	cleared  int
}

func (f *fakeSessions) Start(w http.ResponseWriter, userID, username string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, userID)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "token-" + userID})
	return nil
}

func (f *fakeSessions) ClearCookie(w http.ResponseWriter) {
	f.cleared++
}

// fakeSampleService implements SampleService with func fields.
type fakeSampleService struct {
	NextFunc      func(ctx context.Context, userID string) (*models.AudioSample, error)
	SubmitFunc    func(ctx context.Context, userID, sampleID, text string) error
	UploadFunc    func(ctx context.Context, contributorID, filename string, r io.Reader, text string) (*models.AudioSample, error)
	RecordFunc    func(ctx context.Context, contributorID, payload, text string) (*models.AudioSample, error)
	OpenAudioFunc func(ctx context.Context, sampleID string) (*models.AudioSample, io.ReadCloser, error)
}

func (f *fakeSampleService) NextUnlabeled(ctx context.Context, userID string) (*models.AudioSample, error) {
	return f.NextFunc(ctx, userID)
}
func (f *fakeSampleService) SubmitTranscription(ctx context.Context, userID, sampleID, text string) error {
	return f.SubmitFunc(ctx, userID, sampleID, text)
}
func (f *fakeSampleService) ContributeUpload(ctx context.Context, contributorID, filename string, r io.Reader, text string) (*models.AudioSample, error) {
	return f.UploadFunc(ctx, contributorID, filename, r, text)
}
func (f *fakeSampleService) ContributeRecording(ctx context.Context, contributorID, payload, text string) (*models.AudioSample, error) {
	return f.RecordFunc(ctx, contributorID, payload, text)
}
func (f *fakeSampleService) OpenAudio(ctx context.Context, sampleID string) (*models.AudioSample, io.ReadCloser, error) {
	return f.OpenAudioFunc(ctx, sampleID)
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), session.Session{UserID: userID, Username: "name-" + userID}))
}
