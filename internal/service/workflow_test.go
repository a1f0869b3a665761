package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/atinyakov/asrcollect/internal/claims"
	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/config"
	"github.com/atinyakov/asrcollect/internal/db"
	"github.com/atinyakov/asrcollect/internal/models"
	"github.com/atinyakov/asrcollect/internal/repository"
	"github.com/atinyakov/asrcollect/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type workflow struct {
	conn    *sql.DB
	auth    *AuthService
	samples *SampleService
	dir     string
}

func newWorkflow(t *testing.T) *workflow {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Init(context.Background(), config.DriverSQLite, filepath.Join(dir, "asr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	auth := NewAuthService(repository.NewSQLUserRepository(conn))
	auth.cost = bcrypt.MinCost
	samples := NewSampleService(
		repository.NewSQLSampleRepository(conn),
		storage.NewIngester(store, 1<<20),
		claims.Noop{},
		nil,
	)
	return &workflow{conn: conn, auth: auth, samples: samples, dir: dir}
}

func (w *workflow) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, w.conn.QueryRow(query, args...).Scan(&n))
	return n
}

func TestWorkflow_Registration(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	_, err := w.auth.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	_, err = w.auth.Register(ctx, "alice", "pw2")
	require.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.Equal(t, 1, w.count(t, `SELECT COUNT(*) FROM users WHERE username = $1`, "alice"))

	_, err = w.auth.Login(ctx, "alice", "pw1")
	assert.NoError(t, err)
	_, err = w.auth.Login(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = w.auth.Login(ctx, "bob", "pw1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestWorkflow_ConcurrentRegistration(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.auth.Register(ctx, "racer", "pw"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, common.ErrAlreadyExists)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, w.count(t, `SELECT COUNT(*) FROM users WHERE username = $1`, "racer"))
}

func TestWorkflow_LabelingLifecycle(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	u, err := w.auth.Register(ctx, "labeler", "pw")
	require.NoError(t, err)

	_, err = w.samples.NextUnlabeled(ctx, u.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	first, err := w.samples.ImportUnlabeled(ctx, u.ID, "first.wav", strings.NewReader("first clip"))
	require.NoError(t, err)
	second, err := w.samples.ImportUnlabeled(ctx, u.ID, "second.wav", strings.NewReader("second clip"))
	require.NoError(t, err)

	next, err := w.samples.NextUnlabeled(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, next.ID)
	assert.Nil(t, next.Text)

	require.NoError(t, w.samples.SubmitTranscription(ctx, u.ID, first.ID, "hello world"))

	next, err = w.samples.NextUnlabeled(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID, "transcribed sample is never returned again")

	sample, rc, err := w.samples.OpenAudio(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, models.StatusPendingVerification, sample.Status)
	assert.Equal(t, "hello world", sample.Transcription())

	require.ErrorIs(t, w.samples.SubmitTranscription(ctx, u.ID, "no-such-id", "x"), common.ErrNotFound)
}

func TestWorkflow_LastWriterWins(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	u, err := w.auth.Register(ctx, "labeler", "pw")
	require.NoError(t, err)
	s, err := w.samples.ImportUnlabeled(ctx, u.ID, "clip.wav", strings.NewReader("clip"))
	require.NoError(t, err)

	require.NoError(t, w.samples.SubmitTranscription(ctx, u.ID, s.ID, "first"))
	require.NoError(t, w.samples.SubmitTranscription(ctx, u.ID, s.ID, "second"))
	got, _, err := w.samples.OpenAudio(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Transcription())

	texts := []string{"alpha", "beta"}
	var wg sync.WaitGroup
	for _, text := range texts {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			assert.NoError(t, w.samples.SubmitTranscription(ctx, u.ID, s.ID, text))
		}(text)
	}
	wg.Wait()

	var final, status string
	require.NoError(t, w.conn.QueryRow(`SELECT text, status FROM audio_samples WHERE id = $1`, s.ID).Scan(&final, &status))
	assert.Contains(t, texts, final)
	assert.Equal(t, string(models.StatusPendingVerification), status)
}

func TestWorkflow_Contributions(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	u, err := w.auth.Register(ctx, "contributor", "pw")
	require.NoError(t, err)

	_, err = w.samples.ContributeUpload(ctx, u.ID, "clip.wav", strings.NewReader("audio"), "")
	require.ErrorIs(t, err, common.ErrMissingContribution)
	_, err = w.samples.ContributeRecording(ctx, u.ID, "", "text")
	require.ErrorIs(t, err, common.ErrMissingContribution)
	assert.Equal(t, 0, w.count(t, `SELECT COUNT(*) FROM audio_samples`))
	files, err := filepath.Glob(filepath.Join(w.dir, "uploads", "*"))
	require.NoError(t, err)
	assert.Empty(t, files, "rejected contributions leave no files")

	s, err := w.samples.ContributeUpload(ctx, u.ID, "clip.wav", strings.NewReader("audio"), "good morning")
	require.NoError(t, err)
	assert.Equal(t, 1, w.count(t, `SELECT COUNT(*) FROM audio_samples`))
	assert.Equal(t, 1, w.count(t, `SELECT COUNT(*) FROM audio_samples WHERE contributor_id = $1 AND status = $2 AND text = $3`,
		u.ID, string(models.StatusUnverified), "good morning"))

	_, rc, err := w.samples.OpenAudio(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = w.samples.ContributeRecording(ctx, u.ID, "data:audio/webm;base64,!!!", "text")
	require.True(t, errors.Is(err, common.ErrRecordingFailed))

	_, err = w.samples.ContributeRecording(ctx, u.ID, "data:audio/webm;codecs=opus;base64,R0lGODlh", "recorded text")
	require.NoError(t, err)
	assert.Equal(t, 2, w.count(t, `SELECT COUNT(*) FROM audio_samples`))
}
