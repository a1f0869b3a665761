package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/models"
)

const sampleColumns = `id, filename, text, contributor_id, status, created_at`

// SQLSampleRepository implements audio sample persistence on a database/sql handle.
type SQLSampleRepository struct {
	DB *sql.DB
}

func NewSQLSampleRepository(db *sql.DB) *SQLSampleRepository {
	return &SQLSampleRepository{DB: db}
}

// Create inserts s as a new row.
func (r *SQLSampleRepository) Create(ctx context.Context, s *models.AudioSample) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO audio_samples (`+sampleColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Filename, nullString(s.Text), s.ContributorID, string(s.Status), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// ListByStatus returns up to limit samples with the given status in
// insertion order, skipping the first offset.
func (r *SQLSampleRepository) ListByStatus(ctx context.Context, status models.SampleStatus, limit, offset int) ([]models.AudioSample, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+sampleColumns+` FROM audio_samples WHERE status = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var samples []models.AudioSample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("list samples: %w", err)
		}
		samples = append(samples, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	return samples, nil
}

// GetByID returns common.ErrNotFound when no sample has the id.
func (r *SQLSampleRepository) GetByID(ctx context.Context, id string) (*models.AudioSample, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+sampleColumns+` FROM audio_samples WHERE id = $1`, id)
	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sample %s: %w", id, err)
	}
	return s, nil
}

// UpdateTranscription overwrites the text and moves the sample to
// pending_verification whatever its current state.
func (r *SQLSampleRepository) UpdateTranscription(ctx context.Context, id, text string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE audio_samples SET text = $1, status = $2 WHERE id = $3`,
		text, string(models.StatusPendingVerification), id,
	)
	if err != nil {
		return fmt.Errorf("update sample %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sample %s: %w", id, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(sc scanner) (*models.AudioSample, error) {
	var (
		s           models.AudioSample
		text        sql.NullString
		contributor sql.NullString
		status      string
	)
	if err := sc.Scan(&s.ID, &s.Filename, &text, &contributor, &status, &s.CreatedAt); err != nil {
		return nil, err
	}
	if text.Valid {
		s.Text = &text.String
	}
	s.ContributorID = contributor.String
	s.Status = models.SampleStatus(status)
	return &s, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
