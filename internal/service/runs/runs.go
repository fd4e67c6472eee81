package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"omnisum/internal/models"
)

const DefaultListLimit = 20

// Service persists run metadata. Texts, transcripts and summaries are never stored.
type Service struct {
	db *sql.DB
}

// NewService builds a run ledger; a nil db yields a ledger that only mints ids.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Start inserts a running entry for the modality and returns it.
func (s *Service) Start(ctx context.Context, modality models.Modality, inputBytes int64) (*models.Run, error) {
	run := &models.Run{
		ID:         uuid.NewString(),
		Modality:   modality,
		Status:     models.RunRunning,
		InputBytes: inputBytes,
		StartedAt:  time.Now().UTC(),
	}
	if s == nil || s.db == nil {
		return run, nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summary_runs (id, modality, status, input_bytes, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Modality, run.Status, run.InputBytes, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// Finish closes a run with its outcome derived from err.
func (s *Service) Finish(ctx context.Context, run *models.Run, summaryChars int, err error) error {
	if run == nil {
		return errors.New("run is required")
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.SummaryChars = summaryChars
	switch {
	case err == nil:
		run.Status = models.RunSucceeded
	case errors.Is(err, models.ErrNoInput):
		run.Status = models.RunIdle
	default:
		run.Status = models.RunFailed
	}
	run.ErrorKind = models.ErrorKind(err)
	if s == nil || s.db == nil {
		return nil
	}
	res, execErr := s.db.ExecContext(ctx,
		`UPDATE summary_runs SET status = ?, error_kind = ?, summary_chars = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.ErrorKind, run.SummaryChars, now, run.ID,
	)
	if execErr != nil {
		return fmt.Errorf("finish run: %w", execErr)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Recent returns the newest runs first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, modality, status, error_kind, input_bytes, summary_chars, started_at, finished_at
		 FROM summary_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var (
			r        models.Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Modality, &r.Status, &r.ErrorKind, &r.InputBytes, &r.SummaryChars, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
