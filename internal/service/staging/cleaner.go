package staging

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"omnisum/internal/models"
)

// StartCleaner removes staged files whose request never released them.
func (s *Service) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.CleanupExpired(ctx, time.Now().UTC()); err != nil {
				s.logger.Warn("cleanup staged files", zap.Error(err))
			} else if n > 0 {
				s.logger.Info("expired staged files removed", zap.Int("count", n))
			}
		}
	}
}

// CleanupExpired releases every active staged file that expired at or before now.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stored_path FROM staged_files
		WHERE status = ? AND expires_at <= ?`, models.StagedActive, now)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return 0, err
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	removed := 0
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove staged file", zap.String("path", f.path), zap.Error(err))
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE staged_files SET status = ?, released_at = ? WHERE id = ?`,
			models.StagedReleased, now, f.id,
		); err != nil {
			s.logger.Warn("mark staged file released", zap.Int64("id", f.id), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
