package staging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"omnisum/internal/models"
)

const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Service writes uploads to uniquely named temporary files and tracks them in
// the staged_files ledger until they are released.
type Service struct {
	db      *sql.DB
	baseDir string
	ttl     time.Duration
	logger  *zap.Logger
}

// NewService builds a staging service rooted at baseDir.
func NewService(db *sql.DB, baseDir string, ttl time.Duration, logger *zap.Logger) *Service {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, baseDir: baseDir, ttl: ttl, logger: logger}
}

// Stage copies the upload to a new temporary file whose suffix matches the
// upload's extension and records it in the ledger.
func (s *Service) Stage(ctx context.Context, modality models.Modality, upload *models.Upload) (*models.StagedFile, error) {
	if upload == nil || upload.Content == nil {
		return nil, models.ErrNoInput
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, models.Wrap(models.ErrUploadIO, fmt.Errorf("create upload dir: %w", err))
	}
	pattern := string(modality) + "-*"
	if ext := upload.Extension(); ext != "" {
		pattern += "." + ext
	}
	f, err := os.CreateTemp(s.baseDir, pattern)
	if err != nil {
		return nil, models.Wrap(models.ErrUploadIO, fmt.Errorf("create temp file: %w", err))
	}
	path := f.Name()
	size, err := io.Copy(f, upload.Content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, models.Wrap(models.ErrUploadIO, fmt.Errorf("write temp file: %w", err))
	}

	mimeType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		mimeType = mt.String()
	}

	now := time.Now().UTC()
	staged := &models.StagedFile{
		Modality:   modality,
		FileName:   upload.FileName,
		StoredPath: path,
		MimeType:   mimeType,
		Size:       size,
		Status:     models.StagedActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.record(ctx, staged); err != nil {
		_ = os.Remove(path)
		return nil, models.Wrap(models.ErrUploadIO, err)
	}
	s.logger.Debug("upload staged",
		zap.String("modality", string(modality)),
		zap.String("path", path),
		zap.String("mime", mimeType),
		zap.Int64("size", size))
	return staged, nil
}

// Release deletes the staged file and marks its ledger entry released.
func (s *Service) Release(ctx context.Context, staged *models.StagedFile) error {
	if staged == nil {
		return nil
	}
	if err := os.Remove(staged.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	staged.Status = models.StagedReleased
	if s.db == nil || staged.ID <= 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE staged_files SET status = ?, released_at = ? WHERE id = ?`,
		models.StagedReleased, time.Now().UTC(), staged.ID,
	); err != nil {
		return fmt.Errorf("mark staged file released: %w", err)
	}
	return nil
}

// ActiveCount reports how many staged files are still waiting for release.
func (s *Service) ActiveCount(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM staged_files WHERE status = ?`, models.StagedActive,
	).Scan(&count)
	return count, err
}

func (s *Service) record(ctx context.Context, staged *models.StagedFile) error {
	if s.db == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO staged_files (modality, file_name, stored_path, mime_type, size, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		staged.Modality, staged.FileName, staged.StoredPath, staged.MimeType, staged.Size,
		staged.Status, staged.CreatedAt, staged.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("record staged file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("staged file id: %w", err)
	}
	staged.ID = id
	return nil
}
