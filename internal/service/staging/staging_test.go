package staging

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"omnisum/internal/config"
	"omnisum/internal/models"
	"omnisum/internal/storage"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	wavBytes = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00"), make([]byte, 32)...)
)

func TestStageRoundTripIsByteIdentical(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, t.TempDir(), time.Hour, nil)
	ctx := context.Background()

	cases := []struct {
		modality models.Modality
		name     string
		body     []byte
		suffix   string
		mime     string
	}{
		{models.ModalityDocument, "report.pdf", pdfBytes, ".pdf", "application/pdf"},
		{models.ModalityAudio, "clip.WAV", wavBytes, ".wav", "audio/wav"},
	}
	for _, tc := range cases {
		staged, err := svc.Stage(ctx, tc.modality, &models.Upload{FileName: tc.name, Content: bytes.NewReader(tc.body)})
		if err != nil {
			t.Fatalf("stage %s: %v", tc.name, err)
		}
		if !strings.HasSuffix(staged.StoredPath, tc.suffix) {
			t.Fatalf("staged path %q lacks suffix %q", staged.StoredPath, tc.suffix)
		}
		if staged.MimeType != tc.mime {
			t.Fatalf("unexpected mime for %s: %q", tc.name, staged.MimeType)
		}
		got, err := os.ReadFile(staged.StoredPath)
		if err != nil {
			t.Fatalf("read staged: %v", err)
		}
		if !bytes.Equal(got, tc.body) {
			t.Fatalf("staged content differs from upload for %s", tc.name)
		}
		if staged.Size != int64(len(tc.body)) || staged.ID <= 0 {
			t.Fatalf("unexpected staged record: %+v", staged)
		}
	}
}

func TestStageUsesUniqueNames(t *testing.T) {
	svc := NewService(nil, t.TempDir(), time.Hour, nil)
	ctx := context.Background()
	first, err := svc.Stage(ctx, models.ModalityDocument, &models.Upload{FileName: "doc.pdf", Content: bytes.NewReader(pdfBytes)})
	if err != nil {
		t.Fatalf("stage first: %v", err)
	}
	second, err := svc.Stage(ctx, models.ModalityDocument, &models.Upload{FileName: "doc.pdf", Content: bytes.NewReader(pdfBytes)})
	if err != nil {
		t.Fatalf("stage second: %v", err)
	}
	if first.StoredPath == second.StoredPath {
		t.Fatalf("two uploads share %s", first.StoredPath)
	}
}

func TestReleaseRemovesFileAndMarksLedger(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, t.TempDir(), time.Hour, nil)
	ctx := context.Background()

	staged, err := svc.Stage(ctx, models.ModalityDocument, &models.Upload{FileName: "doc.pdf", Content: bytes.NewReader(pdfBytes)})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if n, _ := svc.ActiveCount(ctx); n != 1 {
		t.Fatalf("expected 1 active staged file, got %d", n)
	}
	if err := svc.Release(ctx, staged); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(staged.StoredPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staged file still on disk: %v", err)
	}
	if n, _ := svc.ActiveCount(ctx); n != 0 {
		t.Fatalf("expected no active staged files, got %d", n)
	}
	// releasing twice is harmless
	if err := svc.Release(ctx, staged); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestStageWithoutUpload(t *testing.T) {
	svc := NewService(nil, t.TempDir(), time.Hour, nil)
	if _, err := svc.Stage(context.Background(), models.ModalityAudio, nil); !errors.Is(err, models.ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
}

func TestStageUnwritableDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(base, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	svc := NewService(nil, base, time.Hour, nil)
	_, err := svc.Stage(context.Background(), models.ModalityDocument, &models.Upload{FileName: "doc.pdf", Content: bytes.NewReader(pdfBytes)})
	if !errors.Is(err, models.ErrUploadIO) {
		t.Fatalf("expected ErrUploadIO, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, t.TempDir(), time.Minute, nil)
	ctx := context.Background()

	staged, err := svc.Stage(ctx, models.ModalityAudio, &models.Upload{FileName: "a.wav", Content: bytes.NewReader(wavBytes)})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	n, err := svc.CleanupExpired(ctx, time.Now().UTC())
	if err != nil || n != 0 {
		t.Fatalf("nothing should expire yet: n=%d err=%v", n, err)
	}
	n, err = svc.CleanupExpired(ctx, time.Now().UTC().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired file removed, got %d", n)
	}
	if _, err := os.Stat(staged.StoredPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expired file still on disk")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}
