package runs

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"omnisum/internal/config"
	"omnisum/internal/models"
	"omnisum/internal/storage"
)

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	ok, err := svc.Start(ctx, models.ModalityText, 42)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if ok.ID == "" || ok.Status != models.RunRunning {
		t.Fatalf("unexpected run: %+v", ok)
	}
	if err := svc.Finish(ctx, ok, 7, nil); err != nil {
		t.Fatalf("finish ok: %v", err)
	}

	failed, err := svc.Start(ctx, models.ModalityVideo, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cause := fmt.Errorf("parse: %w", models.ErrInputMalformed)
	if err := svc.Finish(ctx, failed, 0, cause); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	runs, err := svc.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	byID := map[string]models.Run{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	if r := byID[ok.ID]; r.Status != models.RunSucceeded || r.SummaryChars != 7 || r.InputBytes != 42 || r.FinishedAt == nil {
		t.Fatalf("unexpected succeeded run: %+v", r)
	}
	if r := byID[failed.ID]; r.Status != models.RunFailed || r.ErrorKind != "input_malformed" {
		t.Fatalf("unexpected failed run: %+v", r)
	}
}

func TestFinishIdleRun(t *testing.T) {
	svc := NewService(nil)
	run, err := svc.Start(context.Background(), models.ModalityAudio, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Finish(context.Background(), run, 0, models.ErrNoInput); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if run.Status != models.RunIdle || run.ErrorKind != "no_input" {
		t.Fatalf("unexpected idle run: %+v", run)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	err := svc.Finish(context.Background(), &models.Run{ID: "missing"}, 0, nil)
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
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
