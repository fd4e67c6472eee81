package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"omnisum/internal/models"
)

// Router runs one summary pathway.
type Router interface {
	Route(ctx context.Context, modality models.Modality, in models.RawInput) (*models.SummaryResult, error)
}

// RunRecorder keeps the metadata ledger of summary runs.
type RunRecorder interface {
	Start(ctx context.Context, modality models.Modality, inputBytes int64) (*models.Run, error)
	Finish(ctx context.Context, run *models.Run, summaryChars int, err error) error
}

type DispatcherConfig struct {
	MinWorkers     int
	MaxWorkers     int
	QueueSize      int
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// Manager runs summary requests on the worker pool and records each run.
type Manager struct {
	router     Router
	runs       RunRecorder
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

func NewManager(router Router, runs RunRecorder, cfg DispatcherConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		router:  router,
		runs:    runs,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, m, cfg.IdleTimeout, debugLogger(logger))
	return m
}

// Summarize queues the request behind the client's earlier ones and waits for
// its result. models.ErrNoInput is returned unchanged so callers can render
// an idle state.
func (m *Manager) Summarize(ctx context.Context, clientKey string, modality models.Modality, in models.RawInput) (*models.SummaryResult, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	run, err := m.runs.Start(ctx, modality, inputBytes(in))
	if err != nil {
		m.logger.Warn("record run start", zap.Error(err))
		run = nil
	}

	result, err := m.dispatch(ctx, clientKey, modality, in)

	if run != nil {
		summaryChars := 0
		if result != nil {
			summaryChars = len([]rune(result.Summary))
			result.RunID = run.ID
		}
		if finishErr := m.runs.Finish(context.WithoutCancel(ctx), run, summaryChars, err); finishErr != nil {
			m.logger.Warn("record run finish", zap.String("run_id", run.ID), zap.Error(finishErr))
		}
	}

	switch {
	case err == nil:
		m.logger.Info("summary produced",
			zap.String("modality", string(modality)),
			zap.String("client", clientKey),
			zap.Int("summary_chars", len(result.Summary)))
	case errors.Is(err, models.ErrNoInput):
	default:
		m.logger.Warn("summary failed",
			zap.String("modality", string(modality)),
			zap.String("client", clientKey),
			zap.String("kind", models.ErrorKind(err)),
			zap.Error(err))
	}
	return result, err
}

func (m *Manager) dispatch(ctx context.Context, clientKey string, modality models.Modality, in models.RawInput) (*models.SummaryResult, error) {
	resultCh := make(chan workerReturn, 1)
	job := Job{
		Type:      Summarize,
		ClientKey: clientKey,
		task: &summaryTask{
			ctx:      ctx,
			modality: modality,
			input:    in,
			resultCh: resultCh,
		},
	}
	if err := m.dispatcher.Submit(job); err != nil {
		return nil, err
	}
	select {
	case ret := <-resultCh:
		return ret.result, ret.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) handleSummary(task *summaryTask) {
	if task == nil {
		return
	}
	ctx := task.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	var ret workerReturn
	if err := ctx.Err(); err != nil {
		// caller gave up while the job was queued
		ret.err = err
	} else {
		ret.result, ret.err = m.router.Route(ctx, task.modality, task.input)
	}
	if task.resultCh != nil {
		task.resultCh <- ret
	}
}

// Stop shuts the dispatcher down; queued requests fail with ErrDispatcherStopped.
func (m *Manager) Stop() {
	m.dispatcher.Stop()
}

func inputBytes(in models.RawInput) int64 {
	switch {
	case in.Upload != nil:
		return in.Upload.Size
	case in.URL != "":
		return int64(len(in.URL))
	default:
		return int64(len(in.Text))
	}
}
