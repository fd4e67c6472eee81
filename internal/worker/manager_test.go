package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"omnisum/internal/models"
)

func TestManagerSummarizeRecordsRun(t *testing.T) {
	runs := newMemoryRuns()
	manager := NewManager(&fakeRouter{}, runs, DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 10}, nil)
	defer manager.Stop()

	res, err := manager.Summarize(context.Background(), "client-a", models.ModalityText, models.RawInput{Text: "hello"})
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if res.Summary != "sum: hello" || res.RunID == "" {
		t.Fatalf("unexpected result: %#v", res)
	}
	run := runs.get(res.RunID)
	if run == nil || run.Status != models.RunSucceeded || run.SummaryChars != len("sum: hello") || run.InputBytes != 5 {
		t.Fatalf("run not recorded: %#v", run)
	}
}

func TestManagerNoInputIsIdle(t *testing.T) {
	runs := newMemoryRuns()
	manager := NewManager(&fakeRouter{}, runs, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, nil)
	defer manager.Stop()

	_, err := manager.Summarize(context.Background(), "client-a", models.ModalityAudio, models.RawInput{})
	if !errors.Is(err, models.ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	if got := runs.statuses(); len(got) != 1 || got[0] != models.RunIdle {
		t.Fatalf("expected one idle run, got %v", got)
	}
}

func TestManagerRouteErrorIsFailedRun(t *testing.T) {
	runs := newMemoryRuns()
	router := &fakeRouter{err: models.Wrap(models.ErrExternalService, errors.New("boom"))}
	manager := NewManager(router, runs, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, nil)
	defer manager.Stop()

	_, err := manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "x"})
	if !errors.Is(err, models.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if got := runs.statuses(); len(got) != 1 || got[0] != models.RunFailed {
		t.Fatalf("expected one failed run, got %v", got)
	}
}

func TestDispatcherJobOrder(t *testing.T) {
	var mu sync.Mutex
	order := make([]string, 0, 2)
	router := &fakeRouter{onRun: func(text string) {
		mu.Lock()
		order = append(order, text)
		mu.Unlock()
	}}
	manager := NewManager(router, newMemoryRuns(), DispatcherConfig{MinWorkers: 2, MaxWorkers: 2, QueueSize: 10}, nil)
	defer manager.Stop()

	for _, text := range []string{"first", "second"} {
		if _, err := manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: text}); err != nil {
			t.Fatalf("Summarize (%s) error: %v", text, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected execution order [first second], got %v", order)
	}
}

func TestDispatcherQueuesWhenWorkerBusy(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	router := &fakeRouter{block: block, started: started}
	manager := NewManager(router, newMemoryRuns(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, nil)
	defer manager.Stop()

	done1 := make(chan struct{})
	done2 := make(chan struct{})
	go func() {
		_, _ = manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "first"})
		close(done1)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("first job did not start")
	}
	go func() {
		_, _ = manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "second"})
		close(done2)
	}()

	select {
	case <-done2:
		t.Fatalf("second job finished while the only worker was busy")
	case <-time.After(100 * time.Millisecond):
	}
	close(block)

	select {
	case <-done1:
	case <-time.After(time.Second):
		t.Fatalf("first job did not complete after unblocking")
	}
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatalf("second job did not complete after first")
	}
}

func TestManagerHighLoadAllowsOtherClients(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	router := &fakeRouter{block: block, started: started, blockOn: "slow"}
	// room for every concurrent client below; Submit never blocks
	manager := NewManager(router, newMemoryRuns(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 3, QueueSize: 16}, nil)
	defer manager.Stop()

	slowDone := make(chan error, 1)
	go func() {
		_, err := manager.Summarize(context.Background(), "slow-client", models.ModalityText, models.RawInput{Text: "slow"})
		slowDone <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("slow task did not start")
	}

	fastErr := make(chan error, 1)
	go func() {
		_, err := manager.Summarize(context.Background(), "fast-client", models.ModalityText, models.RawInput{Text: "fast"})
		fastErr <- err
	}()

	select {
	case err := <-fastErr:
		if err != nil {
			t.Fatalf("fast summarize error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fast summarize blocked but should complete")
	}

	close(block)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow summarize error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 3; i <= 15; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", id)
			if _, err := manager.Summarize(context.Background(), key, models.ModalityText, models.RawInput{Text: "multi"}); err != nil {
				t.Errorf("summarize %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestDispatcherBusyWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	router := &fakeRouter{block: block, started: started}
	manager := NewManager(router, newMemoryRuns(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, nil)
	defer manager.Stop()
	defer close(block)

	submit := func(text string) error {
		return manager.dispatcher.Submit(Job{
			Type:      Summarize,
			ClientKey: "c",
			task: &summaryTask{
				ctx:      context.Background(),
				modality: models.ModalityText,
				input:    models.RawInput{Text: text},
				resultCh: make(chan workerReturn, 1),
			},
		})
	}
	if err := submit("first"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("first job did not start")
	}

	busy := 0
	for i := 0; i < 5; i++ {
		if err := submit("more"); errors.Is(err, ErrDispatcherBusy) {
			busy++
		}
		time.Sleep(10 * time.Millisecond)
	}
	if busy == 0 {
		t.Fatalf("expected ErrDispatcherBusy once the queue filled up")
	}
}

func TestManagerStopFailsQueuedRequests(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	router := &fakeRouter{block: block, started: started, blockOn: "first"}
	manager := NewManager(router, newMemoryRuns(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, nil)

	go func() {
		_, _ = manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "first"})
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("first job did not start")
	}

	queued := make(chan error, 1)
	go func() {
		_, err := manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "second"})
		queued <- err
	}()
	time.Sleep(50 * time.Millisecond)

	manager.Stop()
	select {
	case err := <-queued:
		if !errors.Is(err, ErrDispatcherStopped) {
			t.Fatalf("expected ErrDispatcherStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("queued request not failed on stop")
	}
	close(block)

	if _, err := manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "late"}); !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("expected ErrDispatcherStopped after stop, got %v", err)
	}
}

func TestStopAnswersEveryAcceptedJob(t *testing.T) {
	for round := 0; round < 20; round++ {
		manager := NewManager(&fakeRouter{}, newMemoryRuns(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 64}, nil)

		var wg sync.WaitGroup
		accepted := make(chan chan workerReturn, 32)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				resultCh := make(chan workerReturn, 1)
				err := manager.dispatcher.Submit(Job{
					Type:      Summarize,
					ClientKey: fmt.Sprintf("c-%d", id%4),
					task: &summaryTask{
						ctx:      context.Background(),
						modality: models.ModalityText,
						input:    models.RawInput{Text: "x"},
						resultCh: resultCh,
					},
				})
				if err == nil {
					accepted <- resultCh
				}
			}(i)
		}
		manager.Stop()
		wg.Wait()
		close(accepted)

		for resultCh := range accepted {
			select {
			case <-resultCh:
			case <-time.After(2 * time.Second):
				t.Fatalf("round %d: accepted job never answered after stop", round)
			}
		}
	}
}

func TestManagerRequestTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	router := &fakeRouter{block: block}
	manager := NewManager(router, newMemoryRuns(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10, RequestTimeout: 50 * time.Millisecond}, nil)
	defer manager.Stop()

	_, err := manager.Summarize(context.Background(), "c", models.ModalityText, models.RawInput{Text: "hang"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// --- helpers ---

type fakeRouter struct {
	err     error
	onRun   func(text string)
	block   chan struct{}
	started chan struct{}
	blockOn string // block only for this text; empty blocks every call
	once    sync.Once
}

func (f *fakeRouter) Route(ctx context.Context, modality models.Modality, in models.RawInput) (*models.SummaryResult, error) {
	if !in.HasText() && !in.HasURL() && !in.HasUpload() {
		return nil, models.ErrNoInput
	}
	if f.onRun != nil {
		f.onRun(in.Text)
	}
	if f.block != nil && (f.blockOn == "" || f.blockOn == in.Text) {
		f.once.Do(func() {
			if f.started != nil {
				close(f.started)
			}
		})
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.SummaryResult{Modality: modality, Summary: "sum: " + in.Text}, nil
}

type memoryRuns struct {
	mu   sync.Mutex
	runs []*models.Run
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{}
}

func (m *memoryRuns) Start(ctx context.Context, modality models.Modality, inputBytes int64) (*models.Run, error) {
	run := &models.Run{ID: uuid.NewString(), Modality: modality, Status: models.RunRunning, InputBytes: inputBytes, StartedAt: time.Now()}
	m.mu.Lock()
	m.runs = append(m.runs, run)
	m.mu.Unlock()
	return run, nil
}

func (m *memoryRuns) Finish(ctx context.Context, run *models.Run, summaryChars int, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.SummaryChars = summaryChars
	switch {
	case err == nil:
		run.Status = models.RunSucceeded
	case errors.Is(err, models.ErrNoInput):
		run.Status = models.RunIdle
	default:
		run.Status = models.RunFailed
		run.ErrorKind = models.ErrorKind(err)
	}
	return nil
}

func (m *memoryRuns) get(id string) *models.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *memoryRuns) statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r.Status)
	}
	return out
}
