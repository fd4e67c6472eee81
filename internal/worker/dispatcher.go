package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDispatcherBusy    = errors.New("dispatcher queue full")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

type clientQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher hands jobs to pooled workers, taking one job per client in turn
// so a single busy client cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs to get into the dispatcher
	Manager  *Manager
	log      *zap.Logger

	mu        sync.Mutex
	queues    map[string]*clientQueue // job queue for each client
	ready     *list.List              // round-robin queue of client keys
	positions map[string]*list.Element

	// held for reading across a submit so Stop cannot slip in between the
	// quit check and the send
	submitMu sync.RWMutex
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager, log)

	d := &Dispatcher{
		queues:    make(map[string]*clientQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, queueSize),
		Manager:   manager,
		log:       log,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	// warm up workers
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues a job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()
	select {
	case <-d.quit:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Stop halts dispatching, fails every job still queued and retires idle workers.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.submitMu.Lock()
		close(d.quit)
		d.submitMu.Unlock()
		d.pool.stop()
		<-d.done
		d.failPending()
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		// dispatch one job of the client at the front of the ready queue
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // block until work arrives
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			return
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	key := job.ClientKey

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[key]
	if q == nil {
		q = &clientQueue{}
		d.queues[key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		// client already waiting for its turn
		return
	}
	q.enqueued = true
	d.positions[key] = d.ready.PushBack(key)
}

// dispatchOne takes the next job of the first client in line and hands it
// to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// last job of this client, leave the line
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		// back of the line
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		failJob(job, ErrDispatcherStopped)
		return false
	}
	d.log.Debug("assign job",
		zap.String("type", string(job.Type)),
		zap.String("client", key),
		zap.Int("worker", d.pool.workerID(workerChan)))
	workerChan <- job
	return true
}

func (d *Dispatcher) failPending() {
	for drained := false; !drained; {
		select {
		case job := <-d.JobQueue:
			failJob(job, ErrDispatcherStopped)
		default:
			drained = true
		}
	}
	d.mu.Lock()
	queues := d.queues
	d.queues = make(map[string]*clientQueue)
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()
	for _, q := range queues {
		for _, job := range q.jobs {
			failJob(job, ErrDispatcherStopped)
		}
	}
}

func failJob(job Job, err error) {
	if job.task != nil && job.task.resultCh != nil {
		job.task.resultCh <- workerReturn{err: err}
	}
}
