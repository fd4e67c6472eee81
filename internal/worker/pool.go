package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type workerMeta struct {
	id        int
	ch        chan Job
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
	manager  *Manager
	log      *zap.Logger
	quit     chan struct{}
	stopped  bool
}

const defaultWorkerIdle = 30 * time.Second

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration, manager *Manager, log *zap.Logger) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		manager:  manager,
		log:      log,
		quit:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// spawnWorker adds a new idle worker, used for warm-up
func (p *jobChannelPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max || p.stopped {
		p.mu.Unlock()
		return
	}
	worker, meta := p.newWorkerLocked()
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	worker.Start()
}

func (p *jobChannelPool) newWorkerLocked() (*Worker, *workerMeta) {
	p.nextID++
	worker := NewWorker(p.nextID, p, p.manager)
	meta := &workerMeta{id: p.nextID, ch: worker.jobChannel}
	p.metadata[worker.jobChannel] = meta
	p.running++
	return worker, meta
}

// acquire gets an idle worker, or spawns a new one; it blocks while all
// workers are busy. A nil channel means the pool was stopped.
func (p *jobChannelPool) acquire() chan Job {
	for {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return nil
		}
		// get an idle worker
		if meta := p.popIdleLocked(); meta != nil {
			p.mu.Unlock()
			return meta.ch
		}
		// need to add a new worker (can't call spawnWorker because of p.mu)
		if p.running < p.max {
			worker, _ := p.newWorkerLocked()
			p.mu.Unlock()
			worker.Start()
			return worker.jobChannel
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// Release puts a worker back into the idle queue. It reports false when the
// worker should exit instead.
func (p *jobChannelPool) Release(ch chan Job) bool {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded {
		p.mu.Unlock()
		return false
	}
	if p.stopped {
		meta.discarded = true
		p.mu.Unlock()
		return false
	}
	if meta.enqueued {
		p.mu.Unlock()
		return true
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
	return true
}

// retire deletes a worker
func (p *jobChannelPool) retire(ch chan Job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *jobChannelPool) workerID(ch chan Job) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if meta, ok := p.metadata[ch]; ok {
		return meta.id
	}
	return 0
}

// popIdleLocked returns an idle worker if the pool has one
func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

// purgeStaleWorkers calls shutdownExpired every expiry period
func (p *jobChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.shutdownExpired()
		}
	}
}

// shutdownExpired retires idle workers beyond min that outlived expiry
func (p *jobChannelPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0] // keep the original array
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- Job{Type: Stop}
	}
	if len(stale) > 0 {
		p.log.Debug("idle workers retired", zap.Int("count", len(stale)))
	}
}

// stop retires idle workers and wakes anyone waiting in acquire. Busy
// workers exit after their current job.
func (p *jobChannelPool) stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	idle := p.idle
	p.idle = nil
	for _, meta := range idle {
		meta.discarded = true
	}
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, meta := range idle {
		meta.ch <- Job{Type: Stop}
	}
}
