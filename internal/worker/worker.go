package worker

import "go.uber.org/zap"

// Worker owns one job channel and runs jobs until told to stop.
type Worker struct {
	id         int
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		defer w.pool.retire(w.jobChannel)
		for job := range w.jobChannel {
			switch job.Type {
			case Summarize:
				w.manager.handleSummary(job.task)
			case Stop:
				w.pool.log.Debug("worker stopped", zap.Int("worker", w.id))
				return
			}
			if !w.pool.Release(w.jobChannel) {
				return
			}
		}
	}()
}
