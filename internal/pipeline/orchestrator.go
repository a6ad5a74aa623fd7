package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dgallion1/pdfocr/internal/config"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("pipeline is shutting down")
)

// Orchestrator manages the OCR job queue.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	deps  Deps
	log   *slog.Logger
	cfg   config.Config
	cron  *cron.Cron

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards stopped and every send on queue, so Stop never closes the
	// queue under a Submit.
	mu      sync.Mutex
	stopped bool
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, deps Deps, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		deps:  deps,
		log:   log,
		cfg:   cfg,
		cron:  cron.New(),
	}
}

// Start launches worker goroutines and the job cleanup schedule.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.deps, o.log, o.cfg.PageTimeout)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	_, err := o.cron.AddFunc("@every 5m", func() {
		if n := o.jobs.Cleanup(); n > 0 {
			o.log.Info("expired jobs removed", "count", n)
		}
	})
	if err != nil {
		o.log.Error("schedule job cleanup", "error", err)
	}
	o.cron.Start()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	<-o.cron.Stop().Done()
	if o.cancel != nil {
		o.cancel()
	}

	o.mu.Lock()
	if !o.stopped {
		o.stopped = true
		close(o.queue)
	}
	o.mu.Unlock()

	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.AddError("shutting down")
		job.ReleaseData()
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.ReleaseData()
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// DeleteJob forgets a job. A running job finishes but its result is dropped.
func (o *Orchestrator) DeleteJob(id string) bool {
	return o.jobs.Delete(id)
}

// ListJobs returns snapshots of all known jobs, newest first.
func (o *Orchestrator) ListJobs() []JobSnapshot {
	return o.jobs.List()
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats counts known jobs by status.
func (o *Orchestrator) Stats() map[JobStatus]int {
	counts := map[JobStatus]int{}
	for _, s := range o.jobs.List() {
		counts[s.Status]++
	}
	return counts
}
