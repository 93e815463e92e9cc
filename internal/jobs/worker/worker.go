// Package worker drains best-effort memory side effects off the turn path.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type JobKind string

const (
	JobAddMemory      JobKind = "add_memory"
	JobDeleteMemories JobKind = "delete_memories"
)

type Job struct {
	Kind    JobKind
	StoryID uuid.UUID
	Chapter *domain.Chapter
}

type Options struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// MemoryWorker runs memory jobs on a fixed pool. Enqueue never blocks; a full
// queue drops the job.
type MemoryWorker struct {
	log     *logger.Logger
	store   memory.Store
	opts    Options
	queue   chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewMemoryWorker(baseLog *logger.Logger, store memory.Store, opts Options) *MemoryWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	return &MemoryWorker{
		log:   baseLog.With("component", "MemoryWorker"),
		store: store,
		opts:  opts,
		queue: make(chan Job, opts.QueueSize),
	}
}

// Start launches the pool. Workers keep ctx's values but not its cancellation:
// they exit once Stop closes the queue and every accepted job has run.
func (w *MemoryWorker) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	w.log.Info("Starting memory worker pool", "workers", w.opts.Workers, "queue_size", w.opts.QueueSize)
	for i := 0; i < w.opts.Workers; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i+1)
	}
}

// EnqueueAdd schedules indexing of ch. It reports whether the job was accepted.
func (w *MemoryWorker) EnqueueAdd(storyID uuid.UUID, ch *domain.Chapter) bool {
	return w.enqueue(Job{Kind: JobAddMemory, StoryID: storyID, Chapter: ch})
}

func (w *MemoryWorker) EnqueueDelete(storyID uuid.UUID) bool {
	return w.enqueue(Job{Kind: JobDeleteMemories, StoryID: storyID})
}

func (w *MemoryWorker) enqueue(job Job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.log.Warn("Memory job dropped: worker stopped", "kind", job.Kind, "story_id", job.StoryID)
		return false
	}
	select {
	case w.queue <- job:
		return true
	default:
		w.log.Warn("Memory job dropped: queue full", "kind", job.Kind, "story_id", job.StoryID, "queue_size", w.opts.QueueSize)
		return false
	}
}

// Stop closes the queue and waits for queued jobs to drain, or for ctx.
func (w *MemoryWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.log.Info("Memory worker pool drained")
		return nil
	case <-ctx.Done():
		w.log.Warn("Memory worker drain timed out", "pending", len(w.queue))
		return fmt.Errorf("memory worker drain: %w", ctx.Err())
	}
}

func (w *MemoryWorker) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	for job := range w.queue {
		w.run(ctx, workerID, job)
	}
	w.log.Debug("Memory worker loop stopped", "worker_id", workerID)
}

func (w *MemoryWorker) run(ctx context.Context, workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Memory job panic", "worker_id", workerID, "kind", job.Kind, "story_id", job.StoryID, "panic", r)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()

	var err error
	switch job.Kind {
	case JobAddMemory:
		err = w.store.AddMemory(jobCtx, job.StoryID, job.Chapter)
	case JobDeleteMemories:
		err = w.store.DeleteStoryMemories(jobCtx, job.StoryID)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}
	if err != nil {
		w.log.Warn("Memory job failed", "worker_id", workerID, "kind", job.Kind, "story_id", job.StoryID, "error", err)
	}
}
