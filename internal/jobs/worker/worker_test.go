package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type recordingStore struct {
	mu      sync.Mutex
	added   []int
	deleted []uuid.UUID
	block   chan struct{}
	fail    bool
	panics  bool
}

func (s *recordingStore) AddMemory(ctx context.Context, storyID uuid.UUID, ch *domain.Chapter) error {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, ch.Number)
	if s.fail {
		return errors.New("store down")
	}
	return nil
}

func (s *recordingStore) SearchMemories(context.Context, uuid.UUID, string, int) ([]memory.SearchResult, error) {
	return nil, nil
}

func (s *recordingStore) DeleteStoryMemories(ctx context.Context, storyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storyID)
	return nil
}

func TestDrainsQueuedJobsOnStop(t *testing.T) {
	store := &recordingStore{}
	w := NewMemoryWorker(logger.Nop(), store, Options{QueueSize: 8, Workers: 2})
	w.Start(context.Background())

	id := uuid.New()
	for i := 1; i <= 3; i++ {
		if !w.EnqueueAdd(id, &domain.Chapter{Number: i}) {
			t.Fatalf("EnqueueAdd(%d) rejected", i)
		}
	}
	if !w.EnqueueDelete(id) {
		t.Fatalf("EnqueueDelete rejected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(store.added) != 3 || len(store.deleted) != 1 {
		t.Fatalf("added=%v deleted=%v", store.added, store.deleted)
	}
	if w.EnqueueAdd(id, &domain.Chapter{Number: 4}) {
		t.Fatalf("enqueue after stop should be rejected")
	}
}

func TestDrainsAfterStartContextCancelled(t *testing.T) {
	store := &recordingStore{}
	w := NewMemoryWorker(logger.Nop(), store, Options{QueueSize: 8, Workers: 2})
	runCtx, cancelRun := context.WithCancel(context.Background())
	w.Start(runCtx)
	cancelRun()

	// turns still finishing during shutdown may enqueue after the signal
	id := uuid.New()
	if !w.EnqueueAdd(id, &domain.Chapter{Number: 1}) {
		t.Fatalf("EnqueueAdd rejected before Stop")
	}
	if !w.EnqueueDelete(id) {
		t.Fatalf("EnqueueDelete rejected before Stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(store.added) != 1 || len(store.deleted) != 1 {
		t.Fatalf("accepted jobs not run: added=%v deleted=%v", store.added, store.deleted)
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	store := &recordingStore{block: make(chan struct{})}
	w := NewMemoryWorker(logger.Nop(), store, Options{QueueSize: 1, Workers: 1})
	w.Start(context.Background())

	id := uuid.New()
	accepted := 0
	for i := 1; i <= 10; i++ {
		if w.EnqueueAdd(id, &domain.Chapter{Number: i}) {
			accepted++
		}
	}
	// one job may be in flight plus one buffered
	if accepted > 2 {
		t.Fatalf("accepted=%d, expected drops once the queue is full", accepted)
	}
	close(store.block)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestFailuresAndPanicsDoNotKillWorkers(t *testing.T) {
	store := &recordingStore{panics: true}
	w := NewMemoryWorker(logger.Nop(), store, Options{QueueSize: 4, Workers: 1})
	w.Start(context.Background())
	w.EnqueueAdd(uuid.New(), &domain.Chapter{Number: 1})
	w.EnqueueDelete(uuid.New())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("delete after panic not processed: %v", store.deleted)
	}
}
