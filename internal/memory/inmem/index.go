// Package inmem is a process-local cosine index for single-instance deployments and tests.
package inmem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yungbote/quest-backend/internal/memory"
)

type Index struct {
	mu    sync.RWMutex
	names map[string]map[int][]float32
}

func New() *Index {
	return &Index{names: map[string]map[int][]float32{}}
}

func (ix *Index) Upsert(ctx context.Context, namespace string, chapterNumber int, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("inmem upsert: empty vector")
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ns, ok := ix.names[namespace]
	if !ok {
		ns = map[int][]float32{}
		ix.names[namespace] = ns
	}
	ns[chapterNumber] = cp
	return nil
}

func (ix *Index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]memory.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	ns := ix.names[namespace]
	out := make([]memory.Match, 0, len(ns))
	for number, v := range ns {
		if len(v) != len(vec) {
			continue
		}
		out = append(out, memory.Match{ChapterNumber: number, Score: cosine(vec, v)})
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ChapterNumber < out[j].ChapterNumber
		}
		return out[i].Score > out[j].Score
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (ix *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	ix.mu.Lock()
	delete(ix.names, namespace)
	ix.mu.Unlock()
	return nil
}

// Len reports the number of vectors in namespace.
func (ix *Index) Len(namespace string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.names[namespace])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
