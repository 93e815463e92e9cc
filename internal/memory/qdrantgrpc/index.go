// Package qdrantgrpc indexes chapter memories through the official Qdrant gRPC client.
package qdrantgrpc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

const (
	payloadNamespaceKey = "_q_namespace"
	payloadChapterKey   = "chapter_number"
)

var pointIDNamespaceUUID = uuid.MustParse("6f0f8a7e-3c55-4d43-9b7e-2a1c9d35f0b4")

// pointsClient is the subset of *qdrant.Client the index needs.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

type Index struct {
	log        *logger.Logger
	client     pointsClient
	collection string
	nsPrefix   string
	dim        int
}

func New(ctx context.Context, log *logger.Logger, cfg config.QdrantConfig) (*Index, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("memory.qdrant.host is required")
	}
	port := cfg.GRPCPort
	if port <= 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant grpc connect: %w", err)
	}
	ix, err := newIndex(ctx, log, client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return ix, nil
}

func newIndex(ctx context.Context, log *logger.Logger, client pointsClient, cfg config.QdrantConfig) (*Index, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("memory.qdrant.collection is required")
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("invalid memory.qdrant.vector_dim=%d", cfg.VectorDim)
	}
	prefix := strings.TrimSpace(cfg.NamespacePrefix)
	if prefix == "" {
		prefix = "quest"
	}
	ix := &Index{
		log:        log.With("service", "QdrantGRPCMemoryIndex"),
		client:     client,
		collection: strings.TrimSpace(cfg.Collection),
		nsPrefix:   prefix,
		dim:        cfg.VectorDim,
	}
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}
	ix.log.Info("Qdrant gRPC memory index selected", "collection", ix.collection, "vector_dim", ix.dim)
	return ix, nil
}

func (ix *Index) ensureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(ix.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	if _, err := ix.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      payloadNamespaceKey,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		return fmt.Errorf("qdrant create field index: %w", err)
	}
	return nil
}

func (ix *Index) Upsert(ctx context.Context, namespace string, chapterNumber int, vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("qdrant upsert: dimension mismatch: expected=%d got=%d", ix.dim, len(vec))
	}
	ns := ix.qualify(namespace)
	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(pointID(ns, chapterNumber)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadNamespaceKey: ns,
				payloadChapterKey:   chapterNumber,
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (ix *Index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]memory.Match, error) {
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("qdrant query: dimension mismatch: expected=%d got=%d", ix.dim, len(vec))
	}
	if topK <= 0 {
		topK = 3
	}
	points, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(vec...),
		Filter:         namespaceFilter(ix.qualify(namespace)),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	out := make([]memory.Match, 0, len(points))
	for _, p := range points {
		v, ok := p.GetPayload()[payloadChapterKey]
		if !ok {
			continue
		}
		out = append(out, memory.Match{ChapterNumber: int(v.GetIntegerValue()), Score: float64(p.GetScore())})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (ix *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(namespaceFilter(ix.qualify(namespace))),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete namespace: %w", err)
	}
	return nil
}

func (ix *Index) Close() error { return ix.client.Close() }

func (ix *Index) qualify(namespace string) string {
	return ix.nsPrefix + ":" + strings.TrimSpace(namespace)
}

func namespaceFilter(ns string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadNamespaceKey, ns)}}
}

func pointID(ns string, chapterNumber int) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(fmt.Sprintf("%s|%d", ns, chapterNumber))).String()
}
