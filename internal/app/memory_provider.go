package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/llm/provider"
	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/memory/inmem"
	"github.com/yungbote/quest-backend/internal/memory/qdrant"
	"github.com/yungbote/quest-backend/internal/memory/qdrantgrpc"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

var (
	newEmbedder        = provider.NewEmbedder
	newQdrantIndex     = qdrant.New
	newQdrantGRPCIndex = func(ctx context.Context, log *logger.Logger, cfg config.QdrantConfig) (memory.VectorIndex, func() error, error) {
		ix, err := qdrantgrpc.New(ctx, log, cfg)
		if err != nil {
			return nil, nil, err
		}
		return ix, ix.Close, nil
	}
)

type MemoryBootstrapErrorCode string

const (
	MemoryBootstrapErrorInvalidBackend      MemoryBootstrapErrorCode = "invalid_backend"
	MemoryBootstrapErrorMissingQdrantURL    MemoryBootstrapErrorCode = "missing_qdrant_url"
	MemoryBootstrapErrorInvalidQdrantURL    MemoryBootstrapErrorCode = "invalid_qdrant_url"
	MemoryBootstrapErrorMissingQdrantColl   MemoryBootstrapErrorCode = "missing_qdrant_collection"
	MemoryBootstrapErrorInvalidQdrantVector MemoryBootstrapErrorCode = "invalid_qdrant_vector_dim"
	MemoryBootstrapErrorQdrantConfigFailed  MemoryBootstrapErrorCode = "qdrant_config_failed"
	MemoryBootstrapErrorEmbedderInitFailed  MemoryBootstrapErrorCode = "embedder_init_failed"
	MemoryBootstrapErrorConnectFailed       MemoryBootstrapErrorCode = "connect_failed"
	MemoryBootstrapErrorProviderInitFailed  MemoryBootstrapErrorCode = "provider_init_failed"
	MemoryBootstrapErrorDimensionMismatch   MemoryBootstrapErrorCode = "dimension_mismatch"
)

type MemoryBootstrapError struct {
	Code    MemoryBootstrapErrorCode
	Backend string
	Cause   error
}

func (e *MemoryBootstrapError) Error() string {
	if e == nil {
		return "memory backend bootstrap failed"
	}
	return fmt.Sprintf("memory backend bootstrap failed (code=%s backend=%q): %v", e.Code, e.Backend, e.Cause)
}

func (e *MemoryBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveMemoryStore builds the configured memory backend. The returned closer
// is never nil.
func resolveMemoryStore(ctx context.Context, log *logger.Logger, cfg config.MemoryConfig, embCfg config.EmbeddingConfig) (memory.Store, func() error, error) {
	noClose := func() error { return nil }
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	if backend == "" || backend == config.MemoryNone {
		log.Info("Long-term memory disabled")
		return memory.Noop(), noClose, nil
	}

	embedder, err := newEmbedder(embCfg)
	if err != nil {
		return nil, noClose, &MemoryBootstrapError{Code: MemoryBootstrapErrorEmbedderInitFailed, Backend: backend, Cause: err}
	}

	log.Info(
		"Selecting memory backend",
		"backend", backend,
		"embedding_provider", embCfg.Provider,
		"embedding_model", embCfg.Model,
		"qdrant_url", cfg.Qdrant.URL,
		"qdrant_host", cfg.Qdrant.Host,
		"qdrant_collection", cfg.Qdrant.Collection,
	)

	var (
		index  memory.VectorIndex
		closer = noClose
	)
	switch backend {
	case config.MemoryInMem:
		index = inmem.New()

	case config.MemoryQdrant:
		if err := checkDimensions(cfg.Qdrant, embedder); err != nil {
			return nil, noClose, &MemoryBootstrapError{Code: MemoryBootstrapErrorDimensionMismatch, Backend: backend, Cause: err}
		}
		index, err = newQdrantIndex(ctx, log, qdrant.FromConfig(cfg.Qdrant))

	case config.MemoryQdrantGRPC:
		if err := checkDimensions(cfg.Qdrant, embedder); err != nil {
			return nil, noClose, &MemoryBootstrapError{Code: MemoryBootstrapErrorDimensionMismatch, Backend: backend, Cause: err}
		}
		var c func() error
		index, c, err = newQdrantGRPCIndex(ctx, log, cfg.Qdrant)
		if c != nil {
			closer = c
		}

	default:
		err := &MemoryBootstrapError{
			Code:    MemoryBootstrapErrorInvalidBackend,
			Backend: backend,
			Cause:   fmt.Errorf("unsupported memory backend %q", backend),
		}
		log.Error("Memory backend selection failed", "backend", backend, "error_code", err.Code, "error", err)
		return nil, noClose, err
	}
	if err != nil {
		classified := classifyMemoryBootstrapError(backend, err)
		log.Error(
			"Memory backend bootstrap failed",
			"backend", backend,
			"error_code", memoryBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, noClose, classified
	}

	store := instrumentMemoryStore(log, backend, memory.NewEmbeddingStore(log, embedder, index))
	return store, closer, nil
}

// checkDimensions rejects an embedder whose vectors cannot fit the collection.
func checkDimensions(q config.QdrantConfig, e llm.Embedder) error {
	if q.VectorDim > 0 && e.Dimensions() > 0 && q.VectorDim != e.Dimensions() {
		return fmt.Errorf("memory.qdrant.vector_dim=%d but embedder produces %d", q.VectorDim, e.Dimensions())
	}
	return nil
}

func classifyMemoryBootstrapError(backend string, err error) error {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return &MemoryBootstrapError{Code: MemoryBootstrapErrorConnectFailed, Backend: backend, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &MemoryBootstrapError{Code: MemoryBootstrapErrorConnectFailed, Backend: backend, Cause: err}
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "connection refused") || strings.Contains(errLower, "unavailable") {
		return &MemoryBootstrapError{Code: MemoryBootstrapErrorConnectFailed, Backend: backend, Cause: err}
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		code := MemoryBootstrapErrorQdrantConfigFailed
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = MemoryBootstrapErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = MemoryBootstrapErrorInvalidQdrantURL
		case qdrant.ConfigErrorMissingCollection:
			code = MemoryBootstrapErrorMissingQdrantColl
		case qdrant.ConfigErrorInvalidVectorDim:
			code = MemoryBootstrapErrorInvalidQdrantVector
		}
		return &MemoryBootstrapError{Code: code, Backend: backend, Cause: err}
	}

	return &MemoryBootstrapError{Code: MemoryBootstrapErrorProviderInitFailed, Backend: backend, Cause: err}
}

func memoryBootstrapErrorCode(err error) MemoryBootstrapErrorCode {
	var bootstrapErr *MemoryBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return MemoryBootstrapErrorConnectFailed
}
