package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/llm/provider"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type Clients struct {
	// Redis is nil when redis.addr is unset.
	Redis redis.UniversalClient

	Narrators *llm.Pool
	Summaries *llm.Pool
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config, catalog *locale.Catalog) (Clients, error) {
	log.Info("Wiring clients...")

	var rdb redis.UniversalClient
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("redis ping %s: %w", addr, err)
		}
	}

	narrators, err := buildGatewayPool(log, cfg.LLM, catalog, locale.PromptDMSystem)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init narrator gateways: %w", err)
	}
	summaries, err := buildGatewayPool(log, *cfg.SummaryLLM, catalog, locale.PromptDMSummarize)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init summary gateways: %w", err)
	}

	return Clients{Redis: rdb, Narrators: narrators, Summaries: summaries}, nil
}

func closeRedis(rdb redis.UniversalClient) {
	if rdb != nil {
		_ = rdb.Close()
	}
}

var newGateway = provider.New

// buildGatewayPool binds one gateway per locale to that locale's prompt file.
func buildGatewayPool(log *logger.Logger, cfg config.LLMConfig, catalog *locale.Catalog, prompt string) (*llm.Pool, error) {
	byLocale := map[string]llm.Gateway{}
	for _, loc := range catalog.Locales() {
		system, err := catalog.Prompt(loc, prompt)
		if err != nil {
			return nil, err
		}
		g, err := newGateway(cfg, system, log.With("locale", loc, "prompt", prompt))
		if err != nil {
			return nil, err
		}
		byLocale[loc] = g
	}
	return llm.NewPool(catalog.Fallback(), byLocale), nil
}
