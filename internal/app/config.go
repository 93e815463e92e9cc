package app

import (
	"fmt"

	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

// LoadConfig reads the config file and env overrides and logs the backends in use.
func LoadConfig(log *logger.Logger) (*config.Config, error) {
	log.Info("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.Info("Configuration loaded",
		"env", cfg.Env,
		"db_driver", cfg.Database.Driver,
		"llm_provider", cfg.LLM.Provider,
		"summary_llm_provider", cfg.SummaryLLM.Provider,
		"memory_backend", cfg.Memory.Backend,
		"redis", cfg.Redis.Addr != "",
		"default_locale", cfg.Locale.Default,
	)
	return cfg, nil
}
