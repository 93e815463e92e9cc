package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/quest-backend/internal/platform/envutil"
)

// UnmarshalYAML accepts "90s" strings. Bare integers are seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if value.ShortTag() == "!!int" {
		var secs int64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must look like \"5s\": %w", err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: D(5 * time.Second),
			ShutdownTimeout:   D(15 * time.Second),
			MaxRequestBytes:   1 << 20,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
		},
		Auth: AuthConfig{
			APIKeyHeader: "X-API-KEY",
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			AutoMigrate:     true,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: D(30 * time.Minute),
			SlowThreshold:   D(time.Second),
		},
		LLM: LLMConfig{
			Provider:         ProviderAnthropic,
			Model:            "claude-3-7-sonnet-20250219",
			MaxTokens:        1024,
			Temperature:      1,
			Timeout:          D(60 * time.Second),
			MaxRetries:       0,
			RetryBaseDelay:   D(500 * time.Millisecond),
			AnthropicVersion: "2023-06-01",
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderMock,
			Dimensions: 1024,
			Timeout:    D(30 * time.Second),
		},
		Memory: MemoryConfig{
			Backend:       MemoryNone,
			TopN:          3,
			QueueSize:     256,
			Workers:       2,
			JobTimeout:    D(30 * time.Second),
			SearchTimeout: D(5 * time.Second),
			Qdrant: QdrantConfig{
				GRPCPort:        6334,
				Collection:      "quest_chapters",
				NamespacePrefix: "story",
				Timeout:         D(10 * time.Second),
			},
		},
		Story: StoryConfig{
			OpeningDecision: "Wake up!",
			TitleMaxLen:     256,
			Tokenizer:       "cl100k_base",
			LockWait:        D(2 * time.Second),
		},
		Redis: RedisConfig{
			LockTTL: D(90 * time.Second),
		},
		Locale: LocaleConfig{Default: "en"},
	}
}

// Load reads QUEST_CONFIG_PATH, or ./config/config.yaml when present, then
// applies environment overrides. A missing file means defaults plus env.
func Load() (*Config, error) {
	cfgPath := strings.TrimSpace(os.Getenv("QUEST_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	return LoadFile(cfgPath)
}

func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("QUEST_HTTP_ADDR", cfg.HTTP.Addr)
	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}

	cfg.Auth.APIKeyHeader = envutil.String("API_KEY_HEADER_NAME", cfg.Auth.APIKeyHeader)
	cfg.Auth.APIKey = envutil.String("API_KEY", cfg.Auth.APIKey)
	cfg.Auth.APIKeyHash = envutil.String("API_KEY_HASH", cfg.Auth.APIKeyHash)
	cfg.Auth.APIKeyDisabled = envutil.Bool("IS_API_KEY_AUTH_DISABLED", cfg.Auth.APIKeyDisabled)
	cfg.Auth.JWTSecret = envutil.String("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.EmailHeader = envutil.String("AUTH_EMAIL_HEADER", cfg.Auth.EmailHeader)

	cfg.Database.Driver = envutil.String("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envutil.String("DATABASE_DSN", cfg.Database.DSN)
	cfg.Database.AutoMigrate = envutil.Bool("DATABASE_AUTO_MIGRATE", cfg.Database.AutoMigrate)

	cfg.LLM.Provider = envutil.String("LLM_CLIENT_TYPE", cfg.LLM.Provider)
	cfg.LLM.Model = envutil.String("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = envutil.String("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = envutil.String("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.MaxRetries = envutil.Int("LLM_MAX_RETRIES", cfg.LLM.MaxRetries)
	cfg.LLM.Timeout = D(envutil.Duration("LLM_TIMEOUT", cfg.LLM.Timeout.Duration))
	if cfg.LLM.APIKey == "" {
		switch normalizeProvider(cfg.LLM.Provider) {
		case ProviderAnthropic:
			cfg.LLM.APIKey = envutil.String("ANTHROPIC_API_KEY", "")
		case ProviderOpenAI, ProviderOAIHTTP:
			cfg.LLM.APIKey = envutil.String("OPENAI_API_KEY", "")
		}
	}

	cfg.Embedding.Provider = envutil.String("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = envutil.String("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = envutil.String("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = envutil.String("EMBEDDING_API_KEY", cfg.Embedding.APIKey)

	cfg.Memory.Backend = envutil.String("MEMORY_BACKEND", cfg.Memory.Backend)
	cfg.Memory.Workers = envutil.Int("MEMORY_WORKERS", cfg.Memory.Workers)
	cfg.Memory.Qdrant.URL = envutil.String("QDRANT_URL", cfg.Memory.Qdrant.URL)
	cfg.Memory.Qdrant.Host = envutil.String("QDRANT_HOST", cfg.Memory.Qdrant.Host)
	cfg.Memory.Qdrant.APIKey = envutil.String("QDRANT_API_KEY", cfg.Memory.Qdrant.APIKey)
	cfg.Memory.Qdrant.Collection = envutil.String("QDRANT_COLLECTION", cfg.Memory.Qdrant.Collection)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Locale.Default = envutil.String("DEFAULT_LOCALE", cfg.Locale.Default)
}

func normalizeProvider(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "anthropic", "claude":
		return ProviderAnthropic
	case "oai_http", "openai_http":
		return ProviderOAIHTTP
	case "openai", "openai_sdk", "gateway":
		return ProviderOpenAI
	case "mock":
		return ProviderMock
	default:
		return strings.ToLower(strings.TrimSpace(p))
	}
}

func normalize(cfg *Config) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	cfg.LLM.Provider = normalizeProvider(cfg.LLM.Provider)
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")
	if cfg.LLM.Timeout.Duration <= 0 {
		cfg.LLM.Timeout = D(60 * time.Second)
	}
	if cfg.LLM.MaxRetries < 0 {
		cfg.LLM.MaxRetries = 0
	}
	if cfg.SummaryLLM == nil {
		cp := cfg.LLM
		cfg.SummaryLLM = &cp
	} else {
		s := cfg.SummaryLLM
		s.Provider = normalizeProvider(s.Provider)
		if s.Provider == "" {
			s.Provider = cfg.LLM.Provider
		}
		if s.Model == "" {
			s.Model = cfg.LLM.Model
		}
		if s.APIKey == "" {
			s.APIKey = cfg.LLM.APIKey
		}
		if s.BaseURL == "" {
			s.BaseURL = cfg.LLM.BaseURL
		}
		if s.MaxTokens <= 0 {
			s.MaxTokens = cfg.LLM.MaxTokens
		}
		if s.Timeout.Duration <= 0 {
			s.Timeout = cfg.LLM.Timeout
		}
		if s.AnthropicVersion == "" {
			s.AnthropicVersion = cfg.LLM.AnthropicVersion
		}
	}

	cfg.Embedding.Provider = normalizeProvider(cfg.Embedding.Provider)
	cfg.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Embedding.BaseURL), "/")
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == cfg.LLM.Provider {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == cfg.LLM.Provider {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	cfg.Memory.Backend = strings.ToLower(strings.TrimSpace(cfg.Memory.Backend))
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = MemoryNone
	}
	if cfg.Memory.TopN <= 0 {
		cfg.Memory.TopN = 3
	}
	if cfg.Memory.Workers <= 0 {
		cfg.Memory.Workers = 1
	}
	if cfg.Memory.QueueSize <= 0 {
		cfg.Memory.QueueSize = 64
	}
	if cfg.Memory.Qdrant.VectorDim <= 0 {
		cfg.Memory.Qdrant.VectorDim = cfg.Embedding.Dimensions
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "postgresql" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Story.TitleMaxLen <= 0 {
		cfg.Story.TitleMaxLen = 256
	}
	if strings.TrimSpace(cfg.Story.OpeningDecision) == "" {
		cfg.Story.OpeningDecision = "Wake up!"
	}
	if cfg.Auth.APIKeyHeader == "" {
		cfg.Auth.APIKeyHeader = "X-API-KEY"
	}
	if cfg.Locale.Default == "" {
		cfg.Locale.Default = "en"
	}
	if minTTL := minLockTTL(cfg); cfg.Redis.LockTTL.Duration < minTTL {
		cfg.Redis.LockTTL = D(minTTL)
	}
}

// minLockTTL is the longest a turn can hold its story lock: the memory search,
// one summary call per recalled chapter and the narrator call, retries
// included, plus slack for the persisting transaction.
func minLockTTL(cfg *Config) time.Duration {
	ttl := cfg.LLM.Timeout.Duration*time.Duration(cfg.LLM.MaxRetries+1) + 10*time.Second
	if !cfg.Memory.Enabled() {
		return ttl
	}
	search := cfg.Memory.SearchTimeout.Duration
	if search <= 0 {
		search = 5 * time.Second
	}
	ttl += search
	if s := cfg.SummaryLLM; s != nil {
		perCall := s.Timeout.Duration * time.Duration(s.MaxRetries+1)
		ttl += perCall * time.Duration(cfg.Memory.TopN)
	}
	return ttl
}

func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider))
		}
	case ProviderOAIHTTP:
		if c.LLM.BaseURL == "" {
			errs = append(errs, errors.New("llm.base_url is required for provider oai_http"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.Model == "" && c.LLM.Provider != ProviderMock {
		errs = append(errs, errors.New("llm.model is required"))
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Memory.Backend {
	case MemoryNone:
	case MemoryInMem, MemoryQdrant, MemoryQdrantGRPC:
		switch c.Embedding.Provider {
		case ProviderMock:
		case ProviderOAIHTTP, ProviderOpenAI:
			if c.Embedding.Model == "" {
				errs = append(errs, errors.New("embedding.model is required"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
		}
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, errors.New("embedding.dimensions must be positive"))
		}
		if c.Memory.Backend == MemoryQdrant && c.Memory.Qdrant.URL == "" {
			errs = append(errs, errors.New("memory.qdrant.url is required for backend qdrant"))
		}
		if c.Memory.Backend == MemoryQdrantGRPC && c.Memory.Qdrant.Host == "" {
			errs = append(errs, errors.New("memory.qdrant.host is required for backend qdrant_grpc"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown memory.backend %q", c.Memory.Backend))
	}

	if !c.Auth.APIKeyDisabled && c.Auth.APIKey == "" && c.Auth.APIKeyHash == "" {
		errs = append(errs, errors.New("auth.api_key or auth.api_key_hash is required unless auth.api_key_disabled"))
	}
	if c.Auth.JWTSecret == "" && c.Auth.EmailHeader == "" {
		errs = append(errs, errors.New("auth.jwt_secret or auth.email_header is required to resolve callers"))
	}
	return errors.Join(errs...)
}
