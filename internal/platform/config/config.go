package config

import "time"

// Duration accepts "60s"-style strings in YAML.
type Duration struct {
	Duration time.Duration
}

func D(d time.Duration) Duration { return Duration{Duration: d} }

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

type AuthConfig struct {
	// APIKeyHeader carries the shared API key. Defaults to X-API-KEY.
	APIKeyHeader string `yaml:"api_key_header"`
	APIKey       string `yaml:"api_key"`
	// APIKeyHash is a bcrypt hash; when set it is checked instead of APIKey.
	APIKeyHash     string `yaml:"api_key_hash"`
	APIKeyDisabled bool   `yaml:"api_key_disabled"`

	// JWTSecret verifies HS256 bearer tokens carrying an "email" claim.
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
	// EmailHeader, when set, trusts an email injected by an upstream authorizer.
	EmailHeader string `yaml:"email_header"`
}

type DatabaseConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	SlowThreshold   Duration `yaml:"slow_threshold"`
}

type LLMConfig struct {
	// Provider is one of anthropic, oai_http, openai, mock.
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	Timeout        Duration `yaml:"timeout"`
	MaxRetries     int      `yaml:"max_retries"`
	RetryBaseDelay Duration `yaml:"retry_base_delay"`

	AnthropicVersion string `yaml:"anthropic_version"`
}

type EmbeddingConfig struct {
	// Provider is one of oai_http, openai, mock.
	Provider   string   `yaml:"provider"`
	Model      string   `yaml:"model"`
	APIKey     string   `yaml:"api_key"`
	BaseURL    string   `yaml:"base_url"`
	Dimensions int      `yaml:"dimensions"`
	Timeout    Duration `yaml:"timeout"`
}

type QdrantConfig struct {
	URL             string   `yaml:"url"`
	Host            string   `yaml:"host"`
	GRPCPort        int      `yaml:"grpc_port"`
	APIKey          string   `yaml:"api_key"`
	UseTLS          bool     `yaml:"use_tls"`
	Collection      string   `yaml:"collection"`
	NamespacePrefix string   `yaml:"namespace_prefix"`
	VectorDim       int      `yaml:"vector_dim"`
	Timeout         Duration `yaml:"timeout"`
}

type MemoryConfig struct {
	// Backend is one of none, inmem, qdrant, qdrant_grpc.
	Backend       string       `yaml:"backend"`
	TopN          int          `yaml:"top_n"`
	QueueSize     int          `yaml:"queue_size"`
	Workers       int          `yaml:"workers"`
	JobTimeout    Duration     `yaml:"job_timeout"`
	SearchTimeout Duration     `yaml:"search_timeout"`
	Qdrant        QdrantConfig `yaml:"qdrant"`
}

func (m MemoryConfig) Enabled() bool { return m.Backend != "" && m.Backend != MemoryNone }

type StoryConfig struct {
	OpeningDecision string `yaml:"opening_decision"`
	TitleMaxLen     int    `yaml:"title_max_len"`
	// HistoryTokenBudget caps the tokens of history sent per turn. 0 means unlimited.
	HistoryTokenBudget int      `yaml:"history_token_budget"`
	Tokenizer          string   `yaml:"tokenizer"`
	LockWait           Duration `yaml:"lock_wait"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	LockTTL  Duration `yaml:"lock_ttl"`
}

type LocaleConfig struct {
	Default string `yaml:"default"`
}

type Config struct {
	Env        string          `yaml:"env"`
	HTTP       HTTPConfig      `yaml:"http"`
	Auth       AuthConfig      `yaml:"auth"`
	Database   DatabaseConfig  `yaml:"database"`
	LLM        LLMConfig       `yaml:"llm"`
	SummaryLLM *LLMConfig      `yaml:"summary_llm"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Memory     MemoryConfig    `yaml:"memory"`
	Story      StoryConfig     `yaml:"story"`
	Redis      RedisConfig     `yaml:"redis"`
	Locale     LocaleConfig    `yaml:"locale"`
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOAIHTTP   = "oai_http"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"

	MemoryNone       = "none"
	MemoryInMem      = "inmem"
	MemoryQdrant     = "qdrant"
	MemoryQdrantGRPC = "qdrant_grpc"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
