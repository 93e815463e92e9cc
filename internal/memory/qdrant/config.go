package qdrant

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/quest-backend/internal/platform/config"
)

type Config struct {
	URL             string
	APIKey          string
	Collection      string
	NamespacePrefix string
	VectorDim       int
	Timeout         time.Duration
}

func FromConfig(c config.QdrantConfig) Config {
	cfg := Config{
		URL:             strings.TrimSpace(c.URL),
		APIKey:          strings.TrimSpace(c.APIKey),
		Collection:      strings.TrimSpace(c.Collection),
		NamespacePrefix: strings.TrimSpace(c.NamespacePrefix),
		VectorDim:       c.VectorDim,
		Timeout:         c.Timeout.Duration,
	}
	if cfg.NamespacePrefix == "" {
		cfg.NamespacePrefix = "quest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "memory.qdrant.url is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid memory.qdrant.url=%q; expected absolute URL like http://qdrant:6333", e.Value)
	case ConfigErrorMissingCollection:
		return "memory.qdrant.collection is required"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf("invalid memory.qdrant.vector_dim=%q; expected positive integer", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL, Cause: err}
	}
	if cfg.Collection == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	if cfg.VectorDim <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: strconv.Itoa(cfg.VectorDim)}
	}
	return nil
}
