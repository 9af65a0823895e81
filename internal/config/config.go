// Package config provides the typed configuration structures for the
// crawler, indexer, and frontend service binaries, bound via viper from
// flags, environment variables (SE_ prefix), and an optional config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AuthType selects which outbound authentication scheme a crawl request
// attaches.
type AuthType string

const (
	NoAuth         AuthType = ""
	BasicAuthType  AuthType = "basic"
	BearerAuthType AuthType = "bearer"
	APIKeyAuthType AuthType = "api-key"
)

// BasicAuth contains HTTP Basic Authentication credentials, resolved from
// literal values or environment variable names.
type BasicAuth struct {
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	UsernameEnv string `mapstructure:"username_env" yaml:"username_env"`
	PasswordEnv string `mapstructure:"password_env" yaml:"password_env"`
}

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token    string `mapstructure:"token" yaml:"token"`
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
}

// APIKeyAuth represents a header-based API key.
type APIKeyAuth struct {
	Header    string `mapstructure:"header" yaml:"header"`
	Value     string `mapstructure:"value" yaml:"value"`
	HeaderEnv string `mapstructure:"header_env" yaml:"header_env"`
	ValueEnv  string `mapstructure:"value_env" yaml:"value_env"`
}

// Auth selects and configures an outbound authentication scheme.
type Auth struct {
	Type   AuthType    `mapstructure:"type" yaml:"type"`
	Basic  *BasicAuth  `mapstructure:"basic" yaml:"basic"`
	Bearer *BearerAuth `mapstructure:"bearer" yaml:"bearer"`
	APIKey *APIKeyAuth `mapstructure:"apikey" yaml:"apikey"`
}

// GetBasicAuthCredentials resolves a Basic auth username/password, either
// literal or via an environment variable name.
func (a *Auth) GetBasicAuthCredentials() (username, password string) {
	if a == nil || a.Basic == nil {
		return "", ""
	}
	if a.Basic.UsernameEnv != "" {
		username = os.Getenv(a.Basic.UsernameEnv)
	} else {
		username = a.Basic.Username
	}
	if a.Basic.PasswordEnv != "" {
		password = os.Getenv(a.Basic.PasswordEnv)
	} else {
		password = a.Basic.Password
	}
	return username, password
}

// GetBearerToken resolves the bearer token, either literal or via an
// environment variable name.
func (a *Auth) GetBearerToken() string {
	if a == nil || a.Bearer == nil {
		return ""
	}
	if a.Bearer.TokenEnv != "" {
		return os.Getenv(a.Bearer.TokenEnv)
	}
	return a.Bearer.Token
}

// GetAPIKeyCredentials resolves the API key header name/value, either
// literal or via environment variable names.
func (a *Auth) GetAPIKeyCredentials() (header, value string) {
	if a == nil || a.APIKey == nil {
		return "", ""
	}
	if a.APIKey.HeaderEnv != "" {
		header = os.Getenv(a.APIKey.HeaderEnv)
	} else {
		header = a.APIKey.Header
	}
	if a.APIKey.ValueEnv != "" {
		value = os.Getenv(a.APIKey.ValueEnv)
	} else {
		value = a.APIKey.Value
	}
	return header, value
}

// validate checks that exactly the fields required by a's declared Type
// are present.
func (a *Auth) validate() error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case NoAuth:
		return nil
	case BasicAuthType:
		username, password := a.GetBasicAuthCredentials()
		if username == "" || password == "" {
			return fmt.Errorf("basic auth requires both username and password")
		}
		return nil
	case BearerAuthType:
		if a.GetBearerToken() == "" {
			return fmt.Errorf("bearer auth requires a token")
		}
		return nil
	case APIKeyAuthType:
		header, value := a.GetAPIKeyCredentials()
		if header == "" || value == "" {
			return fmt.Errorf("api-key auth requires both header and value")
		}
		return nil
	default:
		return fmt.Errorf("unsupported authentication type: %s", a.Type)
	}
}

// CrawlerConfig configures the crawler service: the URL Store recrawl
// policy, the Scheduler's per-host limits, and the worker pool's HTTP
// behavior.
type CrawlerConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	Concurrency           int           `mapstructure:"concurrency" yaml:"concurrency"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent             string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreRobots          bool          `mapstructure:"ignore_robots" yaml:"ignore_robots"`
	Limit                 int           `mapstructure:"limit" yaml:"limit"`
	RecrawlThresholdDays  int           `mapstructure:"recrawl_threshold_days" yaml:"recrawl_threshold_days"`
	MinIntervalSeconds    float64       `mapstructure:"min_interval_seconds" yaml:"min_interval_seconds"`
	DomainConcurrency     int           `mapstructure:"domain_concurrency" yaml:"domain_concurrency"`
	MaxOutlinks           int           `mapstructure:"max_outlinks" yaml:"max_outlinks"`
	MaxBodyBytes          int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	SchedulerBatchSize    int           `mapstructure:"scheduler_batch_size" yaml:"scheduler_batch_size"`

	Auth            *Auth    `mapstructure:"auth" yaml:"auth"`
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	Headers         []string `mapstructure:"headers" yaml:"headers"`

	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSize    int    `mapstructure:"log_max_size" yaml:"log_max_size"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
	LogConsole    bool   `mapstructure:"log_console" yaml:"log_console"`
}

// DefaultCrawlerConfig returns the crawler service's default configuration.
func DefaultCrawlerConfig() *CrawlerConfig {
	return &CrawlerConfig{
		DatabaseURL:          "sqlite://./searchengine.db",
		Concurrency:          10,
		RequestTimeout:       30 * time.Second,
		UserAgent:            "SearchEngineBot/1.0",
		IgnoreRobots:         false,
		Limit:                0,
		RecrawlThresholdDays: 7,
		MinIntervalSeconds:   1.0,
		DomainConcurrency:    2,
		MaxOutlinks:          50,
		MaxBodyBytes:         10 * 1024 * 1024,
		SchedulerBatchSize:   100,
		ListenAddr:           ":8081",
		LogLevel:             "info",
		LogMaxSize:           100,
		LogMaxBackups:        5,
		LogConsole:           true,
	}
}

// Validate checks the crawler configuration for internal consistency.
func (c *CrawlerConfig) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.DatabaseURL == "" {
		return ErrEmptyDatabaseURL
	}
	if c.RecrawlThresholdDays < 0 {
		return fmt.Errorf("recrawl_threshold_days must be non-negative")
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	return validateHeaders(c.Headers)
}

// IndexerConfig configures the indexer service. LeaseDuration and
// PageRankInterval are applied; RetryBaseSeconds, RetryMaxSeconds and
// MaxRetryCount are validated but not passed to the Index Job Queue, which
// uses indexqueue.DefaultBackoffConfig.
type IndexerConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	RetryBaseSeconds float64       `mapstructure:"retry_base_seconds" yaml:"retry_base_seconds"`
	RetryMaxSeconds  float64       `mapstructure:"retry_max_seconds" yaml:"retry_max_seconds"`
	MaxRetryCount    int           `mapstructure:"max_retry_count" yaml:"max_retry_count"`
	LeaseDuration    time.Duration `mapstructure:"lease_duration" yaml:"lease_duration"`
	PageRankInterval time.Duration `mapstructure:"pagerank_interval" yaml:"pagerank_interval"`

	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSize    int    `mapstructure:"log_max_size" yaml:"log_max_size"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
	LogConsole    bool   `mapstructure:"log_console" yaml:"log_console"`
}

// DefaultIndexerConfig returns the indexer service's default configuration.
func DefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		DatabaseURL:      "sqlite://./searchengine.db",
		RetryBaseSeconds: 1.0,
		RetryMaxSeconds:  300,
		MaxRetryCount:    5,
		LeaseDuration:    5 * time.Minute,
		PageRankInterval: time.Hour,
		ListenAddr:       ":8082",
		LogLevel:         "info",
		LogMaxSize:       100,
		LogMaxBackups:    5,
		LogConsole:       true,
	}
}

// Validate checks the indexer configuration for internal consistency.
func (c *IndexerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return ErrEmptyDatabaseURL
	}
	if c.RetryBaseSeconds <= 0 || c.RetryMaxSeconds <= 0 {
		return fmt.Errorf("retry_base_seconds and retry_max_seconds must be positive")
	}
	if c.MaxRetryCount <= 0 {
		return fmt.Errorf("max_retry_count must be greater than 0")
	}
	return nil
}

// FrontendConfig configures the frontend service: the query engine's
// blend weights and the analytics session salt.
type FrontendConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	BM25K1            float64 `mapstructure:"bm25_k1" yaml:"bm25_k1"`
	BM25B             float64 `mapstructure:"bm25_b" yaml:"bm25_b"`
	TitleBoost        float64 `mapstructure:"title_boost" yaml:"title_boost"`
	PageRankWeight    float64 `mapstructure:"pagerank_weight" yaml:"pagerank_weight"`
	SnippetWindowSize int     `mapstructure:"snippet_window_size" yaml:"snippet_window_size"`
	SessionSalt       string  `mapstructure:"session_salt" yaml:"session_salt"`

	// CrawlerBaseURL is the crawler service's base URL, used to proxy
	// GET /predict to its scoring endpoint.
	CrawlerBaseURL string `mapstructure:"crawler_base_url" yaml:"crawler_base_url"`

	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSize    int    `mapstructure:"log_max_size" yaml:"log_max_size"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
	LogConsole    bool   `mapstructure:"log_console" yaml:"log_console"`
}

// DefaultFrontendConfig returns the frontend service's default
// configuration.
func DefaultFrontendConfig() *FrontendConfig {
	return &FrontendConfig{
		DatabaseURL:       "sqlite://./searchengine.db",
		BM25K1:            1.2,
		BM25B:             0.75,
		TitleBoost:        3.0,
		PageRankWeight:    0.5,
		SnippetWindowSize: 150,
		CrawlerBaseURL:    "http://localhost:8081",
		ListenAddr:        ":8080",
		LogLevel:          "info",
		LogMaxSize:        100,
		LogMaxBackups:     5,
		LogConsole:        true,
	}
}

// Validate checks the frontend configuration for internal consistency.
func (c *FrontendConfig) Validate() error {
	if c.DatabaseURL == "" {
		return ErrEmptyDatabaseURL
	}
	if c.BM25K1 <= 0 {
		return fmt.Errorf("bm25_k1 must be positive")
	}
	if c.SessionSalt == "" {
		return fmt.Errorf("session_salt must not be empty")
	}
	return nil
}

// validateHeaders checks that every custom header is "Name: Value" and not
// one of the forbidden connection-management headers.
func validateHeaders(headers []string) error {
	forbidden := []string{"host", "content-length", "connection"}
	for _, header := range headers {
		colonIndex := strings.Index(header, ":")
		if colonIndex <= 0 {
			return fmt.Errorf("invalid header format %q: expected 'Name: Value'", header)
		}
		name := strings.TrimSpace(header[:colonIndex])
		value := strings.TrimSpace(header[colonIndex+1:])
		if name == "" || value == "" {
			return fmt.Errorf("invalid header format %q: name and value must be non-empty", header)
		}
		for _, f := range forbidden {
			if strings.EqualFold(name, f) {
				return fmt.Errorf("cannot set forbidden header %q", name)
			}
		}
	}
	return nil
}
