package model

import "time"

// Config is the complete client configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Sync         SyncConfig         `yaml:"sync" mapstructure:"sync"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// ServerConfig describes how to reach the game server
type ServerConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	SessionToken string        `yaml:"session_token,omitempty" mapstructure:"session_token"`
	GameID       string        `yaml:"game_id,omitempty" mapstructure:"game_id"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// SyncConfig controls phase polling and the countdown clock
type SyncConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	ClockInterval    time.Duration `yaml:"clock_interval" mapstructure:"clock_interval"`
	WarningThreshold time.Duration `yaml:"warning_threshold" mapstructure:"warning_threshold"`
}

// CacheConfig controls the review-brief response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitingConfig bounds request rate per endpoint
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig bounds parallel report fetches
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LLMConfig configures the optional report recap
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:      "http://localhost:5000",
			Timeout:      10 * time.Second,
			UserAgent:    "citegame/0.1",
			MaxBodyBytes: 4_000_000,
			MaxRetries:   2,
		},
		Sync: SyncConfig{
			PollInterval:     2500 * time.Millisecond,
			ClockInterval:    time.Second,
			WarningThreshold: time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".citegame-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		LLM: LLMConfig{
			Timeout:        30,
			MaxTokens:      600,
			StrictEvidence: true,
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}
