// Package config provides the configuration structure for the presentation-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/presentation-service/internal/presentation"
)

const (
	defaultLocalBaseURL    = "http://localhost:11434"
	defaultLocalModel      = "qwen2.5:7b"
	defaultRemoteModel     = "gpt-4o-mini"
	defaultTimeoutSeconds  = 300
	defaultCacheDir        = "cache"
	defaultOutputDir       = "output"
	defaultLogsDir         = "logs"
	defaultDetailLimit     = 200
	defaultDetailsPerPoint = 2
	defaultPointsPerSlide  = 5
	defaultNATSURL         = "nats://127.0.0.1:4222"
	defaultBucket          = "PRESENTATIONS"
	defaultRequestSubject  = "presentation.requested"
	defaultTextSubject     = "text.processed"

	envOpenAIAPIKey = "OPENAI_API_KEY"
)

var (
	// ErrLocalModelEmpty indicates that no local model name is configured.
	ErrLocalModelEmpty = errors.New("llm.local.model cannot be empty")
	// ErrTimeoutInvalid indicates a request timeout below NoTimeout.
	ErrTimeoutInvalid = errors.New("llm.timeout_seconds must be -1 or non-negative")
	// ErrCacheDirEmpty indicates that no cache directory is configured.
	ErrCacheDirEmpty = errors.New("cache.dir cannot be empty")
	// ErrSpeechLimitsInvalid indicates non-positive speech prompt limits.
	ErrSpeechLimitsInvalid = errors.New("speech limits must be positive")
)

// LocalLLMConfig holds the settings for the local model server.
type LocalLLMConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// RemoteLLMConfig holds the settings for the remote OpenAI-compatible API.
type RemoteLLMConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

// LLMConfig groups both model backends.
type LLMConfig struct {
	Local          LocalLLMConfig  `toml:"local"`
	Remote         RemoteLLMConfig `toml:"remote"`
	TimeoutSeconds int             `toml:"timeout_seconds"`
}

// NoTimeout as llm.timeout_seconds lets model calls run without an HTTP timeout. An unset or zero
// value takes the default.
const NoTimeout = -1

// Timeout returns the HTTP timeout for one model call, zero when it is disabled.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}

	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheConfig holds the settings for the presentation cache.
type CacheConfig struct {
	Dir string `toml:"dir"`
}

// SpeechConfig bounds the prompts of the chunked speech strategy.
type SpeechConfig struct {
	DefaultStrategy string `toml:"default_strategy"`
	DetailLimit     int    `toml:"detail_limit"`
	DetailsPerPoint int    `toml:"details_per_point"`
	PointsPerSlide  int    `toml:"points_per_slide"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                          string `toml:"url"`
	PresentationRequestedSubject string `toml:"presentation_requested_subject"`
	TextProcessedSubject         string `toml:"text_processed_subject"`
	ArtifactObjectStoreBucket    string `toml:"artifact_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	LLM    LLMConfig    `toml:"llm"`
	Cache  CacheConfig  `toml:"cache"`
	Speech SpeechConfig `toml:"speech"`
	NATS   NATSConfig   `toml:"nats"`
	Paths  PathsConfig  `toml:"paths"`
}

// Load loads the configuration for the presentation-service through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a TOML file on disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	return finish(&cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	setDefault(&c.LLM.Local.BaseURL, defaultLocalBaseURL)
	setDefault(&c.LLM.Local.Model, defaultLocalModel)
	setDefault(&c.LLM.Remote.Model, defaultRemoteModel)
	setDefault(&c.LLM.Remote.APIKey, os.Getenv(envOpenAIAPIKey))

	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = defaultTimeoutSeconds
	}

	setDefault(&c.Cache.Dir, defaultCacheDir)
	setDefault(&c.Speech.DefaultStrategy, string(presentation.StrategyChunked))

	if c.Speech.DetailLimit == 0 {
		c.Speech.DetailLimit = defaultDetailLimit
	}

	if c.Speech.DetailsPerPoint == 0 {
		c.Speech.DetailsPerPoint = defaultDetailsPerPoint
	}

	if c.Speech.PointsPerSlide == 0 {
		c.Speech.PointsPerSlide = defaultPointsPerSlide
	}

	setDefault(&c.NATS.URL, defaultNATSURL)
	setDefault(&c.NATS.PresentationRequestedSubject, defaultRequestSubject)
	setDefault(&c.NATS.TextProcessedSubject, defaultTextSubject)
	setDefault(&c.NATS.ArtifactObjectStoreBucket, defaultBucket)
	setDefault(&c.Paths.BaseLogsDir, defaultLogsDir)
	setDefault(&c.Paths.OutputDir, defaultOutputDir)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.LLM.Local.Model == "" {
		return ErrLocalModelEmpty
	}

	if c.LLM.TimeoutSeconds < NoTimeout {
		return fmt.Errorf("%w: got %d", ErrTimeoutInvalid, c.LLM.TimeoutSeconds)
	}

	if c.Cache.Dir == "" {
		return ErrCacheDirEmpty
	}

	if c.Speech.DetailLimit < 0 || c.Speech.DetailsPerPoint < 0 || c.Speech.PointsPerSlide < 0 {
		return ErrSpeechLimitsInvalid
	}

	_, err := presentation.ParseStrategy(c.Speech.DefaultStrategy)
	if err != nil {
		return fmt.Errorf("invalid speech.default_strategy: %w", err)
	}

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
