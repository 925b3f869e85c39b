package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	SourcesCSVPath string
	DBPath         string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Pipeline settings
	SourcesPerBatch int
	ItemsPerSource  int
	Concurrency     int
	MaxRetries      int
	MaxItemAge      time.Duration
	PriorityTypes   []string
	PriorityOnly    bool
	Interval        time.Duration

	// Reader/extraction service
	ReaderURLPrefix string
	ReaderTimeout   time.Duration

	// Ingest sink
	IngestAPIURL  string
	IngestSecret  string
	IngestTimeout time.Duration

	// AI providers (a provider is enabled only when its key is set)
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration, with environment variables
// taking precedence over hardcoded defaults. Flags override both.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		SourcesCSVPath:  DefaultSourcesCSVPath,
		DBPath:          DefaultDBPath,
		ServerHost:      DefaultServerHost,
		ServerPort:      DefaultServerPort,
		APIKey:          GetEnvString("CRAWLER_API_KEY", ""),
		SourcesPerBatch: GetEnvInt("CRAWLER_SOURCES_PER_BATCH", DefaultSourcesPerBatch),
		ItemsPerSource:  GetEnvInt("CRAWLER_ITEMS_PER_SOURCE", DefaultItemsPerSource),
		Concurrency:     GetEnvInt("CRAWLER_CONCURRENCY", DefaultConcurrency),
		MaxRetries:      GetEnvInt("CRAWLER_MAX_RETRIES", DefaultMaxRetries),
		MaxItemAge:      time.Duration(GetEnvInt("CRAWLER_MAX_ITEM_AGE_DAYS", DefaultMaxItemAgeDays)) * 24 * time.Hour,
		PriorityTypes:   GetEnvStrings("CRAWLER_PRIORITY_TYPES", DefaultPriorityTypes),
		PriorityOnly:    GetEnvBool("CRAWLER_PRIORITY_ONLY", false),
		Interval:        GetEnvDuration("CRAWLER_INTERVAL", time.Duration(DefaultInterval)*time.Minute),
		ReaderURLPrefix: GetEnvString("CRAWLER_READER_URL", DefaultReaderURLPrefix),
		ReaderTimeout:   time.Duration(GetEnvInt("CRAWLER_READER_TIMEOUT", DefaultReaderTimeout)) * time.Second,
		IngestAPIURL:    GetEnvString("CRAWLER_INGEST_URL", ""),
		IngestSecret:    GetEnvString("CRAWLER_INGEST_SECRET", ""),
		IngestTimeout:   time.Duration(GetEnvInt("CRAWLER_INGEST_TIMEOUT", DefaultIngestTimeout)) * time.Second,
		AnthropicAPIKey: GetEnvString("CRAWLER_ANTHROPIC_API_KEY", ""),
		AnthropicModel:  GetEnvString("CRAWLER_ANTHROPIC_MODEL", DefaultAnthropicModel),
		OpenAIAPIKey:    GetEnvString("CRAWLER_OPENAI_API_KEY", ""),
		OpenAIBaseURL:   GetEnvString("CRAWLER_OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OpenAIModel:     GetEnvString("CRAWLER_OPENAI_MODEL", DefaultOpenAIModel),
		LogLevel:        GetEnvLogLevel("CRAWLER_LOG_LEVEL", logLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
