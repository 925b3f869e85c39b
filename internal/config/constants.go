package config

// Constants defining default values for application configuration
const (
	DefaultSourcesCSVPath = "./sources.csv"
	DefaultDBPath         = "./crawler.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultSourcesPerBatch = 20
	DefaultItemsPerSource  = 10
	DefaultConcurrency     = 5
	DefaultMaxRetries      = 3
	DefaultMaxItemAgeDays  = 30
	DefaultInterval        = 15 // Minutes between crawl cycles

	DefaultReaderURLPrefix = "https://r.jina.ai/"
	DefaultReaderTimeout   = 30 // Seconds per reader call

	DefaultFeedTimeout   = 30 // Seconds per feed fetch
	DefaultIngestTimeout = 30 // Seconds per ingest POST

	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"

	// Comma-separated source types crawled first when the priority tier is requested.
	DefaultPriorityTypes = "news,article,blog"

	DefaultLogLevel = "info"
)
