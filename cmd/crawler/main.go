package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"aipulse/crawler/internal/analyzer"
	"aipulse/crawler/internal/config"
	"aipulse/crawler/internal/crawl"
	"aipulse/crawler/internal/database"
	"aipulse/crawler/internal/feed"
	"aipulse/crawler/internal/fetcher"
	"aipulse/crawler/internal/importsrc"
	"aipulse/crawler/internal/ingest"
	"aipulse/crawler/internal/registry"
	"aipulse/crawler/internal/server"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func usage() {
	fmt.Println("Usage: crawler [command] [options]")
	fmt.Println("Commands: import, crawl, server")
	fmt.Println("\nFor command-specific options, use: crawler [command] -h")
}

func main() {
	cfg := config.DefaultConfig()

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importCmd.StringVar(&cfg.SourcesCSVPath, "csv", config.GetEnvString("CRAWLER_CSV_PATH", config.DefaultSourcesCSVPath),
		"Path to the sources CSV file (env: CRAWLER_CSV_PATH)")
	importCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("CRAWLER_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: CRAWLER_DB_PATH)")

	var importLogLevelStr string
	importCmd.StringVar(&importLogLevelStr, "log-level", config.GetEnvString("CRAWLER_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: CRAWLER_LOG_LEVEL)")

	crawlCmd := flag.NewFlagSet("crawl", flag.ExitOnError)
	crawlCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("CRAWLER_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: CRAWLER_DB_PATH)")
	crawlCmd.StringVar(&cfg.IngestAPIURL, "ingest-url", cfg.IngestAPIURL,
		"Ingest sink URL (env: CRAWLER_INGEST_URL)")
	crawlCmd.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency,
		"Number of sources crawled in parallel (env: CRAWLER_CONCURRENCY)")
	crawlCmd.BoolVar(&cfg.PriorityOnly, "priority-only", cfg.PriorityOnly,
		"Restrict this batch to the priority-tier source types (env: CRAWLER_PRIORITY_ONLY)")
	crawlCmd.DurationVar(&cfg.Interval, "interval", cfg.Interval,
		"Interval between crawl cycles (e.g. 15m), 0 for one-shot mode (env: CRAWLER_INTERVAL, bare numbers are minutes)")

	var crawlLogLevelStr string
	crawlCmd.StringVar(&crawlLogLevelStr, "log-level", config.GetEnvString("CRAWLER_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: CRAWLER_LOG_LEVEL)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("CRAWLER_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: CRAWLER_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("CRAWLER_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: CRAWLER_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("CRAWLER_PORT", config.DefaultServerPort),
		"Port to listen on (env: CRAWLER_PORT)")

	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", config.GetEnvString("CRAWLER_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: CRAWLER_LOG_LEVEL)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		importCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, importLogLevelStr)

		if err := runImport(cfg); err != nil {
			log.Error().Err(err).Msg("Import failed")
			os.Exit(1)
		}

	case "crawl":
		crawlCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, crawlLogLevelStr)

		if err := runCrawl(cfg); err != nil {
			log.Error().Err(err).Msg("Crawling failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, serverLogLevelStr)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}
}

func applyLogLevel(cfg *config.Config, levelStr string) {
	if level, err := zerolog.ParseLevel(levelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
}

// runImport loads sources from a CSV file into the registry database.
func runImport(cfg *config.Config) error {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	importer := importsrc.NewImporter(registry.New(db))
	return importer.ImportSources(context.Background(), cfg.SourcesCSVPath)
}

// runCrawl executes the batch pipeline either once or periodically based
// on configuration.
func runCrawl(cfg *config.Config) error {
	if cfg.IngestAPIURL == "" {
		return fmt.Errorf("ingest sink URL is required (flag -ingest-url or env CRAWLER_INGEST_URL)")
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	orchestrator := crawl.New(
		registry.New(db),
		feed.NewParser(time.Duration(config.DefaultFeedTimeout)*time.Second),
		fetcher.New(cfg.ReaderURLPrefix, cfg.ReaderTimeout, cfg.MaxRetries),
		analyzer.NewCascade(cfg),
		ingest.New(cfg.IngestAPIURL, cfg.IngestSecret, cfg.IngestTimeout),
		cfg,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if err := runCrawlCycle(ctx, orchestrator); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Crawl cycle canceled by shutdown signal")
			return nil
		}
		return err
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("One-shot crawl completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next crawl cycle")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled crawl cycle")

			if err := runCrawlCycle(ctx, orchestrator); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Crawl cycle canceled by shutdown signal")
					return nil
				}
				log.Error().Err(err).Msg("Crawl cycle failed")
				// Continue to the next cycle rather than exiting
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next crawl cycle")

		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic crawling")
			return nil
		}
	}
}

// runCrawlCycle executes a single batch under a hard cycle deadline.
func runCrawlCycle(ctx context.Context, orchestrator *crawl.Orchestrator) error {
	cycleCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	startTime := time.Now()
	result, err := orchestrator.RunBatch(cycleCtx, startTime)
	if err != nil {
		if ctxErr := cycleCtx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctx.Err()
		}
		return fmt.Errorf("crawl error: %w", err)
	}

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("sources", result.Sources).
		Int("ok", result.Totals.OK).
		Int("skipped", result.Totals.Skipped).
		Int("failed", result.Totals.Failed).
		Msg("Crawl cycle finished")
	return nil
}

// runServer starts the read-only ops API with the provided configuration.
func runServer(cfg *config.Config) error {
	dbCfg := database.NewConfig(cfg.DBPath)
	dbCfg.ReadOnly = true

	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	return server.RunServer(db, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}
