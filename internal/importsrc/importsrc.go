// Package importsrc loads crawl sources from a CSV file into the registry.
package importsrc

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aipulse/crawler/internal/models"
	"aipulse/crawler/internal/registry"
)

// Expected CSV header. Column order is fixed; extra columns are ignored.
var expectedColumns = []string{"name", "url", "type", "category", "language", "crawl_frequency_seconds", "need_crawl"}

// Importer handles the source import process
type Importer struct {
	reg *registry.Registry
}

// NewImporter creates a new source importer
func NewImporter(reg *registry.Registry) *Importer {
	return &Importer{reg: reg}
}

// ImportSources imports sources from a CSV file. Rows with an invalid URL
// or unknown type are skipped with a warning; duplicate URLs are ignored.
func (i *Importer) ImportSources(ctx context.Context, csvPath string) error {
	log.Info().Str("csv", csvPath).Msg("Starting source import")

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	inserted, skipped, err := i.parseAndImport(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to import sources: %w", err)
	}

	log.Info().
		Int("inserted", inserted).
		Int("skipped", skipped).
		Msg("Import completed successfully")
	return nil
}

func (i *Importer) parseAndImport(ctx context.Context, r io.Reader) (inserted, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return 0, 0, err
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping malformed CSV record")
			skipped++
			continue
		}

		src, err := sourceFromRecord(record)
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping invalid source")
			skipped++
			continue
		}

		ok, err := i.reg.InsertSource(ctx, src)
		if err != nil {
			return inserted, skipped, err
		}
		if ok {
			inserted++
		} else {
			log.Debug().Str("url", src.URL).Msg("Source already registered, skipping")
			skipped++
		}
	}
	return inserted, skipped, nil
}

func validateHeader(header []string) error {
	if len(header) < len(expectedColumns) {
		return fmt.Errorf("CSV header has %d columns, expected at least %d", len(header), len(expectedColumns))
	}
	for idx, want := range expectedColumns {
		if !strings.EqualFold(strings.TrimSpace(header[idx]), want) {
			return fmt.Errorf("CSV header column %d is %q, expected %q", idx, header[idx], want)
		}
	}
	return nil
}

func sourceFromRecord(record []string) (*models.Source, error) {
	if len(record) < len(expectedColumns) {
		return nil, fmt.Errorf("record has %d columns, expected %d", len(record), len(expectedColumns))
	}

	rawURL := strings.TrimSpace(record[1])
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid source url %q", rawURL)
	}

	srcType := strings.ToLower(strings.TrimSpace(record[2]))
	if !models.ValidSourceType(srcType) {
		return nil, fmt.Errorf("unknown source type %q", record[2])
	}

	freq, err := strconv.Atoi(strings.TrimSpace(record[5]))
	if err != nil || freq <= 0 {
		return nil, fmt.Errorf("invalid crawl frequency %q", record[5])
	}

	needCrawl, err := strconv.ParseBool(strings.TrimSpace(record[6]))
	if err != nil {
		return nil, fmt.Errorf("invalid need_crawl value %q", record[6])
	}

	now := time.Now()
	return &models.Source{
		Name:           strings.TrimSpace(record[0]),
		URL:            rawURL,
		Type:           srcType,
		Category:       strings.TrimSpace(record[3]),
		Language:       strings.TrimSpace(record[4]),
		CrawlFrequency: freq,
		NeedCrawl:      needCrawl,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
