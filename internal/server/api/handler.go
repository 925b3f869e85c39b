package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"aipulse/crawler/internal/models"
	"aipulse/crawler/internal/registry"
	"aipulse/crawler/internal/server/pagination"
	"aipulse/crawler/internal/server/storage"
)

const defaultLimit = 100
const maxLimit = 1000
const iso8601Format = time.RFC3339

// CrawlsResponse is the paginated crawl-history payload.
type CrawlsResponse struct {
	Crawls     []models.CrawlRecord `json:"crawls"`
	NextCursor *string              `json:"next_cursor,omitempty"`
}

// CrawlsHandler serves the crawl-history endpoint.
type CrawlsHandler struct {
	repo storage.CrawlRepository
}

// NewCrawlsHandler creates a new handler instance.
func NewCrawlsHandler(repo storage.CrawlRepository) *CrawlsHandler {
	return &CrawlsHandler{repo: repo}
}

// GetCrawls handles requests to fetch crawl history, paginated by a keyset
// cursor over (created_at, id).
func (h *CrawlsHandler) GetCrawls(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing crawl history request")

	ctx := r.Context()
	query := r.URL.Query()
	limitStr := query.Get("limit")
	sinceStr := query.Get("since")
	cursorStr := query.Get("cursor")

	limit := defaultLimit
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	var since *time.Time
	var cursorTimestamp *time.Time
	var cursorID *int64

	if cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		cursorTimestamp = &ts
		cursorID = &id
	} else if sinceStr != "" {
		parsedSince, err := time.Parse(iso8601Format, sinceStr)
		if err != nil {
			log.Warn().Err(err).Str("since", sinceStr).Msg("Invalid 'since' parameter format")
			http.Error(w, "Invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)", http.StatusBadRequest)
			return
		}
		utcSince := parsedSince.UTC()
		since = &utcSince
	} else {
		log.Warn().Msg("Missing required parameter: 'since' or 'cursor'")
		http.Error(w, "Missing required parameter: 'since' or 'cursor'", http.StatusBadRequest)
		return
	}

	records, err := h.repo.FetchCrawls(ctx, limit+1, since, cursorTimestamp, cursorID) // Fetch one extra
	if err != nil {
		log.Error().Err(err).Str("cursor", cursorStr).Msg("Error fetching crawl history from repository")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursorStr *string
	hasNextPage := len(records) > limit
	page := records
	if hasNextPage {
		page = records[:limit]
		if len(page) > 0 {
			last := page[len(page)-1]
			cursor := pagination.EncodeCursor(last.CreatedAt.UTC(), last.ID)
			nextCursorStr = &cursor
		}
	}

	writeJSON(w, log, CrawlsResponse{Crawls: page, NextCursor: nextCursorStr})
}

// SourcesHandler serves the source listing endpoint.
type SourcesHandler struct {
	reg *registry.Registry
}

// NewSourcesHandler creates a new handler instance.
func NewSourcesHandler(reg *registry.Registry) *SourcesHandler {
	return &SourcesHandler{reg: reg}
}

// GetSources returns all registered sources as JSON.
func (h *SourcesHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing sources request")

	sources, err := h.reg.ListSources(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error listing sources")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, log, struct {
		Sources []models.Source `json:"sources"`
	}{Sources: sources})
}

func writeJSON(w http.ResponseWriter, log *zerolog.Logger, payload any) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
}
