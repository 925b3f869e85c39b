package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aipulse/crawler/internal/models"
)

// fakeRepo serves a fixed crawl history, honoring since/cursor filters the
// way the real repository does.
type fakeRepo struct {
	records []models.CrawlRecord
	err     error
}

func (f *fakeRepo) FetchCrawls(_ context.Context, limit int, since *time.Time, cursorTS *time.Time, cursorID *int64) ([]models.CrawlRecord, error) {
	if f.err != nil {
		return nil, f.err
	}

	var out []models.CrawlRecord
	for _, rec := range f.records {
		switch {
		case cursorTS != nil && cursorID != nil:
			if rec.CreatedAt.After(*cursorTS) || (rec.CreatedAt.Equal(*cursorTS) && rec.ID > *cursorID) {
				out = append(out, rec)
			}
		case since != nil:
			if rec.CreatedAt.After(*since) {
				out = append(out, rec)
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func makeRecords(n int, base time.Time) []models.CrawlRecord {
	records := make([]models.CrawlRecord, n)
	for i := range records {
		records[i] = models.CrawlRecord{
			ID:        int64(i + 1),
			SourceID:  int64(100 + i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			OK:        i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return records
}

func getCrawls(t *testing.T, h *CrawlsHandler, target string) (*httptest.ResponseRecorder, CrawlsResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.GetCrawls(rr, req)

	var resp CrawlsResponse
	if rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func TestGetCrawlsSince(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	h := NewCrawlsHandler(&fakeRepo{records: makeRecords(3, base)})

	rr, resp := getCrawls(t, h, "/v1/crawls?since="+base.Format(time.RFC3339))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	// The since filter is strict; only records after base qualify.
	require.Len(t, resp.Crawls, 2)
	assert.Equal(t, int64(2), resp.Crawls[0].ID)
	assert.Nil(t, resp.NextCursor)
}

func TestGetCrawlsPagination(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	h := NewCrawlsHandler(&fakeRepo{records: makeRecords(5, base)})

	rr, first := getCrawls(t, h, "/v1/crawls?since=2025-05-31T00:00:00Z&limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, first.Crawls, 2)
	require.NotNil(t, first.NextCursor)

	rr, second := getCrawls(t, h, "/v1/crawls?limit=2&cursor="+*first.NextCursor)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, second.Crawls, 2)
	assert.Equal(t, int64(3), second.Crawls[0].ID)
	require.NotNil(t, second.NextCursor)

	rr, last := getCrawls(t, h, "/v1/crawls?limit=2&cursor="+*second.NextCursor)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, last.Crawls, 1)
	assert.Equal(t, int64(5), last.Crawls[0].ID)
	assert.Nil(t, last.NextCursor)
}

func TestGetCrawlsBadParams(t *testing.T) {
	h := NewCrawlsHandler(&fakeRepo{})

	tests := []struct {
		name   string
		target string
	}{
		{"missing since and cursor", "/v1/crawls"},
		{"bad since", "/v1/crawls?since=yesterday"},
		{"bad cursor", "/v1/crawls?cursor=garbage"},
		{"zero limit", "/v1/crawls?since=2025-06-01T00:00:00Z&limit=0"},
		{"limit too large", "/v1/crawls?since=2025-06-01T00:00:00Z&limit=5000"},
		{"non-numeric limit", "/v1/crawls?since=2025-06-01T00:00:00Z&limit=lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := getCrawls(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGetCrawlsRepositoryError(t *testing.T) {
	h := NewCrawlsHandler(&fakeRepo{err: fmt.Errorf("db gone")})
	rr, _ := getCrawls(t, h, "/v1/crawls?since=2025-06-01T00:00:00Z")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
