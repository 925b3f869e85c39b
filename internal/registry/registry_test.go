package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aipulse/crawler/internal/database"
	"aipulse/crawler/internal/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.NewDB(database.NewConfig(dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func insertTestSource(t *testing.T, r *Registry, name, url, srcType string, freq int) {
	t.Helper()
	src := models.NewSource()
	src.Name = name
	src.URL = url
	src.Type = srcType
	src.CrawlFrequency = freq
	src.NeedCrawl = true
	inserted, err := r.InsertSource(context.Background(), src)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestInsertSourceDuplicateURL(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	src := models.NewSource()
	src.Name = "First"
	src.URL = "https://a.com/feed.xml"

	inserted, err := r.InsertSource(ctx, src)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := models.NewSource()
	dup.Name = "Second"
	dup.URL = "https://a.com/feed.xml"

	inserted, err = r.InsertSource(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	sources, err := r.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "First", sources[0].Name)
}

func TestDueSourcesNeverCrawledAreDue(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	insertTestSource(t, r, "one", "https://a.com/1", models.SourceTypeArticle, 3600)
	insertTestSource(t, r, "two", "https://a.com/2", models.SourceTypeBlog, 3600)

	due, err := r.DueSources(ctx, time.Now(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestDueSourcesRespectsFrequency(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	insertTestSource(t, r, "hourly", "https://a.com/hourly", models.SourceTypeArticle, 3600)
	insertTestSource(t, r, "daily", "https://a.com/daily", models.SourceTypeArticle, 86400)

	sources, err := r.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	// Both crawled two hours ago: the hourly source is due again, the
	// daily one is not.
	crawledAt := time.Now().Add(-2 * time.Hour)
	for _, src := range sources {
		require.NoError(t, r.UpdateCrawlStatus(ctx, src.ID, crawledAt, true, 0))
	}

	due, err := r.DueSources(ctx, time.Now(), nil, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "hourly", due[0].Name)

	// Once the daily interval has elapsed too, both are due.
	due, err = r.DueSources(ctx, crawledAt.Add(25*time.Hour), nil, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestDueSourcesOrdering(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	insertTestSource(t, r, "erroring", "https://a.com/err", models.SourceTypeArticle, 60)
	insertTestSource(t, r, "stale", "https://a.com/stale", models.SourceTypeArticle, 60)
	insertTestSource(t, r, "fresh", "https://a.com/fresh", models.SourceTypeArticle, 60)
	insertTestSource(t, r, "never", "https://a.com/never", models.SourceTypeArticle, 60)

	byName := make(map[string]models.Source)
	sources, err := r.ListSources(ctx)
	require.NoError(t, err)
	for _, src := range sources {
		byName[src.Name] = src
	}

	require.NoError(t, r.UpdateCrawlStatus(ctx, byName["erroring"].ID, time.Now().Add(-3*time.Hour), false, 2))
	require.NoError(t, r.UpdateCrawlStatus(ctx, byName["stale"].ID, time.Now().Add(-2*time.Hour), true, 0))
	require.NoError(t, r.UpdateCrawlStatus(ctx, byName["fresh"].ID, time.Now().Add(-10*time.Minute), true, 0))

	due, err := r.DueSources(ctx, time.Now(), nil, 10)
	require.NoError(t, err)
	require.Len(t, due, 4)

	// error_count ascending, then staleness with never-crawled first.
	assert.Equal(t, "never", due[0].Name)
	assert.Equal(t, "stale", due[1].Name)
	assert.Equal(t, "fresh", due[2].Name)
	assert.Equal(t, "erroring", due[3].Name)
}

func TestDueSourcesTypeFilterAndLimit(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	insertTestSource(t, r, "article", "https://a.com/article", models.SourceTypeArticle, 60)
	insertTestSource(t, r, "podcast", "https://a.com/podcast", models.SourceTypePodcast, 60)
	insertTestSource(t, r, "blog", "https://a.com/blog", models.SourceTypeBlog, 60)

	due, err := r.DueSources(ctx, time.Now(), []string{models.SourceTypeArticle, models.SourceTypeBlog}, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	for _, src := range due {
		assert.NotEqual(t, models.SourceTypePodcast, src.Type)
	}

	limited, err := r.DueSources(ctx, time.Now(), nil, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUpdateCrawlStatus(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	insertTestSource(t, r, "src", "https://a.com/src", models.SourceTypeArticle, 3600)
	sources, err := r.ListSources(ctx)
	require.NoError(t, err)
	id := sources[0].ID

	crawledAt := time.Now().Add(-time.Minute)

	// Two failures accumulate.
	require.NoError(t, r.UpdateCrawlStatus(ctx, id, crawledAt, false, 3))
	require.NoError(t, r.UpdateCrawlStatus(ctx, id, crawledAt, false, 0)) // delta floors at 1

	src, err := r.GetSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, src.ErrorCount)
	assert.True(t, src.LastCrawledAt.Valid)
	assert.False(t, src.LastSuccessAt.Valid)

	// Success resets the counter and stamps last_success_at.
	require.NoError(t, r.UpdateCrawlStatus(ctx, id, time.Now(), true, 0))

	src, err = r.GetSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, src.ErrorCount)
	assert.True(t, src.LastSuccessAt.Valid)
}

func TestGetSourceNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.GetSource(context.Background(), 9999)
	assert.Error(t, err)
}

func TestRecordCrawl(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	insertTestSource(t, r, "src", "https://a.com/src", models.SourceTypeArticle, 3600)
	sources, err := r.ListSources(ctx)
	require.NoError(t, err)

	rec := &models.CrawlRecord{
		SourceID:   sources[0].ID,
		StartedAt:  time.Now().Add(-30 * time.Second),
		OK:         5,
		Skipped:    2,
		Failed:     1,
		DurationMS: 28000,
	}
	require.NoError(t, r.RecordCrawl(ctx, rec))
}
