package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 2, 10, 30, 45, 123456789, time.UTC)

	cursor := EncodeCursor(ts, 42)
	gotTS, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(gotTS))
	assert.Equal(t, int64(42), gotID)
}

func TestCursorNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	ts := time.Date(2025, 6, 2, 18, 0, 0, 0, loc)

	gotTS, _, err := DecodeCursor(EncodeCursor(ts, 1))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, gotTS.Location())
	assert.True(t, ts.Equal(gotTS))
}

func TestDecodeCursorInvalid(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"missing separator", encode("2025-06-02T10:00:00Z")},
		{"bad timestamp", encode("not-a-time,123")},
		{"bad id", encode("2025-06-02T10:00:00Z,abc")},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}
