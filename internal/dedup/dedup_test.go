package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tracking params and fragment",
			in:   "https://a.com/x?utm_source=y&ref=z#frag",
			want: "https://a.com/x",
		},
		{
			name: "preserves non-tracking params",
			in:   "https://a.com/x?id=42&utm_campaign=launch",
			want: "https://a.com/x?id=42",
		},
		{
			name: "strips all utm variants",
			in:   "https://a.com/?utm_source=s&utm_medium=m&utm_term=t&utm_content=c",
			want: "https://a.com/",
		},
		{
			name: "strips click ids",
			in:   "https://a.com/p?fbclid=1&gclid=2&msclkid=3&_ga=4",
			want: "https://a.com/p",
		},
		{
			name: "untouched clean url",
			in:   "https://a.com/path/to/article",
			want: "https://a.com/path/to/article",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash("https://a.com/x?utm_source=y", "Hello  World")
	h2 := ContentHash("https://a.com/x", "hello world")
	assert.Equal(t, h1, h2, "hash should ignore tracking params, case, and whitespace runs")

	h3 := ContentHash("https://a.com/x", "different title")
	assert.NotEqual(t, h1, h3)
}

func TestFingerprint(t *testing.T) {
	a := "The quick brown fox jumps over the lazy dog near the river bank today"
	fp := Fingerprint(a)
	require.Len(t, fp, 16)

	// Deterministic
	assert.Equal(t, fp, Fingerprint(a))

	// Punctuation and case don't matter
	assert.Equal(t, fp, Fingerprint("The quick, brown FOX jumps over the lazy dog near the river bank today!"))

	// Different content diverges
	assert.NotEqual(t, fp, Fingerprint("An entirely different body of text about something else entirely here"))

	// Short content still fingerprints
	assert.Len(t, Fingerprint("hi"), 16)
	assert.Len(t, Fingerprint(""), 16)
}

func TestTextSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TextSimilarity("openai releases new model", "openai releases new model"), 0.001)
	assert.Equal(t, 0.0, TextSimilarity("completely unrelated words here", "nothing matches whatsoever today"))

	sim := TextSimilarity("openai releases new flagship model", "openai releases flagship model")
	assert.Greater(t, sim, 0.7)
}

func TestTitlesSimilar(t *testing.T) {
	assert.True(t, TitlesSimilar(
		"Anthropic announces Claude improvements for coding",
		"Anthropic announces Claude improvements for coding tasks"))
	assert.False(t, TitlesSimilar(
		"Anthropic announces Claude improvements",
		"Weather forecast predicts sunny weekend"))
}

func TestTitlesSimilarThresholdBoundary(t *testing.T) {
	// Seven shared significant words; 8- and 9-word titles give a Jaccard
	// of exactly 7/10 = 0.7, which is similar (threshold is inclusive).
	shared := "alpha beta gamma delta epsilon zeta theta"
	atThreshold := TextSimilarity(shared+" omega", shared+" sigma kappa")
	assert.InDelta(t, 0.7, atThreshold, 0.001)
	assert.True(t, TitlesSimilar(shared+" omega", shared+" sigma kappa"))

	// Six shared out of a ten-word union is 0.6, just below.
	shared6 := "alpha beta gamma delta epsilon zeta"
	below := TextSimilarity(shared6+" omega lambda", shared6+" sigma kappa")
	assert.InDelta(t, 0.6, below, 0.001)
	assert.False(t, TitlesSimilar(shared6+" omega lambda", shared6+" sigma kappa"))
}

func TestBatchSeen(t *testing.T) {
	seen := NewBatchSeen()

	assert.False(t, seen.SeenURL("https://a.com/x"))
	assert.True(t, seen.SeenURL("https://a.com/x"))
	assert.False(t, seen.SeenURL("https://a.com/y"))

	assert.False(t, seen.SimilarTitle("OpenAI launches new reasoning model today"))
	assert.True(t, seen.SimilarTitle("OpenAI launches new reasoning model"))
	assert.False(t, seen.SimilarTitle("Completely different subject matter entirely"))

	content := "some long article body with enough words to build grams from it properly"
	assert.False(t, seen.SeenContent(content))
	assert.True(t, seen.SeenContent(content))
}
