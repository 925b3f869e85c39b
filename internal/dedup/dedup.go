// Package dedup provides URL normalization, content hashing, and
// near-duplicate fingerprinting for batch-local duplicate elimination.
// The authoritative duplicate gate stays with the ingest sink; everything
// here is a best-effort filter that saves fetch and analysis work.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

// Tracking parameters stripped during URL normalization, in addition to
// any parameter with a utm_ prefix.
var trackingParams = map[string]struct{}{
	"fbclid":     {},
	"gclid":      {},
	"msclkid":    {},
	"_ga":        {},
	"ref":        {},
	"ref_source": {},
	"referrer":   {},
}

// NormalizeURL strips tracking query parameters and the fragment from a URL.
// Non-tracking parameters are preserved. Unparseable input is returned as-is.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	for key := range q {
		if _, tracked := trackingParams[key]; tracked || strings.HasPrefix(key, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String()
}

// ContentHash returns a stable SHA-256 digest identifying an article by its
// normalized URL and normalized title.
func ContentHash(rawURL, title string) string {
	normTitle := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL) + "\x00" + normTitle))
	return hex.EncodeToString(sum[:])
}

const (
	fingerprintGramSize = 3
	fingerprintSamples  = 100
	fingerprintHexLen   = 16
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Fingerprint returns a 16-hex-char digest over a deterministic sample of
// word 3-grams. Two contents whose sampled gram sets match collide to the
// same fingerprint even after minor edits elsewhere in the text.
func Fingerprint(content string) string {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(content), " ")
	words := strings.Fields(cleaned)

	var grams []string
	if len(words) < fingerprintGramSize {
		grams = []string{strings.Join(words, " ")}
	} else {
		grams = make([]string, 0, len(words)-fingerprintGramSize+1)
		for i := 0; i+fingerprintGramSize <= len(words); i++ {
			grams = append(grams, strings.Join(words[i:i+fingerprintGramSize], " "))
		}
	}

	// Evenly spaced sample keeps the digest stable for long documents.
	sampled := grams
	if len(grams) > fingerprintSamples {
		sampled = make([]string, 0, fingerprintSamples)
		for i := 0; i < fingerprintSamples; i++ {
			sampled = append(sampled, grams[i*len(grams)/fingerprintSamples])
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(sampled, "|")))
	return hex.EncodeToString(sum[:])[:fingerprintHexLen]
}

// TextSimilarity computes Jaccard similarity over words longer than three
// characters. Returns a value in [0,1].
func TextSimilarity(a, b string) float64 {
	setA := significantWords(a)
	setB := significantWords(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

const titleSimilarityThreshold = 0.7

// TitlesSimilar reports whether two titles are near-duplicates.
func TitlesSimilar(a, b string) bool {
	return TextSimilarity(a, b) >= titleSimilarityThreshold
}

func significantWords(s string) map[string]struct{} {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(s), " ")
	set := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

// BatchSeen tracks what a single source crawl has already handled so the
// per-item loop can skip duplicates before spending fetch or analysis work.
// It is private to one crawl task and needs no locking.
type BatchSeen struct {
	urls   map[string]struct{}
	titles []string
	prints map[string]struct{}
}

// NewBatchSeen creates an empty batch-local duplicate tracker.
func NewBatchSeen() *BatchSeen {
	return &BatchSeen{
		urls:   make(map[string]struct{}),
		prints: make(map[string]struct{}),
	}
}

// SeenURL records a normalized URL and reports whether it was already seen.
func (s *BatchSeen) SeenURL(normalized string) bool {
	if _, ok := s.urls[normalized]; ok {
		return true
	}
	s.urls[normalized] = struct{}{}
	return false
}

// SimilarTitle records a title and reports whether a near-duplicate title
// was already seen in this batch.
func (s *BatchSeen) SimilarTitle(title string) bool {
	for _, prev := range s.titles {
		if TitlesSimilar(prev, title) {
			return true
		}
	}
	s.titles = append(s.titles, title)
	return false
}

// SeenContent records a content fingerprint and reports whether an
// equivalent content body was already seen in this batch.
func (s *BatchSeen) SeenContent(content string) bool {
	fp := Fingerprint(content)
	if _, ok := s.prints[fp]; ok {
		return true
	}
	s.prints[fp] = struct{}{}
	return false
}
