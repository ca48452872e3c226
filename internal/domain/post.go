package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CandidateItem is a raw extraction result before deduplication.
// RawID is the provider identifier when extraction managed to recover one;
// it is empty or "unknown" when the provider rendered a synthetic anchor.
type CandidateItem struct {
	RawID        string
	Title        string
	Body         string
	SourceURL    string
	GroupURL     string
	GroupName    string
	RawTimestamp string
}

// ClassificationState enumerates how far a post made it through the cascade.
type ClassificationState string

const (
	StateUnclassified         ClassificationState = "unclassified"
	StateClassified           ClassificationState = "classified"
	StateClassificationFailed ClassificationState = "failed"
)

// Post is the durable, deduplicated record keyed by PostID.
type Post struct {
	PostID              string
	Title               string
	Body                string
	SourceURL           string
	GroupName           string
	GroupURL            string
	RawTimestamp        string
	PostedAt            time.Time // zero when the raw timestamp was unparseable
	Category            Category
	SecondaryCategories []Category
	Location            string
	State               ClassificationState
	Notified            bool
	ScrapedAt           time.Time
}

// Intent is the outcome of the request-vs-offer classification stage.
type Intent string

const (
	IntentRequest Intent = "REQUEST"
	IntentOffer   Intent = "OFFER"
)

// SourceConfig describes one monitored group. Immutable during a cycle.
type SourceConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Depth   int    `yaml:"depth"`
	Enabled bool   `yaml:"enabled"`
}

// CycleStats aggregates counters for one scrape cycle. It is logged at
// cycle end and never persisted.
type CycleStats struct {
	Cycle      int
	StartedAt  time.Time
	Scraped    int
	Duplicates int
	Classified int
	Notified   int
	Errors     int
}

const syntheticIDPrefix = "h_"

// PostID resolves the stable key for a candidate: the provider identifier
// when present, otherwise a deterministic hash of group URL and body prefix.
func (c CandidateItem) PostID() string {
	if id := strings.TrimSpace(c.RawID); id != "" && id != "unknown" {
		return id
	}
	return SyntheticPostID(c.GroupURL, c.Body)
}

// HasProviderID reports whether the extraction adapter recovered a real
// provider identifier for this item.
func (c CandidateItem) HasProviderID() bool {
	id := strings.TrimSpace(c.RawID)
	return id != "" && id != "unknown"
}

// SyntheticPostID derives a deterministic fallback identifier from the group
// URL and the first 200 bytes of the body.
func SyntheticPostID(groupURL, body string) string {
	prefix := body
	if len(prefix) > 200 {
		prefix = prefix[:200]
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s", groupURL, prefix)))
	return syntheticIDPrefix + hex.EncodeToString(sum[:])[:16]
}

// IsSyntheticID reports whether an identifier was hash-derived rather than
// extracted from the provider.
func IsSyntheticID(id string) bool {
	return strings.HasPrefix(id, syntheticIDPrefix)
}

// NormalizeBody collapses all whitespace runs to single spaces so the same
// text scraped twice compares equal regardless of rendering differences.
func NormalizeBody(body string) string {
	return strings.Join(strings.Fields(body), " ")
}
