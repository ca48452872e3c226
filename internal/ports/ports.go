package ports

import (
	"context"

	"GroupWatch/internal/domain"
)

// Session is an exclusive, stateful handle to one extraction target. A
// session is owned by exactly one worker at a time and never shared.
type Session interface {
	ID() string
	Close(ctx context.Context) error
}

// Extractor opens sessions against the feed provider and pulls candidate
// items from a source. Extract errors carry a kind (crash, timeout, parse)
// that the orchestrator dispatches on; see extract.KindOf.
type Extractor interface {
	OpenSession(ctx context.Context) (Session, error)
	Extract(ctx context.Context, session Session, source domain.SourceConfig) ([]domain.CandidateItem, error)
}

// IntentClassifier decides whether a post asks for a service or offers one.
// lang is the detected ISO 639-3 code of the post, "und" when unreliable.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, title, body, lang string) (domain.Intent, error)
}

// CategoryResult is the unvalidated output of category classification.
type CategoryResult struct {
	Category    string
	Secondaries []string
	Location    string
}

// CategoryClassifier extracts the primary category, secondary categories,
// and the mentioned location. Labels are raw strings; callers normalize
// them against the taxonomy.
type CategoryClassifier interface {
	ClassifyCategory(ctx context.Context, title, body, lang string) (CategoryResult, error)
}

// TransportConfirmer double-checks borderline transport/moving matches
// raised by the fast-path keyword pre-check.
type TransportConfirmer interface {
	ConfirmTransport(ctx context.Context, title, body string) (bool, error)
}

// PostFilter narrows Query results; zero values mean "no constraint".
type PostFilter struct {
	GroupURL string
	Search   string
	OnlyNew  bool
	Limit    int
	Offset   int
}

// GroupCount is a per-group post tally inside StoreStats.
type GroupCount struct {
	GroupName string
	Count     int
}

// StoreStats summarizes the store for the downstream read API.
type StoreStats struct {
	Total   int
	New     int
	ByGroup []GroupCount
}

// PostStore persists deduplicated posts. Insert must treat a PostID
// uniqueness violation as inserted=false rather than an error.
type PostStore interface {
	FindByID(ctx context.Context, postID string) (*domain.Post, error)
	FindByBody(ctx context.Context, normalizedBody string) (*domain.Post, error)
	Insert(ctx context.Context, post domain.Post) (bool, error)
	UpdateCategory(ctx context.Context, postID string, category domain.Category, secondaries []domain.Category, location string, state domain.ClassificationState) error
	MarkNotified(ctx context.Context, postIDs []string) error
	Query(ctx context.Context, filter PostFilter) ([]domain.Post, int, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// Notifier delivers a batch of posts to the outbound channel. A nil error
// means confirmed delivery; anything else leaves the posts eligible for a
// retry on a later cycle.
type Notifier interface {
	Send(ctx context.Context, posts []domain.Post, sourceURL string) error
}

// SourceProvider loads the monitored sources, fresh per orchestrator start.
type SourceProvider interface {
	Sources(ctx context.Context) ([]domain.SourceConfig, error)
}
