package usecase

import (
	"context"
	"log/slog"
	"time"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/metrics"
	"GroupWatch/internal/ports"
	"GroupWatch/internal/timeparse"
)

// FastPathDetector is a narrow predicate evaluated before the general
// cascade. A match force-sets the primary category and notifies right away.
type FastPathDetector interface {
	Category() domain.Category
	Detect(ctx context.Context, title, body string) bool
}

// PipelineDeps wires the per-source processing chain.
type PipelineDeps struct {
	Dedup     *Deduplicator
	Cascade   *Cascade
	Detectors []FastPathDetector
	Gate      *DispatchGate
	Store     ports.PostStore
	Logger    *slog.Logger
	// MaxPostAge bounds fast-path and notification eligibility; zero
	// disables the age check.
	MaxPostAge time.Duration
	// Watch lists the categories that cross the notification threshold.
	Watch []domain.Category
	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// Pipeline turns one source's candidate items into stored, classified,
// possibly-notified posts. Processing within a source is strictly
// sequential: dedupe, fast-path, cascade, persist, notify.
type Pipeline struct {
	dedup      *Deduplicator
	cascade    *Cascade
	detectors  []FastPathDetector
	gate       *DispatchGate
	store      ports.PostStore
	logger     *slog.Logger
	maxPostAge time.Duration
	watch      map[domain.Category]struct{}
	now        func() time.Time
}

// NewPipeline constructs the per-source processing chain.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	watch := make(map[domain.Category]struct{}, len(deps.Watch))
	for _, cat := range deps.Watch {
		watch[cat] = struct{}{}
	}
	return &Pipeline{
		dedup:      deps.Dedup,
		cascade:    deps.Cascade,
		detectors:  deps.Detectors,
		gate:       deps.Gate,
		store:      deps.Store,
		logger:     deps.Logger,
		maxPostAge: deps.MaxPostAge,
		watch:      watch,
		now:        now,
	}
}

// ProcessItems ingests the extraction results of one source and returns the
// per-source counter delta. Item-level failures are counted and logged,
// never propagated.
func (p *Pipeline) ProcessItems(ctx context.Context, source domain.SourceConfig, items []domain.CandidateItem) domain.CycleStats {
	var stats domain.CycleStats
	var pending []*domain.Post

	for _, item := range items {
		stats.Scraped++
		metrics.PostsScraped.WithLabelValues(source.Name).Inc()

		dup, existing, err := p.dedup.Check(ctx, item)
		if err != nil {
			stats.Errors++
			p.log().Error("dedup check failed", "source", source.Name, "error", err)
			continue
		}
		if dup {
			stats.Duplicates++
			if existing != nil && existing.State != domain.StateClassified {
				p.backfill(ctx, existing)
			}
			continue
		}

		post := p.buildPost(item)
		tooOld := p.tooOld(post.PostedAt)

		if det := p.matchFastPath(ctx, item, tooOld); det != nil {
			post.Category = det.Category()
			post.State = domain.StateClassified
			stats.Classified++
			metrics.PostsClassified.WithLabelValues("fastpath").Inc()

			if !p.persist(ctx, &post, &stats, source) {
				continue
			}
			sent, err := p.gate.NotifyIfNew(ctx, &post)
			if err != nil {
				stats.Errors++
				p.log().Warn("fast-path notify failed, will retry next cycle",
					"post_id", post.PostID, "error", err)
			} else if sent {
				stats.Notified++
				p.log().Info("fast-path notification sent",
					"post_id", post.PostID, "category", post.Category)
			}
			continue
		}

		outcome := p.cascade.Classify(ctx, post.Title, post.Body)
		post.Category = outcome.Category
		post.SecondaryCategories = outcome.Secondaries
		post.Location = outcome.Location
		post.State = outcome.State
		countOutcome(&stats, outcome)

		if !p.persist(ctx, &post, &stats, source) {
			continue
		}

		if outcome.Intent == domain.IntentRequest && !tooOld && p.watched(post.Category) {
			pending = append(pending, &post)
		}
	}

	if len(pending) > 0 {
		sent, err := p.gate.NotifyBatch(ctx, pending, source.URL)
		stats.Notified += sent
		if err != nil {
			stats.Errors++
			p.log().Warn("batch notify failed, will retry next cycle",
				"source", source.Name, "error", err)
		}
	}

	return stats
}

// backfill reruns the cascade for a duplicate sighting of a record that
// still lacks a category from an earlier degraded classification.
func (p *Pipeline) backfill(ctx context.Context, existing *domain.Post) {
	outcome := p.cascade.Classify(ctx, existing.Title, existing.Body)
	if outcome.State != domain.StateClassified {
		return
	}
	err := p.store.UpdateCategory(ctx, existing.PostID,
		outcome.Category, outcome.Secondaries, outcome.Location, outcome.State)
	if err != nil {
		p.log().Warn("classification backfill failed", "post_id", existing.PostID, "error", err)
		return
	}
	p.log().Info("backfilled classification", "post_id", existing.PostID, "category", outcome.Category)
}

func (p *Pipeline) buildPost(item domain.CandidateItem) domain.Post {
	now := p.now()
	post := domain.Post{
		PostID:       item.PostID(),
		Title:        item.Title,
		Body:         item.Body,
		SourceURL:    item.SourceURL,
		GroupName:    item.GroupName,
		GroupURL:     item.GroupURL,
		RawTimestamp: item.RawTimestamp,
		Category:     domain.CategoryGeneral,
		Location:     "Unknown",
		State:        domain.StateUnclassified,
		ScrapedAt:    now,
	}
	if postedAt, ok := timeparse.Parse(item.RawTimestamp, now); ok {
		post.PostedAt = postedAt
	}
	return post
}

func (p *Pipeline) matchFastPath(ctx context.Context, item domain.CandidateItem, tooOld bool) FastPathDetector {
	if tooOld {
		return nil
	}
	for _, det := range p.detectors {
		if det.Detect(ctx, item.Title, item.Body) {
			return det
		}
	}
	return nil
}

// persist inserts the post, treating a uniqueness rejection as a dedup
// outcome. Returns whether the post is now durably stored.
func (p *Pipeline) persist(ctx context.Context, post *domain.Post, stats *domain.CycleStats, source domain.SourceConfig) bool {
	inserted, err := p.store.Insert(ctx, *post)
	if err != nil {
		stats.Errors++
		p.log().Error("insert failed", "post_id", post.PostID, "source", source.Name, "error", err)
		return false
	}
	if !inserted {
		stats.Duplicates++
		return false
	}
	metrics.PostsNew.Inc()
	p.log().Info("new post stored",
		"post_id", post.PostID, "source", source.Name,
		"category", post.Category, "title", truncate(post.Title, 50))
	return true
}

// tooOld is false for unparseable timestamps: unknown age never disqualifies.
func (p *Pipeline) tooOld(postedAt time.Time) bool {
	if p.maxPostAge <= 0 || postedAt.IsZero() {
		return false
	}
	return p.now().Sub(postedAt) > p.maxPostAge
}

func (p *Pipeline) watched(cat domain.Category) bool {
	_, ok := p.watch[cat]
	return ok
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

func countOutcome(stats *domain.CycleStats, outcome Outcome) {
	switch {
	case outcome.Prefiltered:
		metrics.PostsClassified.WithLabelValues("prefiltered").Inc()
		stats.Classified++
	case outcome.State == domain.StateClassificationFailed:
		metrics.PostsClassified.WithLabelValues("failed").Inc()
	default:
		metrics.PostsClassified.WithLabelValues("classified").Inc()
		stats.Classified++
	}
}
