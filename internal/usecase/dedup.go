package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// minBodyMatchLen guards the text-equality fallback against false positives
// on very short bodies ("Takk!", "PM sendt" and similar).
const minBodyMatchLen = 32

// Deduplicator decides whether a candidate item is already known. Tier 1 is
// an exact PostID lookup when the provider identifier was present; tier 2
// falls back to an exact match on the whitespace-normalized body, which
// closes the gap left by providers rendering the same content under
// different synthetic anchors across page loads.
type Deduplicator struct {
	store  ports.PostStore
	logger *slog.Logger
}

// NewDeduplicator wires the store read path.
func NewDeduplicator(store ports.PostStore, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{store: store, logger: logger}
}

// Check reports whether the candidate duplicates a stored post. Duplicates
// always come back with the existing record, whichever tier matched, so
// callers can backfill missing classification onto it.
func (d *Deduplicator) Check(ctx context.Context, item domain.CandidateItem) (bool, *domain.Post, error) {
	if item.HasProviderID() {
		existing, err := d.store.FindByID(ctx, item.PostID())
		if err != nil {
			return false, nil, fmt.Errorf("dedup lookup %s: %w", item.PostID(), err)
		}
		if existing != nil {
			return true, existing, nil
		}
	}

	normalized := domain.NormalizeBody(item.Body)
	if len(normalized) < minBodyMatchLen {
		return false, nil, nil
	}

	existing, err := d.store.FindByBody(ctx, normalized)
	if err != nil {
		return false, nil, fmt.Errorf("dedup body lookup: %w", err)
	}
	if existing == nil {
		return false, nil, nil
	}

	if d.logger != nil {
		d.logger.Debug("duplicate via body match",
			"candidate_id", item.PostID(), "stored_id", existing.PostID)
	}
	return true, existing, nil
}
