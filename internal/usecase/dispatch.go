package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/metrics"
	"GroupWatch/internal/ports"
)

// DispatchGate enforces at-most-once notification: the notified flag flips
// only after the dispatcher confirmed delivery, so a failed send leaves the
// post eligible for a retry on a later cycle.
type DispatchGate struct {
	store    ports.PostStore
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewDispatchGate wires the store and the outbound channel.
func NewDispatchGate(store ports.PostStore, notifier ports.Notifier, logger *slog.Logger) *DispatchGate {
	return &DispatchGate{store: store, notifier: notifier, logger: logger}
}

// NotifyIfNew sends a single post unless it was already notified. Returns
// whether a notification went out.
func (g *DispatchGate) NotifyIfNew(ctx context.Context, post *domain.Post) (bool, error) {
	if post.Notified {
		return false, nil
	}
	sent, err := g.NotifyBatch(ctx, []*domain.Post{post}, post.GroupURL)
	return sent > 0, err
}

// NotifyBatch sends every not-yet-notified post in the slice as one message
// and marks the delivered ones. Already-notified entries are skipped.
func (g *DispatchGate) NotifyBatch(ctx context.Context, posts []*domain.Post, sourceURL string) (int, error) {
	var pending []*domain.Post
	for _, p := range posts {
		if !p.Notified {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 || g.notifier == nil {
		return 0, nil
	}

	payload := make([]domain.Post, len(pending))
	ids := make([]string, len(pending))
	for i, p := range pending {
		payload[i] = *p
		ids[i] = p.PostID
	}

	if err := g.notifier.Send(ctx, payload, sourceURL); err != nil {
		return 0, fmt.Errorf("dispatch %d posts: %w", len(pending), err)
	}

	if err := g.store.MarkNotified(ctx, ids); err != nil {
		// Delivery happened; a failed flag write means a possible duplicate
		// next cycle, which is the accepted trade-off.
		if g.logger != nil {
			g.logger.Error("mark notified failed", "error", err, "count", len(ids))
		}
		return len(pending), fmt.Errorf("mark notified: %w", err)
	}

	for _, p := range pending {
		p.Notified = true
	}
	metrics.NotificationsSent.Add(float64(len(pending)))
	return len(pending), nil
}
