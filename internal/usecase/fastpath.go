package usecase

import (
	"context"
	"log/slog"
	"strings"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// transportKeywords are the cheap pre-check terms for the moving/transport
// fast path (Norwegian feeds plus ASCII fallbacks for stripped diacritics).
var transportKeywords = []string{
	"kjøre", "kjøring", "kjoring", "kjøretur",
	"flytte", "flytting", "flyttejobb",
	"transport", "frakt", "levering", "hente",
	"sjåfør", "sjafoer", "fører", "førerkort", "forerkort",
	"varebil", "henger",
}

// MovingDetector is a single-purpose predicate for posts primarily asking
// for transport or moving help. An obvious keyword-plus-request match
// short-circuits the LLM confirmation call.
type MovingDetector struct {
	confirmer ports.TransportConfirmer
	logger    *slog.Logger
}

// NewMovingDetector wires the LLM confirmation port; a nil confirmer keeps
// only the keyword path.
func NewMovingDetector(confirmer ports.TransportConfirmer, logger *slog.Logger) *MovingDetector {
	return &MovingDetector{confirmer: confirmer, logger: logger}
}

// Category names the taxonomy member this detector force-sets on a match.
func (d *MovingDetector) Category() domain.Category {
	return domain.CategoryTransport
}

// Detect reports whether the post is primarily a transport/moving request.
// Confirmation failures count as "no match" so the item falls through to
// the general cascade instead of being dropped.
func (d *MovingDetector) Detect(ctx context.Context, title, body string) bool {
	text := strings.ToLower(title + "\n" + body)

	if !containsAny(text, transportKeywords) {
		return false
	}
	if isObviousOffer(title, body) {
		return false
	}
	if taskPhrasingExpr.MatchString(text) {
		if d.logger != nil {
			d.logger.Debug("fast-path keyword match", "title", truncate(title, 60))
		}
		return true
	}

	if d.confirmer == nil {
		return false
	}
	ok, err := d.confirmer.ConfirmTransport(ctx, title, body)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("fast-path confirmation failed", "error", err, "title", truncate(title, 60))
		}
		return false
	}
	return ok
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
