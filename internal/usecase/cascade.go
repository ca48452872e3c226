package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// Outcome is the result of running one post through the cascade.
type Outcome struct {
	Intent      domain.Intent
	Category    domain.Category
	Secondaries []domain.Category
	Location    string
	State       domain.ClassificationState
	Language    string
	Prefiltered bool
}

// Cascade runs the multi-stage classification: a deterministic pre-filter
// that rejects obvious offers without a service call, then an intent call,
// then a category call for posts that turned out to be requests. The
// detected post language rides along into both calls so prompts can match
// it. Service failures degrade a single item, never the cycle.
type Cascade struct {
	intent   ports.IntentClassifier
	category ports.CategoryClassifier
	logger   *slog.Logger
}

// NewCascade wires both classifier ports.
func NewCascade(intent ports.IntentClassifier, category ports.CategoryClassifier, logger *slog.Logger) *Cascade {
	return &Cascade{intent: intent, category: category, logger: logger}
}

// Offer pre-filter patterns. These must be high precision: a false positive
// silently drops a real request, a false negative only costs one LLM call.
var (
	selfReferentialExpr = regexp.MustCompile(`(?i)\b(trenger|trengs) du\b|\bdo you need\b|\bneed help\s*\?`)
	advertisingExpr     = regexp.MustCompile(`(?i)\b(tilbyr|vi utfører|vi tilbyr|leier ut|utleie av|we offer|i offer|bestill nå|rabatt|kampanje)\b`)
	jobSeekerExpr       = regexp.MustCompile(`(?i)\b(søker jobb|ser etter jobb|looking for (a )?job|ledig for oppdrag|tar oppdrag)\b`)
	contactInviteExpr   = regexp.MustCompile(`(?i)\b(send (pm|dm|melding)|kontakt (meg|oss)|dm me|pm me)\b`)
	taskPhrasingExpr    = regexp.MustCompile(`(?i)\b(trenger hjelp|trenger noen|ser etter noen|ønsker hjelp|ønsker å få|need someone|looking for someone|need help with)\b`)
)

// shortBodyLimit bounds the "short body plus contact invite without a
// concrete task" rule.
const shortBodyLimit = 160

// Classify runs the cascade. It always returns a usable outcome: on service
// failure the intent defaults to REQUEST and the category to the taxonomy
// default, with State marking the degradation.
func (c *Cascade) Classify(ctx context.Context, title, body string) Outcome {
	out := Outcome{
		Intent:   domain.IntentRequest,
		Category: domain.CategoryGeneral,
		Location: "Unknown",
		State:    domain.StateClassified,
		Language: detectLanguage(title + " " + body),
	}

	if isObviousOffer(title, body) {
		out.Intent = domain.IntentOffer
		out.Prefiltered = true
		if c.logger != nil {
			c.logger.Debug("pre-filter rejected offer", "title", truncate(title, 60))
		}
		return out
	}

	intent, err := c.intent.ClassifyIntent(ctx, title, body, out.Language)
	if err != nil {
		// Fail open: losing a real request is worse than letting an
		// extra offer through.
		if c.logger != nil {
			c.logger.Warn("intent classification failed", "error", err, "title", truncate(title, 60))
		}
		out.State = domain.StateClassificationFailed
		return out
	}
	out.Intent = intent
	if intent == domain.IntentOffer {
		return out
	}

	result, err := c.category.ClassifyCategory(ctx, title, body, out.Language)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("category classification failed", "error", err, "title", truncate(title, 60))
		}
		out.State = domain.StateClassificationFailed
		return out
	}

	out.Category = domain.NormalizeCategory(result.Category)
	out.Secondaries = domain.NormalizeSecondaries(out.Category, result.Secondaries)
	if loc := strings.TrimSpace(result.Location); loc != "" {
		out.Location = loc
	}
	if c.logger != nil {
		c.logger.Debug("cascade classified",
			"category", out.Category, "location", out.Location, "language", out.Language)
	}
	return out
}

// isObviousOffer applies the deterministic stage-1 rules.
func isObviousOffer(title, body string) bool {
	text := title + "\n" + body

	if selfReferentialExpr.MatchString(text) {
		return true
	}
	if advertisingExpr.MatchString(text) {
		return true
	}
	if jobSeekerExpr.MatchString(text) {
		return true
	}
	// Short post that only invites contact, with no concrete task named.
	if len(domain.NormalizeBody(body)) < shortBodyLimit &&
		contactInviteExpr.MatchString(text) &&
		!taskPhrasingExpr.MatchString(text) {
		return true
	}
	return false
}

func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "und"
	}
	return info.Lang.Iso6393()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
