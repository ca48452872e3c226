// Package extractor implements the extraction port against the provider's
// basic-HTML group view. Provider DOM specifics live entirely behind this
// adapter; the pipeline only sees candidate items and tagged errors.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/extract"
	"GroupWatch/internal/ports"
)

var sessionCounter atomic.Int64

// httpSession is one authenticated browsing context: a cookie jar shared
// across requests so the provider sees a continuous visit.
type httpSession struct {
	id     string
	client *http.Client
}

var _ ports.Session = (*httpSession)(nil)

func (s *httpSession) ID() string { return s.id }

func (s *httpSession) Close(ctx context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// HTMLExtractor pulls candidate items from paginated group pages.
type HTMLExtractor struct {
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Extractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor wires the adapter; timeout bounds each page request.
func NewHTMLExtractor(timeout time.Duration, logger *slog.Logger) *HTMLExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTMLExtractor{timeout: timeout, logger: logger}
}

// OpenSession creates a fresh browsing context with its own cookie jar.
func (e *HTMLExtractor) OpenSession(ctx context.Context) (ports.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	id := fmt.Sprintf("sess-%d", sessionCounter.Add(1))
	return &httpSession{
		id: id,
		client: &http.Client{
			Jar:     jar,
			Timeout: e.timeout,
		},
	}, nil
}

// Extract walks the source's pages up to its depth budget and returns every
// candidate item found. Failure kinds are tagged for the orchestrator:
// deadline overruns are timeouts, rejected sessions are crashes, and a
// single malformed entry is skipped rather than failing the source.
func (e *HTMLExtractor) Extract(ctx context.Context, session ports.Session, source domain.SourceConfig) ([]domain.CandidateItem, error) {
	sess, ok := session.(*httpSession)
	if !ok {
		return nil, fmt.Errorf("unexpected session type %T", session)
	}

	var items []domain.CandidateItem
	for page := 1; page <= source.Depth; page++ {
		pageURL, err := buildPageURL(source.URL, page)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", source.Name, err)
		}

		doc, err := e.fetchDocument(ctx, sess, pageURL)
		if err != nil {
			return nil, fmt.Errorf("source %s page %d: %w", source.Name, page, err)
		}

		pageItems := e.extractItems(doc, source)
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
	}
	return items, nil
}

func (e *HTMLExtractor) fetchDocument(ctx context.Context, sess *httpSession, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "GroupWatch/1.0")

	resp, err := sess.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, extract.Timeout(err)
		}
		return nil, extract.Crash(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		// The provider dropped the session; a new one must log in again.
		return nil, extract.Crash(fmt.Errorf("session rejected: %s", resp.Status))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, extract.Timeout(fmt.Errorf("provider unavailable: %s", resp.Status))
	default:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, extract.Parse(err)
	}
	return doc, nil
}

func (e *HTMLExtractor) extractItems(doc *goquery.Document, source domain.SourceConfig) []domain.CandidateItem {
	var items []domain.CandidateItem

	doc.Find("article.post").Each(func(i int, sel *goquery.Selection) {
		item, err := parseEntry(sel, source)
		if err != nil {
			if e.logger != nil {
				e.logger.Debug("skipping malformed entry",
					"source", source.Name, "index", i, "error", err)
			}
			return
		}
		items = append(items, item)
	})

	return items
}

func parseEntry(sel *goquery.Selection, source domain.SourceConfig) (domain.CandidateItem, error) {
	body := strings.TrimSpace(sel.Find(".post-body").First().Text())
	if body == "" {
		return domain.CandidateItem{}, fmt.Errorf("entry has no body")
	}

	rawID, _ := sel.Attr("data-post-id")
	title := strings.TrimSpace(sel.Find(".post-title").First().Text())
	if title == "" {
		title = firstLine(body)
	}

	href, _ := sel.Find("a.post-link").First().Attr("href")
	if href != "" && !strings.HasPrefix(href, "http") {
		if abs, err := absoluteURL(source.URL, href); err == nil {
			href = abs
		}
	}

	rawTimestamp := strings.TrimSpace(sel.Find(".post-time").First().Text())

	return domain.CandidateItem{
		RawID:        strings.TrimSpace(rawID),
		Title:        title,
		Body:         body,
		SourceURL:    href,
		GroupURL:     source.URL,
		GroupName:    source.Name,
		RawTimestamp: rawTimestamp,
	}, nil
}

func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", base, err)
	}
	query := parsed.Query()
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func absoluteURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		s = s[:idx]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.TrimSpace(s)
}
