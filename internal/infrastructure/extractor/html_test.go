package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/extract"
)

const pageHTML = `
<html><body>
  <article class="post" data-post-id="101">
    <h2 class="post-title">Flyttehjelp</h2>
    <div class="post-body">Trenger hjelp med flytting av sofa</div>
    <span class="post-time">2h</span>
    <a class="post-link" href="/posts/101">link</a>
  </article>
  <article class="post">
    <div class="post-body">Ser etter noen som kan male</div>
    <span class="post-time">Yesterday at 17:48</span>
  </article>
  <article class="post" data-post-id="103">
    <h2 class="post-title">Empty</h2>
    <span class="post-time">1d</span>
  </article>
</body></html>`

func newSession(t *testing.T, e *HTMLExtractor) *httpSession {
	t.Helper()
	sess, err := e.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession error: %v", err)
	}
	return sess.(*httpSession)
}

func TestExtractParsesEntries(t *testing.T) {
	t.Parallel()

	var pages atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		if r.URL.Query().Get("page") != "" {
			_, _ = w.Write([]byte(`<html><body></body></html>`))
			return
		}
		_, _ = w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	e := NewHTMLExtractor(5*time.Second, nil)
	sess := newSession(t, e)

	source := domain.SourceConfig{Name: "test", URL: server.URL, Depth: 2, Enabled: true}
	items, err := e.Extract(context.Background(), sess, source)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	// The bodyless third entry is skipped.
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.RawID != "101" || first.Title != "Flyttehjelp" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.RawTimestamp != "2h" {
		t.Fatalf("unexpected timestamp: %s", first.RawTimestamp)
	}
	if !strings.HasPrefix(first.SourceURL, server.URL) {
		t.Fatalf("permalink not absolutized: %s", first.SourceURL)
	}
	if first.GroupURL != server.URL || first.GroupName != "test" {
		t.Fatalf("group fields not filled: %+v", first)
	}

	second := items[1]
	if second.RawID != "" {
		t.Fatalf("expected empty raw id, got %q", second.RawID)
	}
	if second.Title != "Ser etter noen som kan male" {
		t.Fatalf("title should fall back to the body first line, got %q", second.Title)
	}

	// Depth 2: the empty second page stops pagination.
	if pages.Load() != 2 {
		t.Fatalf("expected 2 page fetches, got %d", pages.Load())
	}
}

func TestExtractTagsSessionRejectionAsCrash(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	e := NewHTMLExtractor(5*time.Second, nil)
	sess := newSession(t, e)

	_, err := e.Extract(context.Background(), sess,
		domain.SourceConfig{Name: "test", URL: server.URL, Depth: 1})
	if !extract.IsCrash(err) {
		t.Fatalf("expected crash kind, got %v", err)
	}
}

func TestExtractTagsServerErrorAsTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := NewHTMLExtractor(5*time.Second, nil)
	sess := newSession(t, e)

	_, err := e.Extract(context.Background(), sess,
		domain.SourceConfig{Name: "test", URL: server.URL, Depth: 1})
	if !extract.IsTimeout(err) {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	u, err := buildPageURL("https://g.example/groups/1?view=list", 3)
	if err != nil {
		t.Fatalf("buildPageURL error: %v", err)
	}
	if !strings.Contains(u, "page=3") || !strings.Contains(u, "view=list") {
		t.Fatalf("unexpected url: %s", u)
	}

	u, err = buildPageURL("https://g.example/groups/1", 1)
	if err != nil {
		t.Fatalf("buildPageURL error: %v", err)
	}
	if strings.Contains(u, "page=") {
		t.Fatalf("first page must not carry a page parameter: %s", u)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	t.Parallel()

	e := NewHTMLExtractor(time.Second, nil)
	a := newSession(t, e)
	b := newSession(t, e)
	if a.ID() == b.ID() {
		t.Fatalf("session ids must differ, both %s", a.ID())
	}
}
