package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// fakeStore is an in-memory PostStore for use case tests.
type fakeStore struct {
	mu        sync.Mutex
	posts     map[string]*domain.Post
	insertErr error
	markErr   error
	updates   int
}

var _ ports.PostStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{posts: map[string]*domain.Post{}}
}

func (s *fakeStore) add(post domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := post
	s.posts[p.PostID] = &p
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *fakeStore) get(postID string) *domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) FindByBody(ctx context.Context, normalizedBody string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if domain.NormalizeBody(p.Body) == normalizedBody {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Insert(ctx context.Context, post domain.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, ok := s.posts[post.PostID]; ok {
		return false, nil
	}
	p := post
	s.posts[p.PostID] = &p
	return true, nil
}

func (s *fakeStore) UpdateCategory(ctx context.Context, postID string, category domain.Category, secondaries []domain.Category, location string, state domain.ClassificationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if p, ok := s.posts[postID]; ok {
		p.Category = category
		p.SecondaryCategories = secondaries
		p.Location = location
		p.State = state
	}
	return nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, postIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	for _, id := range postIDs {
		if p, ok := s.posts[id]; ok {
			p.Notified = true
		}
	}
	return nil
}

func (s *fakeStore) Query(ctx context.Context, filter ports.PostFilter) ([]domain.Post, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Post
	for _, p := range s.posts {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (s *fakeStore) Stats(ctx context.Context) (ports.StoreStats, error) {
	return ports.StoreStats{Total: s.count()}, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]domain.Post
	err     error
}

var _ ports.Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) Send(ctx context.Context, posts []domain.Post, sourceURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.batches = append(n.batches, posts)
	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, b := range n.batches {
		total += len(b)
	}
	return total
}

type fakeIntent struct {
	intent   domain.Intent
	err      error
	calls    int
	lastLang string
}

func (f *fakeIntent) ClassifyIntent(ctx context.Context, title, body, lang string) (domain.Intent, error) {
	f.calls++
	f.lastLang = lang
	if f.err != nil {
		return domain.IntentRequest, f.err
	}
	return f.intent, nil
}

type fakeCategory struct {
	result   ports.CategoryResult
	err      error
	calls    int
	lastLang string
}

func (f *fakeCategory) ClassifyCategory(ctx context.Context, title, body, lang string) (ports.CategoryResult, error) {
	f.calls++
	f.lastLang = lang
	if f.err != nil {
		return ports.CategoryResult{}, f.err
	}
	return f.result, nil
}

type fakeConfirmer struct {
	ok    bool
	err   error
	calls int
}

func (f *fakeConfirmer) ConfirmTransport(ctx context.Context, title, body string) (bool, error) {
	f.calls++
	return f.ok, f.err
}

type fakeDetector struct {
	category domain.Category
	match    bool
}

func (f *fakeDetector) Category() domain.Category { return f.category }

func (f *fakeDetector) Detect(ctx context.Context, title, body string) bool { return f.match }

// fakeExtractor scripts per-source failures and records session lifecycle
// plus the peak number of concurrent Extract calls.
type fakeExtractor struct {
	mu        sync.Mutex
	opened    int
	closed    int
	active    int
	maxActive int
	delay     time.Duration
	fail      map[string][]error
	items     map[string][]domain.CandidateItem
}

var _ ports.Extractor = (*fakeExtractor)(nil)

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		fail:  map[string][]error{},
		items: map[string][]domain.CandidateItem{},
	}
}

func (f *fakeExtractor) OpenSession(ctx context.Context) (ports.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &fakeSession{id: fmt.Sprintf("s%d", f.opened), ext: f}, nil
}

func (f *fakeExtractor) Extract(ctx context.Context, session ports.Session, source domain.SourceConfig) ([]domain.CandidateItem, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	var scripted error
	if errs := f.fail[source.URL]; len(errs) > 0 {
		scripted = errs[0]
		f.fail[source.URL] = errs[1:]
	}
	items := f.items[source.URL]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if scripted != nil {
		return nil, scripted
	}
	return items, nil
}

func (f *fakeExtractor) sessionsOpened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *fakeExtractor) sessionsClosed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeExtractor) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

type fakeSession struct {
	id  string
	ext *fakeExtractor
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Close(ctx context.Context) error {
	s.ext.mu.Lock()
	defer s.ext.mu.Unlock()
	s.ext.closed++
	return nil
}

type staticSources struct {
	sources []domain.SourceConfig
	err     error
}

func (s *staticSources) Sources(ctx context.Context) ([]domain.SourceConfig, error) {
	return s.sources, s.err
}
