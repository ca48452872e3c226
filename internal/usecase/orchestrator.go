package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/extract"
	"GroupWatch/internal/metrics"
	"GroupWatch/internal/ports"
	"GroupWatch/internal/retry"
)

// Execution modes for the session pool.
const (
	ModeSequential = "sequential"
	ModeEphemeral  = "ephemeral"
	ModePersistent = "persistent"
)

// OrchestratorDeps wires the cycle driver.
type OrchestratorDeps struct {
	Extractor      ports.Extractor
	Pipeline       *Pipeline
	Sources        ports.SourceProvider
	Logger         *slog.Logger
	Mode           string
	MaxWorkers     int
	ExtractTimeout time.Duration
	Retry          retry.Policy
	Stagger        time.Duration
	CheckInterval  time.Duration
}

// Orchestrator schedules repeated scrape cycles over the enabled sources.
// It owns every extraction session: one shared session in sequential mode,
// one throwaway session per source per cycle in ephemeral mode, one
// long-lived session per source in persistent mode. Shutdown is observed
// cooperatively at source and cycle boundaries; in-flight work for the
// current source finishes or times out normally first.
type Orchestrator struct {
	extractor      ports.Extractor
	pipeline       *Pipeline
	sources        ports.SourceProvider
	logger         *slog.Logger
	mode           string
	maxWorkers     int
	extractTimeout time.Duration
	retry          retry.Policy
	stagger        time.Duration
	checkInterval  time.Duration

	mu        sync.Mutex
	shared    *sessionHolder            // sequential mode
	perSource map[string]*sessionHolder // persistent mode, keyed by source URL
	cycle     int
}

// NewOrchestrator constructs the cycle driver.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	mode := deps.Mode
	switch mode {
	case ModeSequential, ModeEphemeral, ModePersistent:
	default:
		mode = ModeSequential
	}
	workers := deps.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		extractor:      deps.Extractor,
		pipeline:       deps.Pipeline,
		sources:        deps.Sources,
		logger:         deps.Logger,
		mode:           mode,
		maxWorkers:     workers,
		extractTimeout: deps.ExtractTimeout,
		retry:          deps.Retry,
		stagger:        deps.Stagger,
		checkInterval:  deps.CheckInterval,
		perSource:      map[string]*sessionHolder{},
	}
}

// Run executes cycles until the context is cancelled, waiting the check
// interval between them. A failed cycle is logged and the loop continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Close(context.Background())

	for {
		stats, err := o.RunCycle(ctx)
		if err != nil {
			o.log().Error("cycle aborted", "cycle", stats.Cycle, "error", err)
		}

		select {
		case <-ctx.Done():
			o.log().Info("shutdown signal honored", "cycles_completed", o.cycle)
			return nil
		case <-time.After(o.checkInterval):
		}
	}
}

// RunCycle processes every enabled source once. Only a source-configuration
// failure aborts the cycle; individual source failures are isolated.
func (o *Orchestrator) RunCycle(ctx context.Context) (domain.CycleStats, error) {
	o.mu.Lock()
	o.cycle++
	cycle := o.cycle
	o.mu.Unlock()

	stats := domain.CycleStats{Cycle: cycle, StartedAt: time.Now()}

	sources, err := o.sources.Sources(ctx)
	if err != nil {
		return stats, fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		return stats, fmt.Errorf("no enabled sources configured")
	}

	o.log().Info("cycle starting", "cycle", cycle, "sources", len(sources), "mode", o.mode)

	switch o.mode {
	case ModeEphemeral, ModePersistent:
		o.runParallel(ctx, sources, &stats)
	default:
		o.runSequential(ctx, sources, &stats)
	}

	duration := time.Since(stats.StartedAt)
	metrics.CycleDuration.Observe(duration.Seconds())
	o.log().Info("cycle complete",
		"cycle", cycle,
		"scraped", stats.Scraped,
		"duplicates", stats.Duplicates,
		"classified", stats.Classified,
		"notified", stats.Notified,
		"errors", stats.Errors,
		"duration", duration.Round(100*time.Millisecond))

	return stats, nil
}

// Close releases every session the orchestrator still owns.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.shared != nil {
		o.shared.close(ctx)
		o.shared = nil
	}
	for url, holder := range o.perSource {
		holder.close(ctx)
		delete(o.perSource, url)
	}
}

func (o *Orchestrator) runSequential(ctx context.Context, sources []domain.SourceConfig, stats *domain.CycleStats) {
	o.mu.Lock()
	if o.shared == nil {
		o.shared = newSessionHolder(o.extractor)
	}
	holder := o.shared
	o.mu.Unlock()

	for _, src := range sources {
		if ctx.Err() != nil {
			o.log().Info("shutdown requested, skipping remaining sources", "cycle", stats.Cycle)
			return
		}
		delta := o.processSource(ctx, holder, src)
		addStats(stats, delta)
	}
}

func (o *Orchestrator) runParallel(ctx context.Context, sources []domain.SourceConfig, stats *domain.CycleStats) {
	limit := o.maxWorkers
	if len(sources) < limit {
		limit = len(sources)
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, src := range sources {
		src := src
		delay := time.Duration(i) * o.stagger
		g.Go(func() error {
			if o.mode == ModePersistent && delay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
			}
			if ctx.Err() != nil {
				return nil
			}

			holder := o.holderFor(src)
			delta := o.processSource(ctx, holder, src)
			if o.mode == ModeEphemeral {
				holder.close(context.WithoutCancel(ctx))
			}

			mu.Lock()
			addStats(stats, delta)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// holderFor returns the session holder a worker should use for a source:
// a long-lived per-source holder in persistent mode, a throwaway one
// otherwise. Sessions are never shared across concurrent workers.
func (o *Orchestrator) holderFor(src domain.SourceConfig) *sessionHolder {
	if o.mode != ModePersistent {
		return newSessionHolder(o.extractor)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	holder, ok := o.perSource[src.URL]
	if !ok {
		holder = newSessionHolder(o.extractor)
		o.perSource[src.URL] = holder
	}
	return holder
}

// processSource runs extraction with crash/timeout recovery, then hands the
// items to the pipeline. Work runs on a context detached from shutdown so
// an in-flight source completes normally; extraction still gets a hard
// per-attempt timeout.
func (o *Orchestrator) processSource(ctx context.Context, holder *sessionHolder, src domain.SourceConfig) domain.CycleStats {
	workCtx := context.WithoutCancel(ctx)

	items, err := o.extractSource(workCtx, holder, src)
	if err != nil {
		kind := "extract"
		switch extract.KindOf(err) {
		case extract.KindTimeout:
			kind = "timeout"
		case extract.KindCrash:
			kind = "crash"
		}
		metrics.SourceErrors.WithLabelValues(kind).Inc()
		o.log().Error("source abandoned for this cycle",
			"source", src.Name, "kind", kind, "error", err)
		return domain.CycleStats{Errors: 1}
	}

	o.log().Debug("source extracted", "source", src.Name, "items", len(items))
	return o.pipeline.ProcessItems(workCtx, src, items)
}

// extractSource applies the retry policy around one source's extraction. A
// crash invalidates the session so the next attempt recreates it; timeouts
// retry with backoff until the attempt budget runs out.
func (o *Orchestrator) extractSource(ctx context.Context, holder *sessionHolder, src domain.SourceConfig) ([]domain.CandidateItem, error) {
	var items []domain.CandidateItem

	attempt := func() error {
		sess, err := holder.get(ctx)
		if err != nil {
			return fmt.Errorf("acquire session: %w", err)
		}

		attemptCtx := ctx
		if o.extractTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, o.extractTimeout)
			defer cancel()
		}

		result, err := o.extractor.Extract(attemptCtx, sess, src)
		if err != nil {
			if extract.IsCrash(err) {
				o.log().Warn("session crashed, recreating",
					"source", src.Name, "session", sess.ID())
				holder.invalidate(context.WithoutCancel(ctx))
			}
			return err
		}
		items = result
		return nil
	}

	retryable := func(err error) bool {
		return extract.IsTimeout(err) || extract.IsCrash(err)
	}

	if err := o.retry.Do(ctx, attempt, retryable); err != nil {
		return nil, err
	}
	return items, nil
}

func (o *Orchestrator) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func addStats(total *domain.CycleStats, delta domain.CycleStats) {
	total.Scraped += delta.Scraped
	total.Duplicates += delta.Duplicates
	total.Classified += delta.Classified
	total.Notified += delta.Notified
	total.Errors += delta.Errors
}

// sessionHolder owns at most one live session and rebuilds it lazily after
// a crash. It is used by a single worker at a time.
type sessionHolder struct {
	extractor ports.Extractor
	sess      ports.Session
}

func newSessionHolder(extractor ports.Extractor) *sessionHolder {
	return &sessionHolder{extractor: extractor}
}

func (h *sessionHolder) get(ctx context.Context) (ports.Session, error) {
	if h.sess != nil {
		return h.sess, nil
	}
	sess, err := h.extractor.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	h.sess = sess
	metrics.OpenSessions.Inc()
	return sess, nil
}

func (h *sessionHolder) invalidate(ctx context.Context) {
	if h.sess == nil {
		return
	}
	_ = h.sess.Close(ctx)
	h.sess = nil
	metrics.OpenSessions.Dec()
}

func (h *sessionHolder) close(ctx context.Context) {
	h.invalidate(ctx)
}
