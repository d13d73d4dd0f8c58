package scenes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_scenes/internal/engine"
)

// PageFetcher is the orchestrator's view of the stealth fetch client.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*engine.RawContent, error)
	// Rotate forces a new session identity and proxy before the next fetch.
	Rotate()
}

// TaskState tracks one (character, source, page) unit through the pipeline.
type TaskState int

const (
	Pending TaskState = iota
	Fetching
	Extracting
	Storing
	Done
	Failed
)

func (s TaskState) String() string {
	return [...]string{"pending", "fetching", "extracting", "storing", "done", "failed"}[s]
}

// CharacterStats aggregates per-character outcomes for the run report.
type CharacterStats struct {
	Inserted  int
	Updated   int
	Unchanged int
	Failed    int
}

// Report collects outcomes across all tasks of a run.
type Report struct {
	mu         sync.Mutex
	Characters map[string]*CharacterStats
}

func newReport() *Report {
	return &Report{Characters: make(map[string]*CharacterStats)}
}

func (r *Report) stats(character string) *CharacterStats {
	if _, ok := r.Characters[character]; !ok {
		r.Characters[character] = &CharacterStats{}
	}
	return r.Characters[character]
}

func (r *Report) add(character string, outcome UpsertOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats(character)
	switch outcome {
	case Inserted:
		st.Inserted++
	case Updated:
		st.Updated++
	case Unchanged:
		st.Unchanged++
	}
}

func (r *Report) fail(character string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats(character).Failed++
}

// Log writes the end-of-run summary.
func (r *Report) Log() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for character, st := range r.Characters {
		slog.Info("extraction summary",
			slog.String("character", character),
			slog.Int("inserted", st.Inserted),
			slog.Int("updated", st.Updated),
			slog.Int("unchanged", st.Unchanged),
			slog.Int("failed", st.Failed),
		)
	}
}

// Orchestrator drives fetch → extract → dedup-store for (character, source)
// pairs over a bounded worker pool. Per-task failures are contained at the
// task boundary; only the aggregate report carries them out.
type Orchestrator struct {
	fetcher     PageFetcher
	store       *Store
	catalog     *Catalog
	extractor   *Extractor
	workers     int
	retryBudget int
	maxEpisodes int
	limiters    map[string]*rate.Limiter
}

// NewOrchestrator wires the pipeline. Rate limiters are built from the
// catalog's per-source hints.
func NewOrchestrator(f PageFetcher, store *Store, catalog *Catalog, ex *Extractor, cfg engine.Config) *Orchestrator {
	o := &Orchestrator{
		fetcher:     f,
		store:       store,
		catalog:     catalog,
		extractor:   ex,
		workers:     cfg.Workers,
		retryBudget: cfg.RetryBudget,
		maxEpisodes: cfg.MaxEpisodesPerSource,
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, ch := range catalog.Characters() {
		for _, d := range catalog.SourcesFor(ch) {
			if _, ok := o.limiters[d.Name]; !ok && d.RateLimit > 0 {
				burst := d.RateBurst
				if burst <= 0 {
					burst = 1
				}
				o.limiters[d.Name] = rate.NewLimiter(rate.Limit(d.RateLimit), burst)
			}
		}
	}
	return o
}

// Run extracts scenes for the given characters across all catalog sources.
// Returns the aggregate report; the only errors that escape are context
// cancellations.
func (o *Orchestrator) Run(ctx context.Context, chars []Character) *Report {
	report := newReport()
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for _, ch := range chars {
		report.mu.Lock()
		report.stats(ch.Key) // character appears in the report even with zero scenes
		report.mu.Unlock()

		for _, d := range o.catalog.SourcesFor(ch) {
			wg.Add(1)
			go func(ch Character, d SourceDescriptor) {
				defer wg.Done()
				o.runSource(ctx, ch, d, report, sem)
			}(ch, d)
		}
	}

	wg.Wait()
	return report
}

// runSource is the per-(character, source) task: discover episode pages,
// then fan page tasks out over the shared worker pool.
func (o *Orchestrator) runSource(ctx context.Context, ch Character, d SourceDescriptor, report *Report, sem chan struct{}) {
	indexURL := d.IndexURL(ch.Show)
	log := slog.With(slog.String("character", ch.Key), slog.String("source", d.Name))

	raw, err := o.fetchWithBudget(ctx, d, indexURL, sem)
	if err != nil {
		log.Warn("task failed: index fetch", slog.String("url", indexURL), slog.Any("error", err))
		report.fail(ch.Key)
		return
	}

	episodes := o.extractor.Discover(raw, d)
	if len(episodes) == 0 {
		log.Debug("no episodes discovered", slog.String("url", indexURL))
		return
	}
	if o.maxEpisodes > 0 && len(episodes) > o.maxEpisodes {
		episodes = episodes[:o.maxEpisodes]
	}
	log.Info("episodes discovered", slog.Int("count", len(episodes)))

	var wg sync.WaitGroup
	for _, epURL := range episodes {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(epURL string) {
			defer wg.Done()
			o.runPage(ctx, ch, d, epURL, report, sem)
		}(epURL)
	}
	wg.Wait()
}

// runPage walks one page task through Fetching → Extracting → Storing.
// Any failure makes the task Failed and is absorbed here; sibling tasks
// never see it.
func (o *Orchestrator) runPage(ctx context.Context, ch Character, d SourceDescriptor, pageURL string, report *Report, sem chan struct{}) {
	log := slog.With(
		slog.String("character", ch.Key),
		slog.String("source", d.Name),
		slog.String("url", pageURL),
	)
	log.Debug("task queued", slog.String("state", Pending.String()))

	state := Fetching
	raw, err := o.fetchWithBudget(ctx, d, pageURL, sem)
	if err != nil {
		log.Warn("task failed", slog.String("state", state.String()), slog.Any("error", err))
		report.fail(ch.Key)
		return
	}

	state = Extracting
	candidates := o.extractor.Extract(raw, ch, d)
	if len(candidates) == 0 {
		log.Debug("no scenes", slog.String("state", state.String()))
		return
	}

	state = Storing
	for i := range candidates {
		if ctx.Err() != nil {
			return
		}
		outcome, err := o.store.Upsert(ctx, &candidates[i])
		if err != nil {
			log.Warn("task failed", slog.String("state", state.String()), slog.Any("error", err))
			report.fail(ch.Key)
			return
		}
		report.add(ch.Key, outcome)
	}

	state = Done
	log.Debug("task done", slog.String("state", state.String()), slog.Int("scenes", len(candidates)))
}

// fetchWithBudget runs fetch attempts under the worker-pool semaphore and
// the source's rate limiter, rotating identity on Challenged/Blocked, until
// the retry budget runs out. Cancellation stops new attempts but lets the
// in-flight one finish.
func (o *Orchestrator) fetchWithBudget(ctx context.Context, d SourceDescriptor, url string, sem chan struct{}) (*engine.RawContent, error) {
	var lastErr error

	for attempt := 0; attempt <= o.retryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if lim := o.limiters[d.Name]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		raw, err := o.fetcher.Fetch(ctx, url)
		<-sem

		if err == nil {
			return raw, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, engine.ErrBlocked), errors.Is(err, engine.ErrChallenged):
			o.fetcher.Rotate()
		case errors.Is(err, engine.ErrNoProxy):
			// Transient exhaustion: give cooldowns a moment to expire.
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return nil, lastErr
			}
		}
	}

	return nil, lastErr
}
