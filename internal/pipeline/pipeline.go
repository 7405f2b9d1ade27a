// Package pipeline fetches candidate pages and turns them into a risk report.
package pipeline

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/exposure/internal/cache"
	"github.com/ppiankov/exposure/internal/dedupe"
	"github.com/ppiankov/exposure/internal/extract"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/ppiankov/exposure/internal/proxy"
	"github.com/ppiankov/exposure/internal/query"
	"github.com/ppiankov/exposure/internal/risk"
	"github.com/ppiankov/exposure/internal/score"
	"github.com/ppiankov/exposure/internal/source"
	"github.com/ppiankov/exposure/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageFetcher retrieves result pages
type PageFetcher interface {
	Fetch(ctx context.Context, query, target string) model.FetchResult
}

// Pipeline orchestrates a scan: queries, source search, page fetch,
// extraction, scoring, deduplication and aggregation
type Pipeline struct {
	config     *model.Config
	generator  *query.Generator
	sources    []source.Source
	pages      PageFetcher
	proxies    *proxy.Manager
	extractor  *extract.Extractor
	scorer     *score.Scorer
	deduper    *dedupe.Deduper
	aggregator *risk.Aggregator

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithSources replaces the configured sources
func WithSources(sources ...source.Source) Option {
	return func(p *Pipeline) { p.sources = sources }
}

// WithPageFetcher replaces the network fetcher
func WithPageFetcher(f PageFetcher) Option {
	return func(p *Pipeline) { p.pages = f }
}

// NewPipeline wires the scan components from configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		config:     cfg,
		generator:  query.NewGenerator(cfg.Query),
		extractor:  extract.NewExtractor(cfg.Extract),
		scorer:     score.NewScorer(cfg.Scoring),
		deduper:    dedupe.New(cfg.Dedupe.SimilarityThreshold),
		aggregator: risk.NewAggregator(cfg.Risk),
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.pages == nil || p.sources == nil {
		var pageCache cache.Cache = cache.Nop{}
		if cfg.Cache.Enabled {
			pageCache = cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL)
		}
		p.proxies = proxy.NewManager(cfg.Proxy)
		limiter := worker.NewRateLimiter(
			cfg.RateLimit.MaxInFlight,
			cfg.RateLimit.MinDelay,
			cfg.RateLimit.MaxDelay,
			cfg.RateLimit.RequestsPerSecond,
			cfg.RateLimit.Burst,
		)

		fetcher, err := NewFetcher(cfg, p.proxies, limiter, pageCache)
		if err != nil {
			return nil, eris.Wrap(err, "create fetcher")
		}
		if p.pages == nil {
			p.pages = fetcher
		}
		if p.sources == nil {
			p.sources = source.FromConfig(cfg.Sources, fetcher)
		}
	}

	return p, nil
}

// Proxies returns the proxy manager built from configuration, or nil when
// the network fetcher was replaced
func (p *Pipeline) Proxies() *proxy.Manager {
	return p.proxies
}

// Scan runs one scan. Only invalid input is an error: unreachable sources
// and budget expiry degrade the report instead.
func (p *Pipeline) Scan(ctx context.Context, info model.PersonalInfo) (*model.RiskReport, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	started := p.nowFunc()
	queries, err := p.generator.Generate(info)
	if err != nil {
		return nil, err
	}

	scanCtx := ctx
	if p.config.Scan.Budget > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, p.config.Scan.Budget)
		defer cancel()
	}

	zap.L().Info("scan started",
		zap.Int("queries", len(queries)),
		zap.Int("sources", len(p.sources)),
		zap.Duration("budget", p.config.Scan.Budget),
	)

	pool := worker.NewPool(scanCtx, p.config.Scan.Workers)
	pool.Start()
	for i, q := range queries {
		// Stop enqueueing once the budget is spent; in-flight jobs drain
		if !pool.Submit(&queryJob{index: i, query: q, info: info, pipeline: p}) {
			break
		}
	}
	results := pool.Wait()
	budgetSpent := scanCtx.Err() != nil

	jobs := make([]*queryResult, 0, len(results))
	for _, r := range results {
		if qr, ok := r.(*queryResult); ok {
			jobs = append(jobs, qr)
		}
	}
	// Completion order is racy; restore query order
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].index < jobs[j].index })

	coverage := model.Coverage{QueriesPlanned: len(queries), QueriesRun: len(jobs)}
	var matches []model.ExtractedMatch
	failed := make(map[string]bool)
	for _, j := range jobs {
		matches = append(matches, j.matches...)
		coverage.PagesFetched += j.pagesFetched
		coverage.PagesBlocked += j.pagesBlocked
		coverage.PagesFailed += j.pagesFailed
		for _, name := range j.sourcesFailed {
			if !failed[name] {
				failed[name] = true
				coverage.SourcesFailed = append(coverage.SourcesFailed, name)
			}
		}
		if j.interrupted {
			budgetSpent = true
		}
	}
	coverage.Partial = coverage.QueriesRun < coverage.QueriesPlanned || budgetSpent

	matches = uniqueMatches(matches)
	p.scorer.Rank(matches, info)
	findings := p.deduper.Dedupe(matches)

	report := p.aggregator.Aggregate(findings)
	report.ScanID = uuid.NewString()
	report.StartedAt = started.UTC()
	report.Duration = p.nowFunc().Sub(started)
	report.Coverage = coverage
	if coverage.Partial || len(coverage.SourcesFailed) > 0 {
		risk.MarkIncomplete(&report)
	}

	zap.L().Info("scan complete",
		zap.String("scan_id", report.ScanID),
		zap.Int("percentage", report.Percentage),
		zap.String("level", string(report.Level)),
		zap.Int("findings", len(report.Findings)),
		zap.Int("queries_run", coverage.QueriesRun),
		zap.Bool("partial", coverage.Partial),
	)

	return &report, nil
}

// queryJob searches every source for one query and scans the hits
type queryJob struct {
	index    int
	query    model.Query
	info     model.PersonalInfo
	pipeline *Pipeline
}

type queryResult struct {
	index         int
	matches       []model.ExtractedMatch
	pagesFetched  int
	pagesBlocked  int
	pagesFailed   int
	sourcesFailed []string
	interrupted   bool
}

func (r *queryResult) GetError() error { return nil }

func (j *queryJob) Execute(ctx context.Context) worker.Result {
	p := j.pipeline
	res := &queryResult{index: j.index}

	hits := p.search(ctx, j.query, res)
	for _, hit := range hits {
		if ctx.Err() != nil {
			res.interrupted = true
			break
		}
		res.matches = append(res.matches, p.scanHit(ctx, j.query, hit, j.info, res)...)
	}
	return res
}

// search fans out to every source and merges hits in source order,
// dropping duplicate URLs and capping at MaxDetailedResults
func (p *Pipeline) search(ctx context.Context, q model.Query, res *queryResult) []source.Hit {
	slots := make([][]source.Hit, len(p.sources))
	errs := make([]error, len(p.sources))

	var g errgroup.Group
	for i, src := range p.sources {
		i, src := i, src
		g.Go(func() error {
			hits, err := src.Search(ctx, q)
			slots[i], errs[i] = hits, err
			return nil
		})
	}
	_ = g.Wait()

	limit := p.config.Sources.MaxDetailedResults
	seen := make(map[string]bool)
	var merged []source.Hit
	for i, hits := range slots {
		if errs[i] != nil {
			res.sourcesFailed = append(res.sourcesFailed, p.sources[i].Name())
			zap.L().Warn("source failed", zap.String("source", p.sources[i].Name()), zap.Error(errs[i]))
		}
		for _, h := range hits {
			key := source.NormalizeURL(h.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, h)
		}
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// scanHit extracts and scores one hit, falling back to its title and
// snippet when the page itself cannot be fetched
func (p *Pipeline) scanHit(ctx context.Context, q model.Query, hit source.Hit, info model.PersonalInfo, res *queryResult) []model.ExtractedMatch {
	meta := model.PageMeta{URL: hit.URL, Host: hostOf(hit.URL), Title: hit.Title, Source: hit.Source}

	body := hit.Body
	if body == "" {
		fr := p.pages.Fetch(ctx, q.Text, hit.URL)
		switch {
		case fr.OK():
			body = fr.Body
			res.pagesFetched++
		case errors.Is(fr.Err, model.ErrPolicyBlocked):
			res.pagesBlocked++
		default:
			res.pagesFailed++
		}
	}

	var matches []model.ExtractedMatch
	if body != "" {
		var err error
		matches, err = p.extractor.Extract(body, hit.URL, q.Text, info)
		if err != nil {
			zap.L().Debug("page parsed partially", zap.String("host", meta.Host), zap.Error(err))
		}
	} else {
		text := strings.TrimSpace(hit.Title + "\n" + hit.Snippet)
		if text == "" {
			return nil
		}
		meta.FromSnippet = true
		matches = p.extractor.ExtractText(text, hit.URL, q.Text, info)
	}

	scored := p.scorer.ScoreAll(matches, info, meta)
	kept := scored[:0]
	for _, m := range scored {
		if m.RawConfidence >= p.config.Scan.MinConfidence {
			kept = append(kept, m)
		}
	}
	return kept
}

// uniqueMatches keeps one match per (page, type, kind, value). Several
// queries often land on the same page; each page counts once as a source.
// The best scored copy wins and page order is kept.
func uniqueMatches(matches []model.ExtractedMatch) []model.ExtractedMatch {
	type key struct {
		url   string
		typ   model.PIIType
		kind  string
		value string
	}
	seen := make(map[key]int, len(matches))
	out := make([]model.ExtractedMatch, 0, len(matches))
	for _, m := range matches {
		k := key{url: m.SourceURL, typ: m.Type, kind: m.Kind, value: m.Value}
		if i, ok := seen[k]; ok {
			if m.RawConfidence > out[i].RawConfidence {
				out[i] = m
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, m)
	}
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
