package intel

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marketplaymaker/edgeintel/core"
	"github.com/marketplaymaker/edgeintel/pkg/matching"
	"github.com/marketplaymaker/edgeintel/pkg/metrics"
	"github.com/marketplaymaker/edgeintel/pkg/sources"
)

// AnalyzerConfig configures the batch orchestrator.
type AnalyzerConfig struct {
	// MaxMarkets bounds a batch when the caller does not.
	MaxMarkets int

	// MaxConcurrentMarkets sizes the per-market worker pool.
	MaxConcurrentMarkets int

	// SourceTimeout bounds each adapter call within a market pipeline.
	SourceTimeout time.Duration

	// MarketTimeout bounds one market's whole pipeline; still-pending
	// source calls are treated as unavailable and a partial result is
	// produced.
	MarketTimeout time.Duration

	Matcher *matching.Config
	Grader  *GraderConfig
}

// DefaultAnalyzerConfig returns sensible defaults.
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		MaxMarkets:           20,
		MaxConcurrentMarkets: 4,
		SourceTimeout:        10 * time.Second,
		MarketTimeout:        30 * time.Second,
	}
}

// Analyzer runs the matching-aggregation-grading pipeline per market and
// orchestrates batches under a shared call budget. It holds no state
// beyond one batch's execution window.
type Analyzer struct {
	cfg      *AnalyzerConfig
	adapters []sources.Adapter
	matcher  *matching.Matcher
	grader   *Grader
	budget   *Budget
	metrics  *metrics.EngineMetrics
	log      zerolog.Logger
}

// Option configures the analyzer.
type Option func(*Analyzer)

// WithMetrics attaches an engine metrics collector.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = log }
}

// NewAnalyzer creates an analyzer over the given adapters and budget.
func NewAnalyzer(cfg *AnalyzerConfig, adapters []sources.Adapter, budget *Budget, opts ...Option) *Analyzer {
	if cfg == nil {
		cfg = DefaultAnalyzerConfig()
	}
	defaults := DefaultAnalyzerConfig()
	if cfg.MaxMarkets <= 0 {
		cfg.MaxMarkets = defaults.MaxMarkets
	}
	if cfg.MaxConcurrentMarkets <= 0 {
		cfg.MaxConcurrentMarkets = defaults.MaxConcurrentMarkets
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaults.SourceTimeout
	}
	if cfg.MarketTimeout <= 0 {
		cfg.MarketTimeout = defaults.MarketTimeout
	}

	a := &Analyzer{
		cfg:      cfg,
		adapters: adapters,
		matcher:  matching.NewMatcher(cfg.Matcher),
		grader:   NewGrader(cfg.Grader),
		budget:   budget,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeOne runs the full pipeline for a single market. It acquires one
// budget token per adapter up front and returns a RateLimitedError without
// touching any provider when the budget is exhausted.
func (a *Analyzer) AnalyzeOne(ctx context.Context, market core.Market) (*core.EdgeResult, error) {
	if retryAfter, ok := a.budget.Acquire(len(a.adapters)); !ok {
		if a.metrics != nil {
			a.metrics.RateLimitedTotal.Inc()
		}
		return nil, &core.RateLimitedError{RetryAfter: retryAfter}
	}
	result := a.analyze(ctx, market)
	return result, nil
}

// AnalyzeBatch analyzes up to maxMarkets markets concurrently and returns
// results sorted by descending edge quality. Partial provider failure
// degrades individual results instead of failing the batch; budget
// exhaustion stops admission and returns completed results alongside a
// RateLimitedError; a context deadline drops only markets not yet started.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, markets []core.Market, maxMarkets int) ([]core.EdgeResult, error) {
	if len(markets) == 0 {
		return nil, core.ErrNoMarkets
	}
	if maxMarkets <= 0 || maxMarkets > a.cfg.MaxMarkets {
		maxMarkets = a.cfg.MaxMarkets
	}

	batchID := uuid.NewString()
	started := time.Now()
	selected := SelectMarkets(markets, maxMarkets)

	log := a.log.With().Str("batch_id", batchID).Logger()
	log.Info().Int("requested", len(markets)).Int("selected", len(selected)).Msg("batch started")

	jobs := make(chan core.Market)
	var (
		mu      sync.Mutex
		results []core.EdgeResult
		wg      sync.WaitGroup
	)

	workers := a.cfg.MaxConcurrentMarkets
	if workers > len(selected) {
		workers = len(selected)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for market := range jobs {
				res := a.analyze(ctx, market)
				mu.Lock()
				results = append(results, *res)
				mu.Unlock()
			}
		}()
	}

	// Admission loop: each market costs one budget token per adapter.
	// Exhaustion or a batch deadline stops new work; in-flight markets
	// finish and their results are kept.
	var batchErr error
	admitted := 0
admit:
	for _, market := range selected {
		if ctx.Err() != nil {
			log.Warn().Int("admitted", admitted).Int("selected", len(selected)).
				Msg("batch deadline reached, skipping unstarted markets")
			break
		}
		retryAfter, ok := a.budget.Acquire(len(a.adapters))
		if !ok {
			batchErr = &core.RateLimitedError{RetryAfter: retryAfter}
			if a.metrics != nil {
				a.metrics.RateLimitedTotal.Inc()
			}
			log.Warn().Dur("retry_after", retryAfter).Msg("call budget exhausted, stopping admission")
			break admit
		}
		select {
		case jobs <- market:
			admitted++
		case <-ctx.Done():
			break admit
		}
	}
	close(jobs)
	wg.Wait()

	// Completion order must never leak into result order.
	SortResults(results)

	if a.metrics != nil {
		a.metrics.BatchDuration.Observe(time.Since(started).Seconds())
		outcome := "ok"
		if batchErr != nil {
			outcome = "rate_limited"
		} else if ctx.Err() != nil {
			outcome = "deadline"
		}
		a.metrics.BatchesTotal.WithLabelValues(outcome).Inc()
	}

	log.Info().
		Int("results", len(results)).
		Dur("elapsed", time.Since(started)).
		Msg("batch finished")

	return results, batchErr
}

// analyze runs one market's pipeline: concurrent per-source lookups, then
// matching, aggregation and grading on the collected estimates.
func (a *Analyzer) analyze(ctx context.Context, market core.Market) *core.EdgeResult {
	mctx, cancel := context.WithTimeout(ctx, a.cfg.MarketTimeout)
	defer cancel()

	if a.metrics != nil {
		a.metrics.ActiveMarkets.Inc()
		defer a.metrics.ActiveMarkets.Dec()
		a.metrics.MarketsAnalyzed.Inc()
	}

	query := BuildQuery(market)

	estCh := make(chan core.SourceEstimate, len(a.adapters))
	var wg sync.WaitGroup
	for _, adapter := range a.adapters {
		wg.Add(1)
		go func(ad sources.Adapter) {
			defer wg.Done()
			if est, ok := a.consult(mctx, ad, market, query); ok {
				estCh <- est
			}
		}(adapter)
	}
	wg.Wait()
	close(estCh)

	estimates := make([]core.SourceEstimate, 0, len(a.adapters))
	for est := range estCh {
		estimates = append(estimates, est)
	}
	// Deterministic source order regardless of completion order.
	sort.Slice(estimates, func(i, j int) bool { return estimates[i].Key < estimates[j].Key })

	consensus := Aggregate(market, estimates)
	signal, grade, quality := a.grader.Grade(consensus)

	if a.metrics != nil {
		a.metrics.ResultsTotal.WithLabelValues(string(grade), string(signal)).Inc()
		a.metrics.EdgeQuality.Observe(float64(quality))
		if consensus.SourceCount > 0 {
			a.metrics.Divergence.Observe(math.Abs(consensus.Divergence))
		}
	}

	return &core.EdgeResult{
		MarketID:    market.ID,
		Question:    market.Question,
		MarketPrice: market.Price,
		Consensus:   consensus.Probability,
		Divergence:  consensus.Divergence,
		SourceCount: consensus.SourceCount,
		Sources:     estimates,
		Signal:      signal,
		Grade:       grade,
		Quality:     quality,
	}
}

// consult asks one adapter for candidates and reduces them to at most one
// source estimate. Provider failure or a missing match yields no estimate
// and never an error: partial coverage is a first-class outcome.
func (a *Analyzer) consult(ctx context.Context, ad sources.Adapter, market core.Market, query sources.Query) (core.SourceEstimate, bool) {
	sctx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()

	started := time.Now()
	candidates, err := ad.FetchCandidates(sctx, query)
	if a.metrics != nil {
		a.metrics.SourceLatency.WithLabelValues(ad.Key()).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.SourceRequests.WithLabelValues(ad.Key(), "unavailable").Inc()
		}
		a.log.Debug().Err(&core.SourceUnavailableError{Source: ad.Key(), Err: err}).
			Str("market", market.ID).Msg("source skipped")
		return core.SourceEstimate{}, false
	}
	if a.metrics != nil {
		a.metrics.SourceRequests.WithLabelValues(ad.Key(), "ok").Inc()
	}

	match, ok := a.matcher.Best(market, candidates)
	if !ok {
		return core.SourceEstimate{}, false
	}
	prob, ok := ad.NormalizeProbability(match.Candidate)
	if !ok {
		return core.SourceEstimate{}, false
	}

	if a.metrics != nil {
		a.metrics.MatchesTotal.WithLabelValues(ad.Key(), fmt.Sprintf("%v", match.Validated)).Inc()
		a.metrics.MatchQuality.Observe(match.Quality)
	}

	detail := fmt.Sprintf("%q p=%.2f (%s)", match.Candidate.Title, prob, match.Candidate.Detail)
	return core.SourceEstimate{
		Key:            ad.Key(),
		Prob:           prob,
		Confidence:     match.Candidate.Confidence,
		Detail:         detail,
		MatchQuality:   match.Quality,
		MatchValidated: match.Validated,
	}, true
}

// SortResults orders results by descending quality with a deterministic
// market-ID tie-break.
func SortResults(results []core.EdgeResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Quality != results[j].Quality {
			return results[i].Quality > results[j].Quality
		}
		return results[i].MarketID < results[j].MarketID
	})
}

// SelectMarkets picks up to max markets, most uncertain prices first
// (|price - 0.5| smallest): those are where independent sources have the
// most room to disagree with the market. The policy is a tunable, not a
// correctness requirement.
func SelectMarkets(markets []core.Market, max int) []core.Market {
	selected := make([]core.Market, len(markets))
	copy(selected, markets)
	sort.SliceStable(selected, func(i, j int) bool {
		ui := math.Abs(selected[i].Price - 0.5)
		uj := math.Abs(selected[j].Price - 0.5)
		if ui != uj {
			return ui < uj
		}
		return selected[i].ID < selected[j].ID
	})
	if len(selected) > max {
		selected = selected[:max]
	}
	return selected
}

// Category keyword lists for query building.
var (
	cryptoWords = []string{
		"bitcoin", "btc", "ethereum", "eth", "solana", "sol",
		"dogecoin", "doge", "xrp", "crypto", "cardano", "litecoin",
	}
	sportsWords = []string{
		"nba", "nfl", "nhl", "mlb", "ufc", "premier league",
		"champions league", "stanley cup", "super bowl", "world series",
		"beat", "win the", "vs",
	}
	politicsWords = []string{
		"trump", "biden", "congress", "election", "senate", "president",
		"tariff", "sanctions", "nato", "supreme court",
	}
)

// BuildQuery derives the provider query from a market question: salient
// keywords plus a coarse category so adapters can scope their feeds.
func BuildQuery(market core.Market) sources.Query {
	lower := strings.ToLower(market.Question)

	category := ""
	switch {
	case containsAny(lower, cryptoWords):
		category = sources.CategoryCrypto
	case containsAny(lower, sportsWords):
		category = sources.CategorySports
	case containsAny(lower, politicsWords):
		category = sources.CategoryPolitics
	}

	features := matching.Extract(market.Question)
	keywords := make([]string, 0, len(features.Keywords))
	for kw := range features.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords) // map order must not leak into provider queries

	return sources.Query{Keywords: keywords, Category: category}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
