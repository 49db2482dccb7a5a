package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketplaymaker/edgeintel/core"
)

// ForecastConfig configures the forecasting-platform adapter.
type ForecastConfig struct {
	BaseURL string
	Timeout time.Duration
	Limit   int // max questions per search
}

// DefaultForecastConfig returns sensible defaults.
func DefaultForecastConfig() *ForecastConfig {
	return &ForecastConfig{
		Timeout: 10 * time.Second,
		Limit:   20,
	}
}

// ForecastAdapter wraps a forecasting platform's open-question search.
// Each question carries a community prediction, which we take as the
// platform's independently-derived probability.
type ForecastAdapter struct {
	cfg  *ForecastConfig
	feed *feedClient
}

// NewForecastAdapter creates the adapter. A nil cache disables payload
// caching.
func NewForecastAdapter(cfg *ForecastConfig, cache PayloadCache, log zerolog.Logger) *ForecastAdapter {
	if cfg == nil {
		cfg = DefaultForecastConfig()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultForecastConfig().Limit
	}
	return &ForecastAdapter{
		cfg:  cfg,
		feed: newFeedClient("forecast", cfg.Timeout, cache, log),
	}
}

// Key implements Adapter.
func (a *ForecastAdapter) Key() string { return "forecast" }

// forecastQuestion mirrors the platform's question payload.
type forecastQuestion struct {
	ID                  int64    `json:"id"`
	Title               string   `json:"title"`
	ResolveTime         string   `json:"resolve_time"`
	CommunityPrediction *float64 `json:"community_prediction"`
	ForecasterCount     int      `json:"forecaster_count"`
}

type forecastSearchResponse struct {
	Results []forecastQuestion `json:"results"`
}

// FetchCandidates implements Adapter.
func (a *ForecastAdapter) FetchCandidates(ctx context.Context, q Query) ([]core.Candidate, error) {
	params := url.Values{}
	params.Set("search", q.Term())
	params.Set("status", "open")
	params.Set("limit", fmt.Sprintf("%d", a.cfg.Limit))

	var resp forecastSearchResponse
	if err := a.feed.getJSON(ctx, a.cfg.BaseURL+"/api/questions?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	candidates := make([]core.Candidate, 0, len(resp.Results))
	for _, question := range resp.Results {
		c := core.Candidate{
			SourceKey:   a.Key(),
			ExternalID:  fmt.Sprintf("%d", question.ID),
			Title:       question.Title,
			Probability: question.CommunityPrediction,
			Confidence:  forecasterConfidence(question.ForecasterCount),
			Detail:      fmt.Sprintf("community prediction, %d forecasters", question.ForecasterCount),
		}
		if t, err := time.Parse(time.RFC3339, question.ResolveTime); err == nil {
			c.ResolveTime = t
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// NormalizeProbability implements Adapter.
func (a *ForecastAdapter) NormalizeProbability(c core.Candidate) (float64, bool) {
	if c.Probability == nil {
		return 0, false
	}
	p := *c.Probability
	if p < 0 || p > 1 {
		return 0, false
	}
	return p, true
}

// forecasterConfidence scales confidence with crowd size: a handful of
// forecasters is weakly informative, a few hundred approaches the cap.
func forecasterConfidence(count int) float64 {
	conf := 0.3 + float64(count)/400.0
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}
