package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketplaymaker/edgeintel/core"
)

// PeerMarketConfig configures the peer prediction-market adapter.
type PeerMarketConfig struct {
	BaseURL string
	Timeout time.Duration
	Limit   int
}

// DefaultPeerMarketConfig returns sensible defaults.
func DefaultPeerMarketConfig() *PeerMarketConfig {
	return &PeerMarketConfig{
		Timeout: 10 * time.Second,
		Limit:   20,
	}
}

// PeerMarketAdapter wraps another prediction-market venue. Its traded
// probability on the same proposition is an independent estimate relative
// to the market under analysis.
type PeerMarketAdapter struct {
	cfg  *PeerMarketConfig
	feed *feedClient
}

// NewPeerMarketAdapter creates the adapter.
func NewPeerMarketAdapter(cfg *PeerMarketConfig, cache PayloadCache, log zerolog.Logger) *PeerMarketAdapter {
	if cfg == nil {
		cfg = DefaultPeerMarketConfig()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultPeerMarketConfig().Limit
	}
	return &PeerMarketAdapter{
		cfg:  cfg,
		feed: newFeedClient("peermarket", cfg.Timeout, cache, log),
	}
}

// Key implements Adapter.
func (a *PeerMarketAdapter) Key() string { return "peermarket" }

// peerMarket mirrors the venue's market search payload.
type peerMarket struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	Probability       *float64 `json:"probability"`
	UniqueBettorCount int      `json:"uniqueBettorCount"`
	CloseTime         int64    `json:"closeTime"` // unix millis
	IsResolved        bool     `json:"isResolved"`
}

// FetchCandidates implements Adapter.
func (a *PeerMarketAdapter) FetchCandidates(ctx context.Context, q Query) ([]core.Candidate, error) {
	params := url.Values{}
	params.Set("term", q.Term())
	params.Set("filter", "open")
	params.Set("limit", fmt.Sprintf("%d", a.cfg.Limit))

	var markets []peerMarket
	if err := a.feed.getJSON(ctx, a.cfg.BaseURL+"/v0/search-markets?"+params.Encode(), &markets); err != nil {
		return nil, err
	}

	candidates := make([]core.Candidate, 0, len(markets))
	for _, m := range markets {
		if m.IsResolved {
			continue
		}
		c := core.Candidate{
			SourceKey:   a.Key(),
			ExternalID:  m.ID,
			Title:       m.Question,
			Probability: m.Probability,
			Confidence:  bettorConfidence(m.UniqueBettorCount),
			Detail:      fmt.Sprintf("peer market price, %d bettors", m.UniqueBettorCount),
		}
		if m.CloseTime > 0 {
			c.ResolveTime = time.UnixMilli(m.CloseTime).UTC()
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// NormalizeProbability implements Adapter.
func (a *PeerMarketAdapter) NormalizeProbability(c core.Candidate) (float64, bool) {
	if c.Probability == nil {
		return 0, false
	}
	p := *c.Probability
	if p < 0 || p > 1 {
		return 0, false
	}
	return p, true
}

// bettorConfidence scales with the number of unique bettors; thin peer
// markets are noisy.
func bettorConfidence(count int) float64 {
	conf := 0.25 + float64(count)/200.0
	if conf > 0.85 {
		conf = 0.85
	}
	return conf
}
