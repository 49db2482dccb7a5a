package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplaymaker/edgeintel/core"
)

// memCache is an in-memory PayloadCache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok
}

func (c *memCache) Set(ctx context.Context, key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = body
	c.sets++
}

func TestForecastAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/questions", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.NotEmpty(t, r.URL.Query().Get("search"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"id": 101, "title": "Will Bitcoin reach $68,000 by December 2025?",
			 "resolve_time": "2025-12-31T23:59:59Z",
			 "community_prediction": 0.71, "forecaster_count": 240},
			{"id": 102, "title": "Unscored question",
			 "resolve_time": "2025-12-31T23:59:59Z",
			 "community_prediction": null, "forecaster_count": 3}
		]}`))
	}))
	defer srv.Close()

	a := NewForecastAdapter(&ForecastConfig{BaseURL: srv.URL}, nil, zerolog.Nop())
	assert.Equal(t, "forecast", a.Key())

	candidates, err := a.FetchCandidates(context.Background(), Query{Keywords: []string{"bitcoin"}})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	c := candidates[0]
	assert.Equal(t, "101", c.ExternalID)
	require.NotNil(t, c.Probability)
	assert.InDelta(t, 0.71, *c.Probability, 1e-9)
	// 0.3 + 240/400 = 0.9, at the cap
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
	assert.Equal(t, 2025, c.ResolveTime.Year())

	p, ok := a.NormalizeProbability(c)
	assert.True(t, ok)
	assert.InDelta(t, 0.71, p, 1e-9)

	// Unscored question: candidate exists but yields no probability.
	_, ok = a.NormalizeProbability(candidates[1])
	assert.False(t, ok)
}

func TestForecastAdapter_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewForecastAdapter(&ForecastConfig{BaseURL: srv.URL}, nil, zerolog.Nop())
	_, err := a.FetchCandidates(context.Background(), Query{Keywords: []string{"bitcoin"}})
	assert.Error(t, err)
}

func TestPeerMarketAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/search-markets", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("filter"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "pm1", "question": "Will Bitcoin reach $68,000 by December 2025?",
			 "probability": 0.67, "uniqueBettorCount": 80,
			 "closeTime": 1767225599000, "isResolved": false},
			{"id": "pm2", "question": "Already settled",
			 "probability": 1.0, "uniqueBettorCount": 500,
			 "closeTime": 1767225599000, "isResolved": true}
		]`))
	}))
	defer srv.Close()

	a := NewPeerMarketAdapter(&PeerMarketConfig{BaseURL: srv.URL}, nil, zerolog.Nop())
	assert.Equal(t, "peermarket", a.Key())

	candidates, err := a.FetchCandidates(context.Background(), Query{Keywords: []string{"bitcoin"}})
	require.NoError(t, err)
	require.Len(t, candidates, 1, "resolved markets are dropped")

	c := candidates[0]
	assert.Equal(t, "pm1", c.ExternalID)
	// 0.25 + 80/200 = 0.65
	assert.InDelta(t, 0.65, c.Confidence, 1e-9)
	assert.False(t, c.ResolveTime.IsZero())

	p, ok := a.NormalizeProbability(c)
	assert.True(t, ok)
	assert.InDelta(t, 0.67, p, 1e-9)
}

func TestPeerMarketAdapter_ProbabilityBounds(t *testing.T) {
	a := NewPeerMarketAdapter(&PeerMarketConfig{BaseURL: "http://unused"}, nil, zerolog.Nop())

	bad := 1.5
	_, ok := a.NormalizeProbability(core.Candidate{Probability: &bad})
	assert.False(t, ok)

	neg := -0.1
	_, ok = a.NormalizeProbability(core.Candidate{Probability: &neg})
	assert.False(t, ok)

	_, ok = a.NormalizeProbability(core.Candidate{})
	assert.False(t, ok)
}

func TestSportsbookAdapter(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "decimal", r.URL.Query().Get("oddsFormat"))

		w.Header().Set("Content-Type", "application/json")
		// Two books quoting the same even game at 1.90/1.90: de-vigged and
		// averaged, both outcomes land at exactly 0.5.
		w.Write([]byte(`[
			{"id": "ev1", "sport_key": "basketball_nba", "sport_title": "NBA",
			 "commence_time": "2026-01-10T00:00:00Z",
			 "home_team": "Lakers", "away_team": "Celtics",
			 "bookmakers": [
				{"key": "bookA", "markets": [{"key": "h2h", "outcomes": [
					{"name": "Lakers", "price": 1.90}, {"name": "Celtics", "price": 1.90}]}]},
				{"key": "bookB", "markets": [{"key": "h2h", "outcomes": [
					{"name": "Lakers", "price": 1.90}, {"name": "Celtics", "price": 1.90}]}]}
			]}
		]`))
	}))
	defer srv.Close()

	a := NewSportsbookAdapter(&SportsbookConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Sports:  []string{"basketball_nba"},
		Devig:   true,
	}, nil, zerolog.Nop())
	assert.Equal(t, "sportsbook", a.Key())

	candidates, err := a.FetchCandidates(context.Background(), Query{
		Category: CategorySports,
		Keywords: []string{"lakers"},
	})
	require.NoError(t, err)
	// Both outcomes of a Lakers game are relevant to a Lakers query.
	require.Len(t, candidates, 2)
	assert.Equal(t, []string{"/v4/sports/basketball_nba/odds"}, paths)

	var c core.Candidate
	for _, cand := range candidates {
		if cand.Title == "Will Lakers beat Celtics?" {
			c = cand
		}
	}
	assert.Equal(t, "Will Lakers beat Celtics?", c.Title)
	require.NotNil(t, c.Probability)
	assert.InDelta(t, 0.5, *c.Probability, 1e-6)
	// 0.4 + 0.1*2 books
	assert.InDelta(t, 0.6, c.Confidence, 1e-9)
	assert.Equal(t, "basketball_nba", c.Meta["sport"])
}

func TestSportsbookAdapter_NonSportsCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("non-sports queries must never reach the feed")
	}))
	defer srv.Close()

	a := NewSportsbookAdapter(&SportsbookConfig{BaseURL: srv.URL, Sports: []string{"basketball_nba"}}, nil, zerolog.Nop())

	candidates, err := a.FetchCandidates(context.Background(), Query{Category: CategoryCrypto})
	assert.NoError(t, err)
	assert.Nil(t, candidates)
}

func TestSportsbookAdapter_OutrightTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("markets") == "outrights" {
			w.Write([]byte(`[
				{"id": "fut1", "sport_key": "basketball_nba_championship_winner",
				 "sport_title": "NBA Championship Winner",
				 "commence_time": "2026-06-01T00:00:00Z",
				 "bookmakers": [
					{"key": "bookA", "markets": [{"key": "outrights", "outcomes": [
						{"name": "Thunder", "price": 4.0}, {"name": "Celtics", "price": 5.0}]}]}
				]}
			]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := NewSportsbookAdapter(&SportsbookConfig{
		BaseURL:   srv.URL,
		Sports:    []string{"basketball_nba"},
		Outrights: []string{"basketball_nba_championship_winner"},
		Devig:     false,
	}, nil, zerolog.Nop())

	candidates, err := a.FetchCandidates(context.Background(), Query{
		Category: CategorySports,
		Keywords: []string{"thunder"},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Will Thunder win the NBA Championship Winner?", candidates[0].Title)
	// Raw implied without de-vig: 1/4.0
	assert.InDelta(t, 0.25, *candidates[0].Probability, 1e-6)
}

func TestFeedClientCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	cache := newMemCache()
	a := NewForecastAdapter(&ForecastConfig{BaseURL: srv.URL}, cache, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := a.FetchCandidates(context.Background(), Query{Keywords: []string{"bitcoin"}})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, hits, "repeated identical queries are served from the cache")
	assert.Equal(t, 1, cache.sets)
}

func TestFeedClientBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	a := NewForecastAdapter(&ForecastConfig{BaseURL: srv.URL}, nil, zerolog.Nop())

	// Trip the breaker with consecutive failures.
	for i := 0; i < 3; i++ {
		_, err := a.FetchCandidates(context.Background(), Query{Keywords: []string{"x"}})
		assert.Error(t, err)
	}

	// An open breaker fails fast without touching the (now closed) server.
	srv.Close()
	_, err := a.FetchCandidates(context.Background(), Query{Keywords: []string{"x"}})
	assert.Error(t, err)
}

func TestQueryTerm(t *testing.T) {
	assert.Equal(t, "", Query{}.Term())
	assert.Equal(t, "bitcoin", Query{Keywords: []string{"bitcoin"}}.Term())
	assert.Equal(t, "68000 bitcoin dec", Query{Keywords: []string{"68000", "bitcoin", "dec"}}.Term())
}
