package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// feedClient is the shared HTTP plumbing for adapter feed calls: circuit
// breaker, optional payload cache, JSON decoding. A tripped breaker reads
// as the provider being unavailable until the timeout elapses, which keeps
// a flapping feed from slowing every batch.
type feedClient struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      PayloadCache
	log        zerolog.Logger
}

func newFeedClient(name string, timeout time.Duration, cache PayloadCache, log zerolog.Logger) *feedClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &feedClient{
		name: name,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("source", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("feed breaker state change")
			},
		}),
		cache: cache,
		log:   log,
	}
}

// getJSON fetches url through the breaker and cache and decodes the JSON
// payload into out.
func (f *feedClient) getJSON(ctx context.Context, url string, out interface{}) error {
	if f.cache != nil {
		if body, ok := f.cache.Get(ctx, url); ok {
			if err := json.Unmarshal(body, out); err == nil {
				return nil
			}
			// A corrupt cached payload falls through to a live fetch.
		}
	}

	raw, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx, url)
	})
	if err != nil {
		return fmt.Errorf("%s feed: %w", f.name, err)
	}
	body := raw.([]byte)

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s feed: decode payload: %w", f.name, err)
	}

	if f.cache != nil {
		f.cache.Set(ctx, url, body)
	}
	return nil
}

func (f *feedClient) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
