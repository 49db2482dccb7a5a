// Package server exposes the analysis engine over a synchronous HTTP
// request/response boundary: single-market and batch edge analysis, a
// WebSocket result stream, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/marketplaymaker/edgeintel/core"
	"github.com/marketplaymaker/edgeintel/pkg/catalog"
	"github.com/marketplaymaker/edgeintel/pkg/streaming"
)

// Engine is the analysis pipeline the server fronts.
type Engine interface {
	AnalyzeOne(ctx context.Context, market core.Market) (*core.EdgeResult, error)
	AnalyzeBatch(ctx context.Context, markets []core.Market, maxMarkets int) ([]core.EdgeResult, error)
}

// Catalog supplies the market snapshots to analyze.
type Catalog interface {
	GetMarket(ctx context.Context, conditionID string) (*catalog.Market, error)
	ListOpenMarkets(ctx context.Context) ([]catalog.Market, error)
}

// Config configures the server.
type Config struct {
	// BatchDeadline bounds one batch request end to end; markets not yet
	// started when it fires are omitted, not errored.
	BatchDeadline time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{BatchDeadline: 2 * time.Minute}
}

// Server routes analysis requests to the engine.
type Server struct {
	cfg     *Config
	engine  Engine
	catalog Catalog
	hub     *streaming.Hub
	metrics http.Handler
	router  *mux.Router
	log     zerolog.Logger
}

// New creates a server. hub and metricsHandler may be nil.
func New(cfg *Config, engine Engine, cat Catalog, hub *streaming.Hub, metricsHandler http.Handler, log zerolog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		catalog: cat,
		hub:     hub,
		metrics: metricsHandler,
		log:     log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/intel/independent/batch", s.handleBatch).Methods("POST")
	r.HandleFunc("/api/intel/independent/{conditionId}", s.handleSingle).Methods("GET")
	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS)
	}
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}
	s.router = r

	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSingle(w http.ResponseWriter, r *http.Request) {
	conditionID := mux.Vars(r)["conditionId"]

	record, err := s.catalog.GetMarket(r.Context(), conditionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.engine.AnalyzeOne(r.Context(), record.ToCore())
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastResult(result)
	}
	writeJSON(w, http.StatusOK, result)
}

// batchRequest is the batch analysis request body.
type batchRequest struct {
	MaxMarkets int `json:"maxMarkets"`
}

// batchResponse is the batch analysis response body. RetryAfter is set
// when admission stopped early on budget exhaustion but completed results
// are still returned.
type batchResponse struct {
	Results    []core.EdgeResult `json:"results"`
	RetryAfter int               `json:"retryAfter,omitempty"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorPayload(w, http.StatusBadRequest, core.KindInternal, "invalid request body", 0)
		return
	}

	records, err := s.catalog.ListOpenMarkets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(records) == 0 {
		s.writeError(w, core.ErrNoMarkets)
		return
	}

	markets := make([]core.Market, 0, len(records))
	for _, rec := range records {
		markets = append(markets, rec.ToCore())
	}

	ctx := r.Context()
	if s.cfg.BatchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchDeadline)
		defer cancel()
	}

	started := time.Now()
	results, err := s.engine.AnalyzeBatch(ctx, markets, req.MaxMarkets)
	if err != nil {
		var rl *core.RateLimitedError
		if errors.As(err, &rl) && len(results) > 0 {
			// Partial batch: completed results plus the retry hint.
			s.broadcastBatch(started, results)
			writeJSON(w, http.StatusOK, batchResponse{
				Results:    results,
				RetryAfter: retrySeconds(rl.RetryAfter),
			})
			return
		}
		if s.hub != nil {
			s.hub.BroadcastError(err, "batch")
		}
		s.writeError(w, err)
		return
	}

	s.broadcastBatch(started, results)
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

// broadcastBatch streams the individual results and a closing summary.
func (s *Server) broadcastBatch(started time.Time, results []core.EdgeResult) {
	if s.hub == nil {
		return
	}
	grades := make(map[string]int, 4)
	for i := range results {
		s.hub.BroadcastResult(&results[i])
		grades[string(results[i].Grade)]++
	}
	s.hub.BroadcastBatch(streaming.BatchSummary{
		BatchID:   uuid.NewString(),
		Results:   len(results),
		Grades:    grades,
		ElapsedMs: time.Since(started).Milliseconds(),
	})
}

// errorPayload is the structured failure body; kind is stable so callers
// can branch programmatically.
type errorPayload struct {
	Error      string    `json:"error"`
	Kind       core.Kind `json:"kind"`
	RetryAfter int       `json:"retryAfter,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)
	status := http.StatusInternalServerError
	retryAfter := 0

	switch kind {
	case core.KindRateLimited:
		status = http.StatusTooManyRequests
		var rl *core.RateLimitedError
		if errors.As(err, &rl) {
			retryAfter = retrySeconds(rl.RetryAfter)
		}
	case core.KindNoMarkets:
		status = http.StatusNotFound
	}

	s.log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	writeErrorPayload(w, status, kind, err.Error(), retryAfter)
}

func writeErrorPayload(w http.ResponseWriter, status int, kind core.Kind, msg string, retryAfter int) {
	writeJSON(w, status, errorPayload{Error: msg, Kind: kind, RetryAfter: retryAfter})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
