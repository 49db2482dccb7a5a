// inteld is the edge intelligence daemon. It serves single-market and
// batch edge analysis over HTTP, streaming results over WebSocket and
// exposing Prometheus metrics.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marketplaymaker/edgeintel/pkg/catalog"
	"github.com/marketplaymaker/edgeintel/pkg/config"
	"github.com/marketplaymaker/edgeintel/pkg/intel"
	"github.com/marketplaymaker/edgeintel/pkg/matching"
	"github.com/marketplaymaker/edgeintel/pkg/metrics"
	"github.com/marketplaymaker/edgeintel/pkg/server"
	"github.com/marketplaymaker/edgeintel/pkg/sources"
	"github.com/marketplaymaker/edgeintel/pkg/streaming"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
	httpAddr   = flag.String("http", "", "HTTP listen address (overrides config)")
	verbose    = flag.Bool("verbose", false, "Debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}

	log := newLogger(cfg)
	log.Info().Str("addr", cfg.Server.Addr).Msg("starting edge intelligence daemon")

	engineMetrics := metrics.New()

	var cache sources.PayloadCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, running without payload cache")
		} else {
			cache = sources.NewRedisCache(rdb, cfg.Redis.CacheTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CacheTTL).Msg("payload cache enabled")
		}
		cancel()
	}

	adapters := buildAdapters(cfg, cache, log)
	log.Info().Int("sources", len(adapters)).Msg("source adapters initialized")

	cat := catalog.NewClient(
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithRateLimit(cfg.Catalog.RateLimit, cfg.Catalog.Burst),
	)

	budget := intel.NewBudget(cfg.Budget.PerSecond, cfg.Budget.Burst)

	matcherCfg := matching.DefaultConfig()
	matcherCfg.MinScore = cfg.Analysis.MinMatchScore

	graderCfg := intel.DefaultGraderConfig()
	graderCfg.Epsilon = cfg.Analysis.Epsilon
	graderCfg.DivergenceSaturation = cfg.Analysis.DivergenceSaturation
	graderCfg.GradeACutoff = cfg.Analysis.GradeACutoff
	graderCfg.GradeBCutoff = cfg.Analysis.GradeBCutoff
	graderCfg.GradeCCutoff = cfg.Analysis.GradeCCutoff

	analyzer := intel.NewAnalyzer(
		&intel.AnalyzerConfig{
			MaxMarkets:           cfg.Analysis.MaxMarkets,
			MaxConcurrentMarkets: cfg.Analysis.MaxConcurrentMarkets,
			SourceTimeout:        cfg.Analysis.SourceTimeout,
			MarketTimeout:        cfg.Analysis.MarketTimeout,
			Matcher:              matcherCfg,
			Grader:               graderCfg,
		},
		adapters,
		budget,
		intel.WithMetrics(engineMetrics),
		intel.WithLogger(log.With().Str("component", "analyzer").Logger()),
	)

	hub := streaming.NewHub(log.With().Str("component", "streaming").Logger())
	go hub.Run()

	srv := server.New(
		&server.Config{BatchDeadline: cfg.Server.BatchDeadline},
		analyzer,
		cat,
		hub,
		engineMetrics.Handler(),
		log.With().Str("component", "server").Logger(),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if *verbose {
		level = zerolog.DebugLevel
	}

	var w = os.Stderr
	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if cfg.Logging.Pretty {
		log = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	}
	return log
}

func buildAdapters(cfg *config.Config, cache sources.PayloadCache, log zerolog.Logger) []sources.Adapter {
	var adapters []sources.Adapter

	if cfg.Sources.Forecast.Enabled {
		fc := sources.DefaultForecastConfig()
		fc.BaseURL = cfg.Sources.Forecast.BaseURL
		fc.Timeout = cfg.Analysis.SourceTimeout
		adapters = append(adapters, sources.NewForecastAdapter(fc, cache, log))
	}
	if cfg.Sources.PeerMarket.Enabled {
		pc := sources.DefaultPeerMarketConfig()
		pc.BaseURL = cfg.Sources.PeerMarket.BaseURL
		pc.Timeout = cfg.Analysis.SourceTimeout
		adapters = append(adapters, sources.NewPeerMarketAdapter(pc, cache, log))
	}
	if cfg.Sources.Sportsbook.Enabled {
		sc := sources.DefaultSportsbookConfig()
		sc.BaseURL = cfg.Sources.Sportsbook.BaseURL
		sc.APIKey = cfg.Sources.Sportsbook.APIKey
		sc.Timeout = cfg.Analysis.SourceTimeout
		sc.Devig = cfg.Sources.Sportsbook.Devig
		if len(cfg.Sources.Sportsbook.Sports) > 0 {
			sc.Sports = cfg.Sources.Sportsbook.Sports
		}
		if len(cfg.Sources.Sportsbook.Outrights) > 0 {
			sc.Outrights = cfg.Sources.Sportsbook.Outrights
		}
		adapters = append(adapters, sources.NewSportsbookAdapter(sc, cache, log))
	}

	return adapters
}
