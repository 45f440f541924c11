package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantframe/decision-engine/internal/config"
	"github.com/quantframe/decision-engine/internal/engine"
	"github.com/quantframe/decision-engine/internal/feed"
	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/internal/logger"
	"github.com/quantframe/decision-engine/internal/monitoring"
	"github.com/quantframe/decision-engine/internal/pattern"
	"github.com/quantframe/decision-engine/internal/regime"
	"github.com/quantframe/decision-engine/internal/report"
	"github.com/quantframe/decision-engine/internal/risk"
	"github.com/quantframe/decision-engine/pkg/types"
)

// loggingSink records order actions in the log. Replay runs have no broker;
// a host platform supplies its own feed.OrderSink instead.
type loggingSink struct {
	log zerolog.Logger
}

func (s loggingSink) Submit(ctx context.Context, o feed.Order) error {
	s.log.Info().
		Str("side", o.Side).
		Float64("size", o.Size).
		Float64("stop", o.Stop).
		Float64("target", o.Target).
		Str("tag", o.Tag).
		Msg("order submitted")
	return nil
}

func (s loggingSink) ModifyStop(ctx context.Context, id string, stop float64) error {
	s.log.Info().Str("position", id).Float64("stop", stop).Msg("stop modified")
	return nil
}

func (s loggingSink) ClosePartial(ctx context.Context, id string, size float64) error {
	s.log.Info().Str("position", id).Float64("size", size).Msg("partial close")
	return nil
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, logFile, err := logger.NewWithFile(cfg.LogLevel, cfg.LogPretty, cfg.LogDir, cfg.Engine.Symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	if cfg.Replay.DataFile == "" {
		log.Fatal().Msg("REPLAY_DATA_FILE is required: this binary runs the engine over recorded bars")
	}

	bars, err := feed.LoadCSVBars(cfg.Replay.DataFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load bar data")
	}
	log.Info().Int("bars", len(bars)).Str("file", cfg.Replay.DataFile).Msg("bar data loaded")

	replay := feed.NewReplayFeed(cfg.Regime.Primary, bars, cfg.Replay.MinStart, cfg.Replay.StartEquity)

	timeframes := []types.Timeframe{cfg.Regime.Primary, cfg.Regime.Confirming[0], cfg.Regime.Confirming[1]}
	poller := feed.NewReadinessPoller(replay, timeframes, cfg.MinIndicatorBars, cfg.StartupTimeout, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
		cancel()
	}()

	if err := poller.WaitReady(ctx); err != nil {
		log.Fatal().Err(err).Msg("feeds never became ready")
	}

	eng := engine.New(
		cfg.Engine,
		cfg.Regime,
		regime.NewClassifier(cfg.Regime),
		levels.NewDetector(cfg.Levels),
		pattern.NewDetector(cfg.Pattern),
		risk.NewManager(cfg.Risk, log),
		poller,
		replay,
		replay,
		loggingSink{log: log},
		log,
	)

	report.PrintStartup(os.Stdout, cfg.Engine.Symbol, cfg.Regime.Primary.String(), cfg.Engine.Lookback, eng.Session().ID())

	health := monitoring.NewHealthChecker()
	health.SetFeedsReady(true)
	startServers(cfg, health, log)

	ticker := time.NewTicker(cfg.CycleInterval)
	defer ticker.Stop()

	log.Info().
		Str("symbol", cfg.Engine.Symbol).
		Str("interval", cfg.CycleInterval.String()).
		Msg("engine started")

	cycles := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("cycles", cycles).Msg("engine stopped")
			report.PrintView(os.Stdout, eng.View())
			return
		case <-ticker.C:
			if !replay.Advance() {
				log.Info().Int("cycles", cycles).Msg("replay exhausted")
				report.PrintView(os.Stdout, eng.View())
				return
			}
			if err := eng.RunCycle(ctx); err != nil {
				log.Error().Err(err).Msg("evaluation cycle failed")
				health.RecordError(err.Error())
				continue
			}
			cycles++
			health.RecordCycle(eng.View().Price)
			if cycles%20 == 0 {
				report.PrintView(os.Stdout, eng.View())
			}
		}
	}
}

func startServers(cfg *config.Config, health *monitoring.HealthChecker, log zerolog.Logger) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		log.Info().Str("addr", addr).Msg("health server listening")
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()
}
