package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/stratdesk/config"
	"github.com/alejandrodnm/stratdesk/internal/adapters/fixture"
	"github.com/alejandrodnm/stratdesk/internal/adapters/notify"
	"github.com/alejandrodnm/stratdesk/internal/adapters/storage"
	"github.com/alejandrodnm/stratdesk/internal/metrics"
	"github.com/alejandrodnm/stratdesk/internal/ports"
	"github.com/alejandrodnm/stratdesk/internal/scanner"
	"github.com/alejandrodnm/stratdesk/internal/scenario"
	"github.com/alejandrodnm/stratdesk/internal/selector"
	"github.com/alejandrodnm/stratdesk/internal/signals"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	fixturesPath := flag.String("fixtures", "config/fixtures.yaml", "market snapshots and price paths (YAML)")
	once := flag.Bool("once", false, "run one analysis cycle and exit")
	dryRun := flag.Bool("dry-run", false, "keep signals in memory, do not touch the database")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	stats := flag.Bool("stats", false, "print signal statistics from the database and exit")
	history := flag.String("history", "", "print the last 24h of analyses for SYMBOL and exit")
	annotate := flag.Bool("annotate", false, "print chart annotations for the best candidate of each symbol and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("stratdesk starting",
		"config", *configPath,
		"fixtures", *fixturesPath,
		"interval", cfg.ScanInterval(),
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := notify.NewConsole(!*table)

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	if *stats || *history != "" {
		if store == nil {
			slog.Error("-stats and -history need the database (drop -dry-run)")
			os.Exit(1)
		}
		if err := runReports(ctx, store, notifier, *stats, *history); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	market, err := fixture.Load(*fixturesPath)
	if err != nil {
		slog.Error("failed to load fixtures", "err", err, "path", *fixturesPath)
		os.Exit(1)
	}
	symbols := cfg.Scanner.Symbols
	if len(symbols) == 0 {
		symbols = market.Symbols()
	}

	rec := metrics.New()
	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics.Addr, rec)
	}

	registry := strategy.Default()
	selOpts := []selector.Option{selector.WithMetrics(rec)}
	if cfg.Selector.JitterPct > 0 {
		seed := cfg.Selector.JitterSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		selOpts = append(selOpts, selector.WithJitter(rand.NewSource(seed), cfg.Selector.JitterPct))
	}
	sel := selector.New(selector.Config{
		MinSuitability:  cfg.Selector.MinSuitability,
		TopPerDirection: cfg.Selector.TopPerDirection,
	}, registry, selOpts...)

	if *annotate {
		runAnnotate(ctx, market, symbols, registry, sel, notifier)
		return
	}

	resolver := scenario.NewResolver(scenario.Config{
		ViabilityThreshold: cfg.Scenario.ViabilityThreshold,
		MaxAlternatives:    cfg.Scenario.MaxAlternatives,
	}, rec)

	// store es un *SQLiteStorage nil en dry-run: el gestor necesita una
	// interfaz nil de verdad.
	var signalStore ports.SignalStore
	var analyses ports.AnalysisStore
	if store != nil {
		signalStore = store
		analyses = store
	}

	manager := signals.New(signals.Config{
		PersistQueue:     cfg.Signals.PersistQueue,
		CompletedHistory: cfg.Signals.CompletedHistory,
	}, signalStore, signals.WithMetrics(rec))
	if err := manager.Init(ctx); err != nil {
		slog.Error("failed to restore signals", "err", err)
		os.Exit(1)
	}
	unsubscribe := manager.Subscribe(notifier.NotifySignals)

	scanCfg := scanner.DefaultConfig()
	scanCfg.ScanInterval = cfg.ScanInterval()
	scanCfg.PriceInterval = cfg.PriceInterval()
	scanCfg.Symbols = symbols
	scanCfg.RequestsPerSecond = cfg.Scanner.RequestsPerSecond
	scanCfg.Once = *once
	scanCfg.Track = scanner.TrackConfig{
		MinSuitability:    cfg.Scanner.TrackMinSuitability,
		MaxPerSymbol:      cfg.Scanner.TrackMaxPerSymbol,
		AllowCounterTrend: cfg.Scanner.AllowCounterTrend,
	}

	s := scanner.New(scanCfg, scanner.Deps{
		States:   market,
		Prices:   market,
		Registry: registry,
		Selector: sel,
		Resolver: resolver,
		Signals:  manager,
		Notifier: notifier,
		Analyses: analyses,
		Metrics:  rec,
	})

	runErr := s.Run(ctx)

	unsubscribe()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := manager.Close(closeCtx); err != nil {
		slog.Warn("signal persistence not fully drained", "err", err)
	}

	if *once {
		notifier.PrintStats(manager.Stats())
	}

	if runErr != nil {
		slog.Error("scanner exited with error", "err", runErr)
		os.Exit(1)
	}

	slog.Info("stratdesk stopped cleanly")
}

// serveMetrics expone /metrics hasta que ctx se cancele.
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
