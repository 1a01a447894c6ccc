package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/efreitasn/stockexchange/internal/config"
	"github.com/efreitasn/stockexchange/internal/engine"
	"github.com/efreitasn/stockexchange/internal/handler"
	"github.com/efreitasn/stockexchange/internal/metrics"
	"github.com/efreitasn/stockexchange/internal/scenario"
	"github.com/efreitasn/stockexchange/internal/service"
	"github.com/efreitasn/stockexchange/internal/store"
)

func main() {
	scenarioPath := flag.String("scenario", "", "YAML scenario file (overrides SCENARIO_FILE; built-in scenario when empty)")
	linger := flag.Bool("linger", false, "Keep the diagnostics server up after the session until a signal arrives")
	healthcheck := flag.Bool("healthcheck", false, "Run health check against a running diagnostics server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to DIAGNOSTICS_ADDR/healthz, exit 0/1.
	if *healthcheck {
		addr := os.Getenv("DIAGNOSTICS_ADDR")
		if addr == "" {
			os.Exit(1)
		}
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Scenario: flag, then SCENARIO_FILE, then the built-in one.
	path := *scenarioPath
	if path == "" {
		path = cfg.ScenarioFile
	}
	sc := scenario.Default()
	if path != "" {
		sc, err = scenario.Load(path)
		if err != nil {
			logger.Error("failed to load scenario",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Instantiate stores.
	stockStore := store.NewStockStore()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()

	// Engine.
	book := engine.NewOrderBook()
	matcher := engine.NewMatcher(book, tradeStore, m, logger)
	monitor := engine.NewBookMonitor(cfg.MonitorInterval, cfg.StallAfter, book, m, logger)

	session := service.NewSessionService(matcher, stockStore, orderStore, tradeStore,
		service.SessionOptions{
			Workers:       cfg.PoolWorkers,
			QueueCapacity: cfg.PoolQueueCapacity,
			SettleTimeout: cfg.SettleTimeout,
		},
		m, logger,
	)

	// SIGINT/SIGTERM interrupt the session.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)

	// Optional diagnostics server.
	var srv *http.Server
	if cfg.DiagnosticsAddr != "" {
		srv = &http.Server{
			Addr:    cfg.DiagnosticsAddr,
			Handler: handler.NewRouter(stockStore, orderStore, tradeStore, book, registry, logger),
		}
		go func() {
			logger.Info("diagnostics server starting", slog.String("addr", cfg.DiagnosticsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("diagnostics server error", slog.String("error", err.Error()))
			}
		}()
	}

	report, runErr := session.Run(ctx, sc)
	if runErr != nil {
		logger.Error("session failed", slog.String("error", runErr.Error()))
	} else {
		logSummary(logger, report)
	}

	if srv != nil && *linger && runErr == nil {
		logger.Info("session done, diagnostics server still running")
		<-ctx.Done()
	}
	stop()

	// Graceful shutdown of the diagnostics server.
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("diagnostics server shutdown error", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
}

func logSummary(logger *slog.Logger, report *service.Report) {
	for _, o := range report.Orders {
		logger.Info("order summary",
			slog.String("order_id", o.OrderID),
			slog.String("side", string(o.Side)),
			slog.String("symbol", o.Symbol),
			slog.Int64("quantity", o.Quantity),
			slog.String("status", string(o.Status)),
			slog.Bool("executed", o.Executed),
			slog.String("matched_with", o.MatchedWith),
		)
	}
	for _, st := range report.Inventory {
		logger.Info("inventory",
			slog.String("symbol", st.Symbol),
			slog.Int64("price_per_share", st.PricePerShare),
			slog.Int64("available", st.Available),
		)
	}
}
