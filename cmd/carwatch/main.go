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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/aluiziolira/autotrader-watch/classifier"
	"github.com/aluiziolira/autotrader-watch/config"
	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/pipeline"
	"github.com/aluiziolira/autotrader-watch/scraper"
	"github.com/aluiziolira/autotrader-watch/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "Path to a .env file with credentials")
	criteriaFile := flag.String("config", "config.json", "Search criteria JSON file")
	stageList := flag.String("stage", "all", "Stages to run: all, or a comma separated list of harvest, filter, enrich, notify")
	schedule := flag.String("schedule", "", "Cron expression; when set the pipeline runs on this schedule until interrupted")
	storeBackend := flag.String("store", "", "Store backend: mongo or memory")
	ledgerBackend := flag.String("ledger", "", "Sent ledger backend: store or redis")
	pageLimit := flag.Int("page-limit", 0, "Stop harvesting once the result cursor reaches this offset")
	commitPartial := flag.Bool("commit-partial", false, "Commit the snapshot of a blocked harvest when it found listings")
	keepCandidates := flag.Bool("keep-candidates", false, "Accumulate candidates across runs instead of clearing them")
	dispatchDelay := flag.Duration("dispatch-delay", 0, "Delay between listing notifications (default 1s)")
	exportFile := flag.String("export", "", "Also write each committed snapshot to this file")
	exportFormat := flag.String("format", "csv", "Export format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	dryRun := flag.Bool("dry-run", false, "Use the in-memory store and log messages instead of sending them")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("loading environment", slog.Any("error", err))
		return 1
	}

	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		slog.Error("invalid environment", slog.Any("error", err))
		return 1
	}
	if err := cfg.LoadCriteria(*criteriaFile); err != nil {
		slog.Error("loading criteria", slog.Any("error", err))
		return 1
	}
	applyFlags(cfg, *storeBackend, *ledgerBackend, *pageLimit, *commitPartial, *keepCandidates, *dispatchDelay, *exportFile, *exportFormat, *schedule, *metricsAddr, *verbose)
	if *dryRun {
		cfg.StoreBackend = "memory"
		cfg.LedgerBackend = "store"
		cfg.TelegramToken = ""
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	stages, err := pipeline.ParseStages(*stageList)
	if err != nil {
		slog.Error("invalid stage selection", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current step")
	}()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("opening store", slog.Any("error", err))
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	transport, err := newTransport(cfg)
	if err != nil {
		slog.Error("initialising messenger", slog.Any("error", err))
		return 1
	}

	registry := prometheus.NewRegistry()
	fetchMetrics := scraper.NewMetricsWithRegistry(registry)
	stageMetrics := pipeline.NewMetrics(registry)

	runner, writer, err := buildRunner(cfg, backend, transport, fetchMetrics, stageMetrics)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		return 1
	}
	if writer != nil {
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close export writer", slog.Any("error", err))
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting pipeline",
		slog.String("start_url", cfg.StartURL),
		slog.Int("page_limit", cfg.PageLimit),
		slog.Int("criteria", len(cfg.Criteria)),
		slog.Any("stages", stages),
		slog.String("store", cfg.StoreBackend),
		slog.String("ledger", cfg.LedgerBackend),
	)

	if cfg.Schedule == "" {
		if err := runner.Run(ctx, stages); err != nil {
			slog.Error("pipeline failed", slog.Any("error", err))
			return 1
		}
		return 0
	}
	return runScheduled(ctx, cfg.Schedule, runner, stages, logger)
}

func applyFlags(cfg *config.Config, storeBackend, ledgerBackend string, pageLimit int, commitPartial, keepCandidates bool, dispatchDelay time.Duration, exportFile, exportFormat, schedule, metricsAddr string, verbose bool) {
	if storeBackend != "" {
		cfg.StoreBackend = storeBackend
	}
	if ledgerBackend != "" {
		cfg.LedgerBackend = ledgerBackend
	}
	if pageLimit > 0 {
		cfg.PageLimit = pageLimit
	}
	if dispatchDelay > 0 {
		cfg.DispatchDelay = dispatchDelay
	}
	if exportFile != "" {
		cfg.ExportFile = exportFile
		cfg.ExportFormat = strings.ToLower(exportFormat)
	}
	cfg.CommitPartial = commitPartial
	cfg.ResetCandidates = !keepCandidates
	cfg.Schedule = schedule
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose
}

func newTransport(cfg *config.Config) (messenger.Transport, error) {
	if cfg.TelegramToken == "" {
		slog.Warn("no telegram token configured, messages are only logged")
		return messenger.Log{}, nil
	}
	return messenger.NewTelegram(messenger.TelegramConfig{
		Token:        cfg.TelegramToken,
		LogChatID:    cfg.LogChatID,
		ResultChatID: cfg.ResultChatID,
	})
}

func buildRunner(cfg *config.Config, backend store.Backend, transport messenger.Transport, fetchMetrics *scraper.Metrics, stageMetrics *pipeline.Metrics) (*pipeline.Runner, pipeline.OutputWriter, error) {
	harvestClient, err := scraper.NewClient(cfg.Harvest, fetchMetrics)
	if err != nil {
		return nil, nil, fmt.Errorf("harvest client: %w", err)
	}
	enrichClient, err := scraper.NewClient(cfg.Enrich, fetchMetrics)
	if err != nil {
		return nil, nil, fmt.Errorf("enrich client: %w", err)
	}

	harvester := scraper.NewHarvester(cfg, harvestClient, backend.Listings(), transport, fetchMetrics)
	var writer pipeline.OutputWriter
	if cfg.ExportFormat != "" {
		writer, err = pipeline.NewOutputWriter(cfg.ExportFile, cfg.ExportFormat)
		if err != nil {
			return nil, nil, err
		}
		harvester.Export = writer
	}

	var cls classifier.Classifier
	if cfg.OpenAIKey != "" {
		c, err := classifier.NewOpenAI(classifier.Config{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel})
		if err != nil {
			return nil, writer, err
		}
		cls = c
	}

	filter := pipeline.NewFilterEngine(backend.Listings(), backend.Candidates(), transport)
	filter.ResetCandidates = cfg.ResetCandidates
	filter.Metrics = stageMetrics

	notifier := pipeline.NewNotifier(backend.Candidates(), backend.Sent(), transport, cls)
	notifier.DispatchDelay = cfg.DispatchDelay
	notifier.Metrics = stageMetrics

	return &pipeline.Runner{
		Harvester: harvester,
		Filter:    filter,
		Enricher:  scraper.NewEnricher(enrichClient, backend.Candidates(), transport, fetchMetrics),
		Notifier:  notifier,
		Criteria:  cfg.Criteria,
		Transport: transport,
		Metrics:   stageMetrics,
	}, writer, nil
}

func runScheduled(ctx context.Context, expr string, runner *pipeline.Runner, stages []pipeline.Stage, logger *slog.Logger) int {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger)))

	_, err := c.AddFunc(expr, func() {
		if err := runner.Run(ctx, stages); err != nil {
			slog.Error("scheduled run failed", slog.Any("error", err))
		}
	})
	if err != nil {
		slog.Error("invalid schedule", slog.String("schedule", expr), slog.Any("error", err))
		return 1
	}

	c.Start()
	slog.Info("scheduler started", slog.String("schedule", expr))
	<-ctx.Done()
	<-c.Stop().Done()
	return 0
}

func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return srv
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
