package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/pinharvest/api"
	"github.com/use-agent/pinharvest/cache"
	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/harvest"
	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/pipeline"
)

func main() {
	// Batch mode flags. Without -query the process starts the HTTP API.
	query := flag.String("query", "", "run one harvest for this query and exit instead of serving")
	kind := flag.String("kind", "pins", "batch harvest kind: pins, boards or search")
	maxItems := flag.Int("max-items", 0, "batch harvest item cap (0 = config default)")
	searchType := flag.String("search-type", "", "narrow search harvests to pins, boards or users")
	flag.Parse()

	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pinharvest starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. Initialise fetch engines ─────────────────────────────────
	engines := []fetch.Engine{
		fetch.NewHTTPEngine(cfg.Fetch.UserAgent, cfg.Browser.DefaultProxy),
	}

	var br *fetch.Browser
	if cfg.Browser.Enabled {
		var err error
		br, err = fetch.NewBrowser(cfg.Browser, cfg.Fetch)
		if err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer br.Close()
		engines = append(engines,
			fetch.NewRenderEngine(br, false),
			fetch.NewRenderEngine(br, true),
		)
	}

	// ── 3b. Multi-engine dispatcher with per-kind engine memory ─────
	memory := fetch.NewKindMemory(cfg.Fetch.MemoryTTL)
	defer memory.Stop()
	dispatcher := fetch.NewDispatcher(engines, cfg.Fetch.EscalationDelays, memory, cfg.Fetch.RequestsPerSecond)
	slog.Info("fetch dispatcher ready",
		"engines", len(engines),
		"delays", cfg.Fetch.EscalationDelays,
		"rps", cfg.Fetch.RequestsPerSecond,
	)

	// ── 4. Initialise page cache ────────────────────────────────────
	pages := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)

	// ── 5. Batch mode: one run, then exit ───────────────────────────
	if *query != "" {
		if err := runBatch(dispatcher, pages, cfg, *query, *kind, *maxItems, *searchType); err != nil {
			slog.Error("batch harvest failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(dispatcher, pages, br, cfg, slog.Default(), startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// br.Close() runs via defer — drains page pool and kills Chrome.
	slog.Info("pinharvest stopped")
}

// runBatch performs a single harvest from the command line, writing CSV
// files to the configured output directory.
func runBatch(fetcher harvest.Fetcher, pages *cache.Cache, cfg *config.Config, query, kind string, maxItems int, searchType string) error {
	log := slog.Default()
	hv := harvest.New(fetcher, pages, cfg.Harvest, log)
	pl := pipeline.New(pipeline.Config{
		OutputDir:        cfg.Export.OutputDir,
		StrictHeaders:    cfg.Export.StrictHeaders,
		NearDupThreshold: cfg.Harvest.NearDupThreshold,
	}, log)

	runID := fmt.Sprintf("batch-%d", time.Now().Unix())
	if err := pl.Open(runID); err != nil {
		return err
	}

	req := &models.HarvestRequest{
		Query:      query,
		Kind:       kind,
		MaxItems:   maxItems,
		SearchType: searchType,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	runErr := hv.Run(ctx, req, pl)
	if closeErr := pl.Close(); runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return runErr
	}

	stats := pl.Stats()
	log.Info("batch harvest finished",
		"query", query,
		"kind", kind,
		"kept", stats.Kept,
		"duplicates", stats.Duplicates,
		"files", pl.Files(),
	)
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
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
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
