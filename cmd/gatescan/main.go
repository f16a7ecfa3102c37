package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gatescan/internal/gateway"
	"gatescan/internal/model"
	"gatescan/internal/scan"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML/JSON")
	urlArg := flag.String("url", "", "URL to scan")
	fileArg := flag.String("file", "", "File to scan")
	block := flag.Bool("block", false, "Block the transfer when probability crosses the confidence threshold")
	backend := flag.String("backend", "", "Scoring backend base URL override (entropy heuristic when unset)")
	migrateOnly := flag.Bool("migrate-only", false, "Run database migrations and exit")
	flag.Parse()

	cfg, err := gateway.LoadConfig(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Scoring.BackendURL = *backend
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, pool, err := buildStore(rootCtx, cfg)
	if err != nil {
		slog.Error("open threat store failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	if *migrateOnly {
		slog.Info("migrations applied")
		return
	}
	if *urlArg == "" && *fileArg == "" {
		fmt.Fprintln(os.Stderr, "one of -url or -file is required")
		os.Exit(1)
	}

	obs, err := gateway.SetupObservability(rootCtx, cfg.Observer)
	if err != nil {
		slog.Error("setup observability failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = obs.Shutdown(ctx)
	}()

	settings, err := scan.NewSettingsStore(cfg.Settings)
	if err != nil {
		slog.Error("invalid scan settings", "error", err)
		os.Exit(1)
	}
	engine := scan.NewEngine(buildScorer(cfg), settings,
		scan.WithWindowBytes(cfg.Scanner.WindowBytes),
		scan.WithThresholds(cfg.Risk),
	)
	manager := gateway.NewScanManager(cfg, engine, settings, store, gateway.NewNotifier(), obs)

	request := gateway.ScanRequest{
		SourceKind:       "url",
		Identifier:       *urlArg,
		BlockOnDetection: *block,
		Submitter:        "cli",
	}
	if *fileArg != "" {
		request.SourceKind = "file"
		request.Identifier = *fileArg
	}

	result, err := manager.Submit(rootCtx, request)
	if err != nil {
		if failure, ok := scan.AsError(err); ok {
			slog.Error("scan failed", "kind", string(failure.Kind), "error", failure.Err)
		} else {
			slog.Error("scan failed", "error", err)
		}
		os.Exit(1)
	}

	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(encoded))
	if result.Blocked {
		os.Exit(2)
	}
}

func buildStore(ctx context.Context, cfg gateway.Config) (gateway.ThreatStore, *pgxpool.Pool, error) {
	if cfg.Database.DSN == "" {
		store, err := gateway.NewMemoryFileStore(cfg.StorePath)
		return store, nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := gateway.RunMigrations(ctx, pool, cfg.Database.MigrationsPath); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return gateway.NewPgStore(pool), pool, nil
}

func buildScorer(cfg gateway.Config) scan.Scorer {
	if cfg.Scoring.BackendURL == "" {
		slog.Info("no scoring backend configured; using entropy heuristic")
		return scan.EntropyScorer{}
	}
	return model.NewClient(model.Config{
		BaseURL: cfg.Scoring.BackendURL,
		APIKey:  cfg.Scoring.APIKey,
		Timeout: time.Duration(cfg.Scoring.TimeoutSec) * time.Second,
	})
}
