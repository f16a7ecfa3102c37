package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gatescan/internal/scan"
)

type Config struct {
	Database  DatabaseConfig      `json:"database" yaml:"database"`
	StorePath string              `json:"store_path" yaml:"store_path"`
	Scanner   ScannerConfig       `json:"scanner" yaml:"scanner"`
	Scoring   ScoringConfig       `json:"scoring" yaml:"scoring"`
	Risk      scan.Thresholds     `json:"risk_thresholds" yaml:"risk_thresholds"`
	Settings  scan.Settings       `json:"settings" yaml:"settings"`
	Observer  ObservabilityConfig `json:"observability" yaml:"observability"`
}

type DatabaseConfig struct {
	DSN            string `json:"dsn" yaml:"dsn"`
	MaxConns       int32  `json:"max_conns" yaml:"max_conns"`
	MigrationsPath string `json:"migrations_path" yaml:"migrations_path"`
}

type ScannerConfig struct {
	WindowBytes      int   `json:"window_bytes" yaml:"window_bytes"`
	ChunkBytes       int   `json:"chunk_bytes" yaml:"chunk_bytes"`
	MaxSourceBytes   int64 `json:"max_source_bytes" yaml:"max_source_bytes"`
	TimeoutSec       int   `json:"timeout_sec" yaml:"timeout_sec"`
	MaxParallelScans int   `json:"max_parallel_scans" yaml:"max_parallel_scans"`
	SubmitRPM        int   `json:"submit_rpm" yaml:"submit_rpm"`
}

type ScoringConfig struct {
	BackendURL string `json:"backend_url" yaml:"backend_url"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			MaxConns:       10,
			MigrationsPath: "./migrations",
		},
		Scanner: ScannerConfig{
			WindowBytes:      scan.DefaultWindowBytes,
			ChunkBytes:       512,
			MaxSourceBytes:   100 << 20,
			TimeoutSec:       60,
			MaxParallelScans: 8,
			SubmitRPM:        60,
		},
		Scoring: ScoringConfig{
			TimeoutSec: 10,
		},
		Risk:     scan.DefaultThresholds(),
		Settings: scan.DefaultSettings(),
		Observer: ObservabilityConfig{
			ServiceName: "gatescan",
			SampleRatio: 1,
		},
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}
	normalizeConfig(&cfg)
	if err := cfg.Risk.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func normalizeConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if strings.TrimSpace(cfg.Database.MigrationsPath) == "" {
		cfg.Database.MigrationsPath = "./migrations"
	}
	if cfg.Scanner.WindowBytes <= 0 {
		cfg.Scanner.WindowBytes = scan.DefaultWindowBytes
	}
	if cfg.Scanner.ChunkBytes <= 0 {
		cfg.Scanner.ChunkBytes = 512
	}
	if cfg.Scanner.MaxSourceBytes <= 0 {
		cfg.Scanner.MaxSourceBytes = 100 << 20
	}
	if cfg.Scanner.TimeoutSec <= 0 {
		cfg.Scanner.TimeoutSec = 60
	}
	if cfg.Scanner.MaxParallelScans <= 0 {
		cfg.Scanner.MaxParallelScans = 8
	}
	if cfg.Scanner.SubmitRPM <= 0 {
		cfg.Scanner.SubmitRPM = 60
	}
	if cfg.Scoring.TimeoutSec <= 0 {
		cfg.Scoring.TimeoutSec = 10
	}
	if cfg.Risk == (scan.Thresholds{}) {
		cfg.Risk = scan.DefaultThresholds()
	}
	if cfg.Settings.Temperature <= 0 {
		cfg.Settings.Temperature = 1
	}
	if cfg.Observer.SampleRatio <= 0 || cfg.Observer.SampleRatio > 1 {
		cfg.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(cfg.Observer.ServiceName) == "" {
		cfg.Observer.ServiceName = "gatescan"
	}
}
