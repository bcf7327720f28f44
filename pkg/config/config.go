package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const Version = "0.3.0"

// Config holds application configuration
type Config struct {
	// Server configuration
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Backend configuration
	BackendURL     string        `yaml:"backend_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Circuit breaker around backend calls
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
	BreakerInterval    time.Duration `yaml:"breaker_interval"`

	// Graph layout
	GridColumns int     `yaml:"grid_columns"`
	ColumnWidth float64 `yaml:"column_width"`
	RowHeight   float64 `yaml:"row_height"`

	// Notifications
	NoticeTTL      time.Duration `yaml:"notice_ttl"`
	NoticeCapacity int           `yaml:"notice_capacity"`

	// Backend stub (local development)
	StubPort  int  `yaml:"stub_port"`
	StubCodes bool `yaml:"stub_codes"`

	// Debug
	Debug bool `yaml:"debug"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               9091,
		AllowedOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		BackendURL:         "http://localhost:8000",
		RequestTimeout:     10 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		BreakerInterval:    60 * time.Second,
		GridColumns:        4,
		ColumnWidth:        250,
		RowHeight:          200,
		NoticeTTL:          5 * time.Second,
		NoticeCapacity:     64,
		StubPort:           8000,
		StubCodes:          true,
		Debug:              false,
	}
}

// LoadFromFile overlays values from a YAML file onto cfg. Keys absent from
// the file keep their current value.
func LoadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if val := os.Getenv("HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		cfg.AllowedOrigins = splitList(val)
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		cfg.BackendURL = strings.TrimRight(val, "/")
	}
	if val := os.Getenv("REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if val := os.Getenv("BREAKER_MAX_FAILURES"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			cfg.BreakerMaxFailures = uint32(n)
		}
	}
	if val := os.Getenv("BREAKER_OPEN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.BreakerOpenTimeout = d
		}
	}
	if val := os.Getenv("BREAKER_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.BreakerInterval = d
		}
	}
	if val := os.Getenv("GRID_COLUMNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.GridColumns = n
		}
	}
	if val := os.Getenv("COLUMN_WIDTH"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.ColumnWidth = f
		}
	}
	if val := os.Getenv("ROW_HEIGHT"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.RowHeight = f
		}
	}
	if val := os.Getenv("NOTICE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.NoticeTTL = d
		}
	}
	if val := os.Getenv("NOTICE_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.NoticeCapacity = n
		}
	}
	if val := os.Getenv("STUB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.StubPort = port
		}
	}
	if val := os.Getenv("STUB_CODES"); val != "" {
		cfg.StubCodes = parseBool(val)
	}
	if val := os.Getenv("DEBUG"); val != "" {
		cfg.Debug = parseBool(val)
	}
}

// Load builds the effective configuration: defaults, then the file named by
// FRIENDGRAPH_CONFIG if set, then environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("FRIENDGRAPH_CONFIG"); path != "" {
		if err := LoadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the dashboard misbehave
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url must be set")
	}
	if c.GridColumns < 1 {
		return fmt.Errorf("grid_columns must be at least 1, got %d", c.GridColumns)
	}
	if c.NoticeCapacity < 1 {
		return fmt.Errorf("notice_capacity must be at least 1, got %d", c.NoticeCapacity)
	}
	if c.NoticeTTL <= 0 {
		return fmt.Errorf("notice_ttl must be positive")
	}
	return nil
}

func parseBool(val string) bool {
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes"
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
