package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	AI        AIConfig
	Compiler  CompilerConfig
	Templates TemplatesConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address          string
	Mode             string // "debug" or "release"
	MaxUploadBytes   int64
	UploadsPerMinute int
	CORSOrigins      []string
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver     string // mongo, sqlite3 or mysql
	URI        string // mongo connection string or SQL DSN
	Database   string
	Collection string
}

// CacheConfig enables the redis read-through cache when Addr is set.
type CacheConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

type AIConfig struct {
	Provider    string // gemini, openai or claude
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // zero means no deadline
	Temperature float32
	TopP        float32
	MaxTokens   int
}

type CompilerConfig struct {
	Strategy      string // local or remote
	Binary        string
	WorkDir       string
	Timeout       time.Duration
	MaxParallel   int
	RemoteURL     string
	RemoteTimeout time.Duration
	SweepInterval time.Duration
	SweepTTL      time.Duration
}

type TemplatesConfig struct {
	Dir string
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

const (
	defaultAddress        = ":5000"
	defaultMaxUploadBytes = 5 << 20
	defaultDatabase       = "cv_database"
	defaultCollection     = "latex_cvs"
	defaultModel          = "gemini-1.5-flash"
	defaultRemoteURL      = "https://latexonline.cc/data"
)

type rawConfig struct {
	Server    rawServerConfig   `yaml:"server"`
	Store     rawStoreConfig    `yaml:"store"`
	Cache     rawCacheConfig    `yaml:"cache"`
	AI        rawAIConfig       `yaml:"ai"`
	Compiler  rawCompilerConfig `yaml:"compiler"`
	Templates TemplatesConfig   `yaml:"templates"`
	Log       LogConfig         `yaml:"log"`
}

type rawServerConfig struct {
	Address          string   `yaml:"address"`
	Mode             string   `yaml:"mode"`
	MaxUploadBytes   int64    `yaml:"max_upload_bytes"`
	UploadsPerMinute int      `yaml:"uploads_per_minute"`
	CORSOrigins      []string `yaml:"cors_origins"`
}

type rawStoreConfig struct {
	Driver     string `yaml:"driver"`
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type rawCacheConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type rawAIConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Timeout     string   `yaml:"timeout"`
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"top_p"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type rawCompilerConfig struct {
	Strategy      string `yaml:"strategy"`
	Binary        string `yaml:"binary"`
	WorkDir       string `yaml:"work_dir"`
	Timeout       string `yaml:"timeout"`
	MaxParallel   int    `yaml:"max_parallel"`
	RemoteURL     string `yaml:"remote_url"`
	RemoteTimeout string `yaml:"remote_timeout"`
	SweepInterval string `yaml:"sweep_interval"`
	SweepTTL      string `yaml:"sweep_ttl"`
}

// Load reads configuration from path (optional) and applies environment overrides.
// An empty path skips the file entirely; a missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	var raw rawConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&raw)

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(raw *rawConfig) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		raw.Store.URI = v
	}
	if v := os.Getenv("LATEXCV_STORE_DRIVER"); v != "" {
		raw.Store.Driver = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		raw.AI.APIKey = v
	}
	if v := os.Getenv("LATEXCV_COMPILER"); v != "" {
		raw.Compiler.Strategy = v
	}
	if v := os.Getenv("PORT"); v != "" {
		raw.Server.Address = ":" + v
	}
}

func build(raw rawConfig) (*Config, error) {
	var err error
	cfg := &Config{
		Server: ServerConfig{
			Address:          orDefault(raw.Server.Address, defaultAddress),
			Mode:             orDefault(strings.ToLower(raw.Server.Mode), "release"),
			MaxUploadBytes:   raw.Server.MaxUploadBytes,
			UploadsPerMinute: raw.Server.UploadsPerMinute,
			CORSOrigins:      raw.Server.CORSOrigins,
		},
		Store: StoreConfig{
			Driver:     normalizeDriver(raw.Store.Driver),
			URI:        raw.Store.URI,
			Database:   orDefault(raw.Store.Database, defaultDatabase),
			Collection: orDefault(raw.Store.Collection, defaultCollection),
		},
		Cache: CacheConfig{
			Addr:     raw.Cache.Addr,
			Username: raw.Cache.Username,
			Password: raw.Cache.Password,
			DB:       raw.Cache.DB,
		},
		AI: AIConfig{
			Provider:    orDefault(strings.ToLower(raw.AI.Provider), "gemini"),
			Model:       orDefault(raw.AI.Model, defaultModel),
			BaseURL:     raw.AI.BaseURL,
			APIKey:      raw.AI.APIKey,
			Temperature: 0.7,
			TopP:        0.95,
			MaxTokens:   raw.AI.MaxTokens,
		},
		Compiler: CompilerConfig{
			Strategy:    orDefault(strings.ToLower(raw.Compiler.Strategy), "local"),
			Binary:      orDefault(raw.Compiler.Binary, "pdflatex"),
			WorkDir:     orDefault(raw.Compiler.WorkDir, "uploads"),
			MaxParallel: raw.Compiler.MaxParallel,
			RemoteURL:   orDefault(raw.Compiler.RemoteURL, defaultRemoteURL),
		},
		Templates: raw.Templates,
		Log: LogConfig{
			Level:  orDefault(strings.ToLower(raw.Log.Level), "info"),
			Format: orDefault(strings.ToLower(raw.Log.Format), "text"),
		},
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if raw.AI.Temperature != nil {
		cfg.AI.Temperature = *raw.AI.Temperature
	}
	if raw.AI.TopP != nil {
		cfg.AI.TopP = *raw.AI.TopP
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 8192
	}
	if cfg.Compiler.MaxParallel <= 0 {
		cfg.Compiler.MaxParallel = 4
	}

	if cfg.Cache.TTL, err = parseDuration("cache.ttl", raw.Cache.TTL, time.Hour); err != nil {
		return nil, err
	}
	if cfg.AI.Timeout, err = parseDuration("ai.timeout", raw.AI.Timeout, 0); err != nil {
		return nil, err
	}
	if cfg.Compiler.Timeout, err = parseDuration("compiler.timeout", raw.Compiler.Timeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Compiler.RemoteTimeout, err = parseDuration("compiler.remote_timeout", raw.Compiler.RemoteTimeout, time.Minute); err != nil {
		return nil, err
	}
	if cfg.Compiler.SweepInterval, err = parseDuration("compiler.sweep_interval", raw.Compiler.SweepInterval, 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Compiler.SweepTTL, err = parseDuration("compiler.sweep_ttl", raw.Compiler.SweepTTL, time.Hour); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.UploadsPerMinute < 0 {
		return fmt.Errorf("server.uploads_per_minute must not be negative, got %d", cfg.Server.UploadsPerMinute)
	}
	if cfg.Store.URI == "" {
		return errors.New("store.uri is required (set MONGO_URI or store.uri in the config file)")
	}
	switch cfg.Store.Driver {
	case "mongo", "sqlite3", "mysql":
	default:
		return fmt.Errorf("store.driver must be one of mongo, sqlite3, mysql, got %q", cfg.Store.Driver)
	}
	if cfg.AI.APIKey == "" {
		return errors.New("ai.api_key is required (set GEMINI_API_KEY or ai.api_key in the config file)")
	}
	switch cfg.AI.Provider {
	case "gemini", "openai", "claude":
	default:
		return fmt.Errorf("ai.provider must be one of gemini, openai, claude, got %q", cfg.AI.Provider)
	}
	if cfg.AI.Timeout < 0 {
		return fmt.Errorf("ai.timeout must not be negative, got %v", cfg.AI.Timeout)
	}
	switch cfg.Compiler.Strategy {
	case "local", "remote":
	default:
		return fmt.Errorf("compiler.strategy must be local or remote, got %q", cfg.Compiler.Strategy)
	}
	if cfg.Compiler.Timeout <= 0 {
		return fmt.Errorf("compiler.timeout must be positive, got %v", cfg.Compiler.Timeout)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	return nil
}

// normalizeDriver maps accepted spellings onto mongo, sqlite3 or mysql.
func normalizeDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "mongodb":
		return "mongo"
	case "sqlite":
		return "sqlite3"
	default:
		return d
	}
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
