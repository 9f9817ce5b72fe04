package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/studyplan/internal/gemini"
	"github.com/MikeSquared-Agency/studyplan/internal/prompt"
)

const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Port          int
	LogLevel      string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration
	SearchTimeout time.Duration
	StoreBackend  string
	DatabaseURL   string
	SupabaseURL   string
	SupabaseKey   string
	SQLitePath    string
	NatsURL       string
	NatsToken     string
	APIToken      string
	CORSOrigins   []string
	// Settings are applied to turns that carry no settings of their own.
	Settings prompt.Settings
}

// fileConfig is the optional YAML overlay named by STUDYPLAN_CONFIG.
type fileConfig struct {
	Model    string          `yaml:"model"`
	Backend  string          `yaml:"store_backend"`
	Settings prompt.Settings `yaml:"settings"`
}

// Load reads .env (if present), the optional YAML overlay, then the
// environment. Environment variables win over the overlay.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		GeminiModel:  gemini.DefaultModel,
		StoreBackend: BackendSupabase,
	}

	if path := os.Getenv("STUDYPLAN_CONFIG"); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if fc.Model != "" {
			cfg.GeminiModel = fc.Model
		}
		if fc.Backend != "" {
			cfg.StoreBackend = fc.Backend
		}
		cfg.Settings = fc.Settings
	}

	cfg.Port = envInt("PORT", 8750)
	cfg.LogLevel = envStr("LOG_LEVEL", "info")
	cfg.GeminiAPIKey = envStr("GEMINI_API_KEY", "")
	cfg.GeminiModel = envStr("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeminiTimeout = envDuration("GEMINI_TIMEOUT", 60*time.Second)
	cfg.SearchTimeout = envDuration("SEARCH_TIMEOUT", 10*time.Second)
	cfg.StoreBackend = strings.ToLower(envStr("STORE_BACKEND", cfg.StoreBackend))
	cfg.DatabaseURL = envStr("DATABASE_URL", "")
	cfg.SupabaseURL = envStr("SUPABASE_URL", "")
	cfg.SupabaseKey = envStr("SUPABASE_KEY", "")
	cfg.SQLitePath = envStr("SQLITE_PATH", "studyplan.db")
	cfg.NatsURL = envStr("NATS_URL", "")
	cfg.NatsToken = envStr("NATS_TOKEN", "")
	cfg.APIToken = envStr("API_TOKEN", "")
	cfg.CORSOrigins = envList("CORS_ORIGINS", []string{"*"})

	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// Validate reports settings the process cannot start without. Missing
// persistence credentials are not fatal: the caller falls back to memory.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.GeminiAPIKey, validation.Required.Error("GEMINI_API_KEY is required")),
		validation.Field(&c.GeminiModel, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.StoreBackend, validation.In(BackendPostgres, BackendSupabase, BackendSQLite, BackendMemory)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.GeminiTimeout, validation.Min(time.Second)),
	)
}

// HasStoreCredentials reports whether the selected backend is configured.
func (c Config) HasStoreCredentials() bool {
	switch c.StoreBackend {
	case BackendPostgres:
		return c.DatabaseURL != ""
	case BackendSupabase:
		return c.SupabaseURL != "" && c.SupabaseKey != ""
	case BackendSQLite:
		return c.SQLitePath != ""
	default:
		return true
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
