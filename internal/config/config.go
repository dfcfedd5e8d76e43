// Package config loads the viewer's process-wide configuration: candidate
// scorelog sources, the cumulative-eligible tag set, the government code
// table and display capabilities. Values come from built-in defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when SCORELOG_CONFIG is unset. A missing file at
// the default path is not an error.
const DefaultPath = "scorelog.yaml"

// Source backends.
const (
	BackendDir     = "dir"
	BackendHTTP    = "http"
	BackendArchive = "archive"
)

// GovCode is one row of the government legend.
type GovCode struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

// Capabilities selects which parts of the display a viewer offers.
// The full viewer enables all three; the plain viewer disables them.
type Capabilities struct {
	Stacked    bool `yaml:"stacked" json:"stacked"`         // stacking toggle honored
	ShowStats  bool `yaml:"show_stats" json:"show_stats"`   // per-player stats table
	ShowLegend bool `yaml:"show_legend" json:"show_legend"` // government legend
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int      `yaml:"port"`
	CORSOrigins      []string `yaml:"cors_origins"`
	ChartRatePerHour int      `yaml:"chart_rate_per_hour"`
}

// SourceConfig says where scorelogs come from and which ones are offered.
type SourceConfig struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	BaseURL string        `yaml:"base_url"`
	Files   []string      `yaml:"files"`
	Timeout time.Duration `yaml:"timeout"`
}

// DisplayConfig holds chart display settings.
type DisplayConfig struct {
	Capabilities   `yaml:",inline"`
	StackedDefault bool `yaml:"stacked_default"`
}

// DatabaseConfig points at the scorelog archive. Empty DSN disables it.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the raw payload cache. Empty URL disables it.
type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// Config is the complete viewer configuration. It is built once at
// startup and passed by value; nothing mutates it afterwards.
type Config struct {
	Server          ServerConfig   `yaml:"server"`
	Sources         SourceConfig   `yaml:"sources"`
	Display         DisplayConfig  `yaml:"display"`
	CumulativeTags  []string       `yaml:"cumulative_tags"`
	GovernmentCodes []GovCode      `yaml:"government_codes"`
	Database        DatabaseConfig `yaml:"database"`
	Redis           RedisConfig    `yaml:"redis"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             8080,
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
			ChartRatePerHour: 600,
		},
		Sources: SourceConfig{
			Backend: BackendDir,
			Dir:     ".",
			Files: []string{
				"json/Suomipeli2025_freeciv21-score.json",
				"json/demo1.json",
				"json/demo2.json",
			},
			Timeout: 15 * time.Second,
		},
		Display: DisplayConfig{
			Capabilities: Capabilities{Stacked: true, ShowStats: true, ShowLegend: true},
		},
		CumulativeTags:  []string{"pollution", "production", "gold", "mfg"},
		GovernmentCodes: DefaultGovernmentCodes(),
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
	}
}

// DefaultGovernmentCodes returns the Freeciv classic-ruleset government
// codes, numeric codes first and the pre-government default last.
func DefaultGovernmentCodes() []GovCode {
	names := []string{
		"Anarchy", "Despotism", "Republic", "Democracy", "Monarchy",
		"Communism", "Fundamentalism", "Fascism", "Federation", "Corporate",
		"Cybernetic", "Ecotopia", "Theocracy", "Oligarchy", "Plutocracy",
		"Technocracy", "Matriarchy", "Patriarchy", "Utopia", "Tribal",
	}
	codes := make([]GovCode, 0, len(names)+1)
	for i, n := range names {
		codes = append(codes, GovCode{Code: strconv.Itoa(i), Name: n})
	}
	return append(codes, GovCode{Code: "default", Name: "Tribal (default)"})
}

// Load builds the configuration from defaults, the YAML file at path (or
// SCORELOG_CONFIG, or DefaultPath) and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("SCORELOG_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later and obscurely.
func (c Config) Validate() error {
	switch c.Sources.Backend {
	case BackendDir, BackendHTTP:
	case BackendArchive:
		if c.Database.DSN == "" {
			return fmt.Errorf("sources.backend %q requires database.dsn", BackendArchive)
		}
	default:
		return fmt.Errorf("unknown sources.backend %q", c.Sources.Backend)
	}
	if c.Sources.Backend == BackendHTTP && c.Sources.BaseURL == "" {
		return fmt.Errorf("sources.backend %q requires sources.base_url", BackendHTTP)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if files := getEnv("SCORELOG_FILES", ""); files != "" {
		cfg.Sources.Files = splitList(files)
	}
	if v := getEnv("SCORELOG_BACKEND", ""); v != "" {
		cfg.Sources.Backend = v
	}
	if v := getEnv("SCORELOG_DIR", ""); v != "" {
		cfg.Sources.Dir = v
	}
	if v := getEnv("SCORELOG_BASE_URL", ""); v != "" {
		cfg.Sources.BaseURL = v
	}
	if v := getEnv("SCORELOG_CUMULATIVE_TAGS", ""); v != "" {
		cfg.CumulativeTags = splitList(v)
	}
	cfg.Display.StackedDefault = getEnvBool("SCORELOG_STACKED", cfg.Display.StackedDefault)

	switch getEnv("SCORELOG_VARIANT", "") {
	case "plain":
		cfg.Display.Capabilities = Capabilities{}
	case "full":
		cfg.Display.Capabilities = Capabilities{Stacked: true, ShowStats: true, ShowLegend: true}
	}

	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.ChartRatePerHour = getEnvInt("CHART_RATE_PER_HOUR", cfg.Server.ChartRatePerHour)
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, splitList(v)...)
	}

	cfg.Database.DSN = getEnv("DATABASE_URL", cfg.Database.DSN)
	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	if v := getEnv("CACHE_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.TTL = d
		}
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
