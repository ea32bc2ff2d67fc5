package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"adpulse/internal/core"
)

// Config holds all application configuration
type Config struct {
	App      App                       `mapstructure:"app"`
	AI       AI                        `mapstructure:"ai"`
	Analysis Analysis                  `mapstructure:"analysis"`
	Cache    Cache                     `mapstructure:"cache"`
	Server   Server                    `mapstructure:"server"`
	Sheets   Sheets                    `mapstructure:"sheets"`
	// Benchmarks maps a vehicle name to its target metrics.
	Benchmarks map[string]core.Benchmark `mapstructure:"benchmarks"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"` // Per-attempt timeout for one backend call
}

// AttemptTimeout returns the parsed per-attempt timeout.
func (g GeminiConfig) AttemptTimeout() time.Duration {
	return parseDuration(g.Timeout, 30*time.Second)
}

// Analysis holds the generation-pipeline configuration.
type Analysis struct {
	// Backends is the ordered list of model identifiers the fallback
	// orchestrator tries. Order encodes preference.
	Backends []string `mapstructure:"backends"`
	// Backoff is the fixed wait between retryable failures.
	Backoff string `mapstructure:"backoff"`
	// PeriodDays is the length of the current reporting period and of the
	// comparison period immediately preceding it.
	PeriodDays int `mapstructure:"period_days"`
	// HistoryWindowDays is how many trailing days history scans cover.
	HistoryWindowDays int `mapstructure:"history_window_days"`
}

// BackoffDuration returns the parsed retry backoff.
func (a Analysis) BackoffDuration() time.Duration {
	return parseDuration(a.Backoff, 2*time.Second)
}

// Cache holds cache configuration
type Cache struct {
	Directory string `mapstructure:"directory"`
	// TTL is the retention window for persisted analyses. Deployments differ
	// (24h minimal, 720h extended), so it is a parameter rather than a constant.
	TTL string `mapstructure:"ttl"`
}

// TTLDuration returns the parsed analysis retention window.
func (c Cache) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 24*time.Hour)
}

// Server holds HTTP server configuration
type Server struct {
	Host         string     `mapstructure:"host"`
	Port         int        `mapstructure:"port"`
	ReadTimeout  string     `mapstructure:"read_timeout"`
	WriteTimeout string     `mapstructure:"write_timeout"`
	APIToken     string     `mapstructure:"api_token"` // Bearer token required on write endpoints
	CORS         CORSConfig `mapstructure:"cors"`
}

// ReadTimeoutDuration returns the parsed read timeout.
func (s Server) ReadTimeoutDuration() time.Duration {
	return parseDuration(s.ReadTimeout, 15*time.Second)
}

// WriteTimeoutDuration returns the parsed write timeout.
func (s Server) WriteTimeoutDuration() time.Duration {
	return parseDuration(s.WriteTimeout, 120*time.Second)
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Sheets holds the spreadsheet-source configuration
type Sheets struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	ReadRange       string `mapstructure:"read_range"`
	CredentialsFile string `mapstructure:"credentials_file"`
	APIKey          string `mapstructure:"api_key"`
}

var globalConfig *Config

// Load loads configuration from file, environment variables, and defaults.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	// Configure viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".adpulse")
		viper.SetConfigType("yaml")
	}

	// Set defaults
	setDefaults()

	// Bind environment variables
	bindEnvironmentVariables()

	// Enable automatic environment variable reading
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into struct
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the loaded configuration, loading defaults if necessary.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			// Fall back to defaults-only config so read paths keep working.
			fmt.Printf("Warning: Failed to load config: %v\n", err)
			cfg = &Config{}
			_ = viper.Unmarshal(cfg)
			globalConfig = cfg
			return cfg
		}
		return cfg
	}
	return globalConfig
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".adpulse-cache")

	// AI defaults
	viper.SetDefault("ai.gemini.timeout", "30s")

	// Analysis defaults
	viper.SetDefault("analysis.backends", []string{
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
		"gemini-2.0-flash",
	})
	viper.SetDefault("analysis.backoff", "2s")
	viper.SetDefault("analysis.period_days", 7)
	viper.SetDefault("analysis.history_window_days", 30)

	// Cache defaults
	viper.SetDefault("cache.directory", ".adpulse-cache")
	viper.SetDefault("cache.ttl", "24h")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.cors.enabled", false)

	// Sheets defaults
	viper.SetDefault("sheets.read_range", "Campaigns!A2:G")
}

func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("server.api_token", []string{
		"ADPULSE_API_TOKEN",
	})

	bindEnvKeys("sheets.spreadsheet_id", []string{
		"ADPULSE_SPREADSHEET_ID",
	})

	bindEnvKeys("sheets.api_key", []string{
		"GOOGLE_SHEETS_API_KEY",
	})
}

// bindEnvKeys binds the first set environment variable to a viper key.
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// validateConfig ensures required configuration is well-formed.
func validateConfig(config *Config) error {
	durations := map[string]string{
		"ai.gemini.timeout":    config.AI.Gemini.Timeout,
		"analysis.backoff":     config.Analysis.Backoff,
		"cache.ttl":            config.Cache.TTL,
		"server.read_timeout":  config.Server.ReadTimeout,
		"server.write_timeout": config.Server.WriteTimeout,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	if len(config.Analysis.Backends) == 0 {
		return fmt.Errorf("analysis.backends must list at least one backend model")
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
