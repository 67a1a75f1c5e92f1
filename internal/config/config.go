package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Dialog  DialogConfig  `yaml:"dialog" mapstructure:"dialog"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures run-history persistence. Driver is sqlite,
// postgres, or none (no persistence).
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BrowserConfig configures the Chrome session pool.
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" mapstructure:"headless"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	WindowWidth  int    `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight int    `yaml:"window_height" mapstructure:"window_height"`
	Locale       string `yaml:"locale" mapstructure:"locale"`
}

// SearchConfig configures the per-query search workflow.
type SearchConfig struct {
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	YearSpan            int    `yaml:"year_span" mapstructure:"year_span"`
	NavigateTimeoutSecs int    `yaml:"navigate_timeout_secs" mapstructure:"navigate_timeout_secs"`
	ElementTimeoutSecs  int    `yaml:"element_timeout_secs" mapstructure:"element_timeout_secs"`
	ResultsTimeoutSecs  int    `yaml:"results_timeout_secs" mapstructure:"results_timeout_secs"`
	Retries             int    `yaml:"retries" mapstructure:"retries"`
	BackoffMS           int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	MaxBackoffMS        int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	StrictFirstName     bool   `yaml:"strict_first_name" mapstructure:"strict_first_name"`
}

// DialogConfig configures interstitial dialog dismissal.
type DialogConfig struct {
	ProbeIntervalMS int `yaml:"probe_interval_ms" mapstructure:"probe_interval_ms"`
	DeadlineSecs    int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	MaxRounds       int `yaml:"max_rounds" mapstructure:"max_rounds"`
}

// BatchConfig configures chunked batch processing.
type BatchConfig struct {
	ChunkMin        int     `yaml:"chunk_min" mapstructure:"chunk_min"`
	ChunkMax        int     `yaml:"chunk_max" mapstructure:"chunk_max"`
	MemoryThreshold float64 `yaml:"memory_threshold" mapstructure:"memory_threshold"`
	PauseSecs       int     `yaml:"pause_secs" mapstructure:"pause_secs"`
	MaxConcurrent   int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	SearchDelayMS   int     `yaml:"search_delay_ms" mapstructure:"search_delay_ms"`
	ChunkRestarts   int     `yaml:"chunk_restarts" mapstructure:"chunk_restarts"`
	DirectLimit     int     `yaml:"direct_limit" mapstructure:"direct_limit"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from path (./config.yaml when empty) and the
// environment. A missing default file is fine; a missing explicit one is
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("READYSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "readysearch.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.pool_size", 3)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 960)
	v.SetDefault("browser.locale", "en-AU")
	v.SetDefault("search.base_url", "https://readysearch.com.au/products?person")
	v.SetDefault("search.year_span", 2)
	v.SetDefault("search.navigate_timeout_secs", 30)
	v.SetDefault("search.element_timeout_secs", 10)
	v.SetDefault("search.results_timeout_secs", 30)
	v.SetDefault("search.retries", 3)
	v.SetDefault("search.backoff_ms", 2000)
	v.SetDefault("search.max_backoff_ms", 30000)
	v.SetDefault("dialog.probe_interval_ms", 250)
	v.SetDefault("dialog.deadline_secs", 5)
	v.SetDefault("dialog.max_rounds", 3)
	v.SetDefault("batch.chunk_min", 5)
	v.SetDefault("batch.chunk_max", 15)
	v.SetDefault("batch.memory_threshold", 0.8)
	v.SetDefault("batch.pause_secs", 2)
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("batch.search_delay_ms", 2500)
	v.SetDefault("batch.chunk_restarts", 3)
	v.SetDefault("batch.direct_limit", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// The default config file is optional; an explicit one is not.
	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given mode: "run" (search and
// batch commands), "serve" (REST API), or "runs" (stored-run inspection).
// All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "none":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, or none")
	}

	switch mode {
	case "run", "serve":
		if c.Browser.PoolSize < 1 || c.Browser.PoolSize > 16 {
			problems = append(problems, "browser.pool_size must be between 1 and 16")
		}
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			problems = append(problems, "batch.max_concurrent must be between 1 and 50")
		}
		if c.Batch.ChunkMin < 1 {
			problems = append(problems, "batch.chunk_min must be >= 1")
		}
		if c.Batch.ChunkMax < c.Batch.ChunkMin {
			problems = append(problems, "batch.chunk_max must be >= batch.chunk_min")
		}
		if c.Batch.MemoryThreshold <= 0 || c.Batch.MemoryThreshold > 1 {
			problems = append(problems, "batch.memory_threshold must be in (0, 1]")
		}
		if c.Search.BaseURL == "" {
			problems = append(problems, "search.base_url is required")
		}
		if c.Search.Retries < 1 || c.Search.Retries > 10 {
			problems = append(problems, "search.retries must be between 1 and 10")
		}
		if c.Search.YearSpan < 0 || c.Search.YearSpan > 10 {
			problems = append(problems, "search.year_span must be between 0 and 10")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
		if c.Store.Driver == "none" {
			problems = append(problems, "runs require a configured store (store.driver != none)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
