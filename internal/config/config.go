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
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig holds default density analysis parameters. Distances are
// in miles and converted to metres at the command layer.
type AnalysisConfig struct {
	RadiusMiles  float64 `yaml:"radius_miles" mapstructure:"radius_miles"`
	SpacingMiles float64 `yaml:"spacing_miles" mapstructure:"spacing_miles"`
	TopK         int     `yaml:"top_k" mapstructure:"top_k"`
	Surface      string  `yaml:"surface" mapstructure:"surface"`
	Workers      int     `yaml:"workers" mapstructure:"workers"`
}

// SourceConfig locates the road dataset.
type SourceConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Table       string `yaml:"table" mapstructure:"table"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the explorer HTTP server.
type ServerConfig struct {
	Port       int     `yaml:"port" mapstructure:"port"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig sizes the in-memory dataset cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DENSITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.radius_miles", 10.0)
	v.SetDefault("analysis.spacing_miles", 25.0)
	v.SetDefault("analysis.top_k", 5)
	v.SetDefault("analysis.surface", "asphalt")
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("source.path", "enriched_roads.geojson")
	v.SetDefault("source.table", "roads")
	v.SetDefault("source.database_url", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "density.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_sec", 2.0)
	v.SetDefault("server.burst", 4)
	v.SetDefault("cache.max_entries", 8)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
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

// Validate checks the settings a command mode depends on. Known modes are
// analyze, explore and postgis.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(msg string) { problems = append(problems, msg) }

	switch mode {
	case "analyze":
		c.validateAnalysis(add)
	case "explore":
		c.validateAnalysis(add)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if c.Server.RatePerSec <= 0 {
			add("server.rate_per_sec must be > 0")
		}
		if c.Server.Burst < 1 {
			add("server.burst must be >= 1")
		}
		if c.Cache.MaxEntries < 1 {
			add("cache.max_entries must be >= 1")
		}
	case "postgis":
		if c.Source.DatabaseURL == "" && c.Store.DatabaseURL == "" {
			add("source.database_url or store.database_url is required")
		}
		if c.Source.Table == "" {
			add("source.table is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis(add func(string)) {
	if c.Analysis.RadiusMiles <= 0 {
		add("analysis.radius_miles must be > 0")
	}
	if c.Analysis.SpacingMiles <= 0 {
		add("analysis.spacing_miles must be > 0")
	}
	if c.Analysis.TopK < 1 {
		add("analysis.top_k must be >= 1")
	}
	if c.Analysis.Workers < 0 {
		add("analysis.workers must be >= 0")
	}
}

// PostGISURL returns the database holding road tables, falling back to the
// store database when no dedicated URL is set.
func (c *Config) PostGISURL() string {
	if c.Source.DatabaseURL != "" {
		return c.Source.DatabaseURL
	}
	return c.Store.DatabaseURL
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
