// Package config loads application configuration from config.yaml and the
// CRIME_ environment, and owns global logger setup.
package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Projection ProjectionConfig `yaml:"projection" mapstructure:"projection"`
	Dashboards DashboardsConfig `yaml:"dashboards" mapstructure:"dashboards"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig names the reference files loaded at startup. All three are
// required; a missing or unreadable file is startup-fatal.
type DataConfig struct {
	Incidents  string `yaml:"incidents" mapstructure:"incidents"`
	Population string `yaml:"population" mapstructure:"population"`
	Boundaries string `yaml:"boundaries" mapstructure:"boundaries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ProjectionConfig tunes the incomplete-year completion and the trend chart.
type ProjectionConfig struct {
	LookbackYears int `yaml:"lookback_years" mapstructure:"lookback_years"`
	TrendHorizon  int `yaml:"trend_horizon" mapstructure:"trend_horizon"`
}

// DashboardsConfig configures custom dataset storage.
type DashboardsConfig struct {
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`
	RegistryPath string `yaml:"registry_path" mapstructure:"registry_path"`
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
	v.SetEnvPrefix("CRIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.incidents", "data/crimes.csv")
	v.SetDefault("data.population", "data/populacao_ce.csv")
	v.SetDefault("data.boundaries", "data/municipios_ce.geojson")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("projection.lookback_years", 5)
	v.SetDefault("projection.trend_horizon", 3)
	v.SetDefault("dashboards.data_dir", "data/dashboards")
	v.SetDefault("dashboards.registry_path", "data/dashboards/registry.db")
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

// Validate checks that the reference files exist before the server starts
// serving traffic.
func (c *Config) Validate() error {
	for _, p := range []struct{ name, path string }{
		{"data.incidents", c.Data.Incidents},
		{"data.population", c.Data.Population},
		{"data.boundaries", c.Data.Boundaries},
	} {
		if p.path == "" {
			return eris.Errorf("config: %s is required", p.name)
		}
		if _, err := os.Stat(p.path); err != nil {
			return eris.Wrapf(err, "config: %s (%s)", p.name, p.path)
		}
	}
	if c.Projection.LookbackYears <= 0 {
		return eris.New("config: projection.lookback_years must be positive")
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
