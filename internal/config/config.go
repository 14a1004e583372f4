package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oakline/compass/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Market     MarketConfig     `mapstructure:"market"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Alpaca     AlpacaConfig     `mapstructure:"alpaca"`
	Guardrails GuardrailsConfig `mapstructure:"guardrails"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MarketConfig describes the target exchange session used by the local
// market-status fallback when the authoritative clock is unavailable.
type MarketConfig struct {
	Timezone string `mapstructure:"timezone"`
	// FallbackUTCOffsetHours is used when timezone data cannot be loaded.
	FallbackUTCOffsetHours int           `mapstructure:"fallback_utc_offset_hours"`
	OpenHour               int           `mapstructure:"open_hour"`
	OpenMinute             int           `mapstructure:"open_minute"`
	CloseHour              int           `mapstructure:"close_hour"`
	CloseMinute            int           `mapstructure:"close_minute"`
	StatusStaleness        time.Duration `mapstructure:"status_staleness"`
}

// CacheConfig locates the read-only historical candle cache and the optional
// cold-storage source it can be hydrated from at startup.
type CacheConfig struct {
	Dir     string        `mapstructure:"dir"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// AlpacaConfig holds brokerage API credentials. When both keys are present
// the authoritative market clock and the live adapter are enabled.
type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

// HasCredentials reports whether live-clock/adapter credentials exist.
func (a AlpacaConfig) HasCredentials() bool {
	return a.APIKey != "" && a.SecretKey != ""
}

type GuardrailsConfig struct {
	MinimumReserveRatio float64 `mapstructure:"minimum_reserve_ratio"`
}

type MemoryConfig struct {
	Path string `mapstructure:"path"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvCredentials(&cfg)

	return &cfg, nil
}

// applyEnvCredentials picks up brokerage credentials from the conventional
// environment variables when the config file leaves them empty.
func applyEnvCredentials(cfg *Config) {
	if cfg.Alpaca.APIKey == "" {
		cfg.Alpaca.APIKey = os.Getenv("APCA_API_KEY_ID")
	}
	if cfg.Alpaca.SecretKey == "" {
		cfg.Alpaca.SecretKey = os.Getenv("APCA_API_SECRET_KEY")
	}
	if cfg.Alpaca.BaseURL == "" {
		cfg.Alpaca.BaseURL = os.Getenv("APCA_API_BASE_URL")
	}
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Market: MarketConfig{
			Timezone:               "America/New_York",
			FallbackUTCOffsetHours: -5,
			OpenHour:               9,
			OpenMinute:             30,
			CloseHour:              16,
			CloseMinute:            0,
			StatusStaleness:        60 * time.Second,
		},
		Cache: CacheConfig{
			Dir: "historical_cache",
			Archive: ArchiveConfig{
				Enabled: false,
				Type:    "localfs",
			},
		},
		Guardrails: GuardrailsConfig{
			MinimumReserveRatio: 0.25,
		},
		Memory: MemoryConfig{
			Path: "agent_memory.json",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     1,
			Burst:   5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
	applyEnvCredentials(cfg)
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Market.StatusStaleness <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("status_staleness must be positive, got %s", c.Market.StatusStaleness))
	}
	if c.Market.OpenHour < 0 || c.Market.OpenHour > 23 || c.Market.CloseHour < 0 || c.Market.CloseHour > 23 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("market hours out of range: open=%d close=%d", c.Market.OpenHour, c.Market.CloseHour))
	}

	if c.Cache.Dir == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("cache dir is required"))
	}
	if c.Cache.Archive.Enabled {
		switch c.Cache.Archive.Type {
		case "localfs":
			if c.Cache.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required for localfs archive"))
			}
		case "s3":
			if c.Cache.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("s3 bucket required for s3 archive"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Cache.Archive.Type))
		}
	}

	if c.Guardrails.MinimumReserveRatio < 0 || c.Guardrails.MinimumReserveRatio > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("minimum_reserve_ratio must be between 0 and 1, got %f", c.Guardrails.MinimumReserveRatio))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("rate_limit rps must be positive, got %f", c.RateLimit.RPS))
		}
		if c.RateLimit.Burst < 1 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("rate_limit burst must be at least 1, got %d", c.RateLimit.Burst))
		}
	}

	return nil
}
