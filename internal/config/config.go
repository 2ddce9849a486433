package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Security    SecurityConfig    `mapstructure:"security"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	Features    FeaturesConfig    `mapstructure:"features"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds server-related configuration. TLS is served when both
// CertFile and KeyFile are set.
type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Host     string `mapstructure:"host"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// TLSEnabled reports whether a certificate pair was configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SecurityConfig struct {
	// Max request body size in bytes.
	MaxRequestBodySize int64 `mapstructure:"max_request_body_size"`
	// Allowed CORS origins, comma-separated.
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// Origins splits AllowedOrigins into a list.
func (s SecurityConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Rate    int  `mapstructure:"rate"`
	Window  int  `mapstructure:"window"` // in seconds
}

// RedisConfig selects the cache backend. An empty Addr means in-memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Environment string `mapstructure:"environment"`
}

// AttributionConfig controls the referral links handed to influencers.
type AttributionConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	DefaultCampaign string `mapstructure:"default_campaign"`
	Medium          string `mapstructure:"medium"`
}

type AnalyticsConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MaxRangeDays int           `mapstructure:"max_range_days"`
}

type FeaturesConfig struct {
	AnalyticsCache bool `mapstructure:"analytics_cache"`
	EventHooks     bool `mapstructure:"event_hooks"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "")
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")

	v.SetDefault("database.path", "./attribution.db")

	v.SetDefault("security.max_request_body_size", int64(10<<20))
	v.SetDefault("security.allowed_origins", "*")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rate", 100)
	v.SetDefault("rate_limit.window", 60)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "attribution:")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("attribution.base_url", "https://guidexperts.in/counsellor-registration")
	v.SetDefault("attribution.default_campaign", "guide_xperts")
	v.SetDefault("attribution.medium", "referral")

	v.SetDefault("analytics.cache_ttl", 60*time.Second)
	v.SetDefault("analytics.max_range_days", 366)

	v.SetDefault("features.analytics_cache", true)
	v.SetDefault("features.event_hooks", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads defaults, then the optional JSON file, then environment
// variables. Env names are the upper-cased key with dots replaced by
// underscores, e.g. SERVER_PORT or ANALYTICS_CACHE_TTL.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	if c.Security.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max request body size must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	u, err := url.Parse(c.Attribution.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("attribution base url %q is not an absolute url", c.Attribution.BaseURL)
	}
	if c.Analytics.MaxRangeDays <= 0 {
		return fmt.Errorf("analytics max range days must be positive")
	}
	if c.Analytics.CacheTTL < 0 {
		return fmt.Errorf("analytics cache ttl must not be negative")
	}
	return nil
}
