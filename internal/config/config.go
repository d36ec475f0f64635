// Package config loads the results fetcher configuration with viper from
// defaults, an optional config file and RESULTS_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/Sternrassler/portal-results/pkg/dispatch"
	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/Sternrassler/portal-results/pkg/logging"
	"github.com/Sternrassler/portal-results/pkg/ocr"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RESULTS_DISPATCH_WORKERS.
const EnvPrefix = "RESULTS"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Range    RangeConfig    `mapstructure:"range"`
	Portal   PortalConfig   `mapstructure:"portal"`
	OCR      OCRConfig      `mapstructure:"ocr"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// RedisConfig configures the result cache backend. An empty Addr disables
// the cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig configures result caching.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// FetchConfig configures the per-identifier retry loop.
type FetchConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// DispatchConfig configures the worker pool.
type DispatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// RangeConfig limits range lookups. MaxSize 0 means unlimited.
type RangeConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

// PortalConfig configures portal HTTP sessions.
type PortalConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	InsecureTLS bool          `mapstructure:"insecure_tls"`
}

// OCRConfig configures the captcha recognition service.
type OCRConfig struct {
	URL          string        `mapstructure:"url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LoadAttempts int           `mapstructure:"load_attempts"`
	LoadDelay    time.Duration `mapstructure:"load_delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	engine := ocr.DefaultEngineConfig()
	return &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Log:      LogConfig{Level: "info"},
		Redis:    RedisConfig{},
		Cache:    CacheConfig{TTL: 24 * time.Hour},
		Fetch:    FetchConfig{MaxAttempts: fetch.DefaultMaxAttempts},
		Dispatch: DispatchConfig{Workers: dispatch.DefaultWorkers},
		Range:    RangeConfig{MaxSize: 1000},
		Portal: PortalConfig{
			UserAgent: portal.DefaultConfig().UserAgent,
			Timeout:   portal.DefaultConfig().Timeout,
		},
		OCR: OCRConfig{
			URL:          "http://localhost:9000",
			Timeout:      30 * time.Second,
			LoadAttempts: engine.LoadAttempts,
			LoadDelay:    engine.LoadDelay,
		},
	}
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("fetch.max_attempts", d.Fetch.MaxAttempts)
	v.SetDefault("fetch.retry_delay", d.Fetch.RetryDelay)
	v.SetDefault("fetch.attempt_timeout", d.Fetch.AttemptTimeout)

	v.SetDefault("dispatch.workers", d.Dispatch.Workers)

	v.SetDefault("range.max_size", d.Range.MaxSize)

	v.SetDefault("portal.user_agent", d.Portal.UserAgent)
	v.SetDefault("portal.timeout", d.Portal.Timeout)
	v.SetDefault("portal.insecure_tls", d.Portal.InsecureTLS)

	v.SetDefault("ocr.url", d.OCR.URL)
	v.SetDefault("ocr.timeout", d.OCR.Timeout)
	v.SetDefault("ocr.load_attempts", d.OCR.LoadAttempts)
	v.SetDefault("ocr.load_delay", d.OCR.LoadDelay)
}

// NewViper returns a viper instance with defaults and RESULTS_* environment
// overrides. When cfgFile is set it is read as the config file.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// RESULTS_FETCH_MAX_ATTEMPTS for fetch.max_attempts
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config struct and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// LoggingConfig returns the zerolog setup for service.
func (c *Config) LoggingConfig(service string) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.Service = service
	return cfg
}

// FetchConfig returns the retry loop configuration.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		MaxAttempts:    c.Fetch.MaxAttempts,
		RetryDelay:     c.Fetch.RetryDelay,
		AttemptTimeout: c.Fetch.AttemptTimeout,
	}
}

// DispatchConfig returns the worker pool configuration.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{Workers: c.Dispatch.Workers}
}

// PortalConfig returns the HTTP session configuration.
func (c *Config) PortalConfig() portal.Config {
	cfg := portal.DefaultConfig()
	cfg.UserAgent = c.Portal.UserAgent
	cfg.Timeout = c.Portal.Timeout
	cfg.InsecureTLS = c.Portal.InsecureTLS
	return cfg
}

// EngineConfig returns the recognizer load policy.
func (c *Config) EngineConfig() ocr.EngineConfig {
	return ocr.EngineConfig{LoadAttempts: c.OCR.LoadAttempts, LoadDelay: c.OCR.LoadDelay}
}

// RemoteOCRConfig returns the OCR service client configuration.
func (c *Config) RemoteOCRConfig() ocr.RemoteConfig {
	return ocr.RemoteConfig{BaseURL: c.OCR.URL, Timeout: c.OCR.Timeout}
}
