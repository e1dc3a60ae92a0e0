// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads accountd configuration from defaults, an optional
// YAML file, the environment and command-line flags, in that order.
package config

import (
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/logging"
)

// Cache backends.
const (
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Environments. Development adds internal error detail to API responses.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config is the effective accountd configuration.
type Config struct {
	Host        string `koanf:"host" yaml:"host" env:"APP_HOSTNAME"`
	Port        int    `koanf:"port" yaml:"port" env:"APP_PORT"`
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr" env:"ACCOUNTD_METRICS_ADDR"`

	DatabaseURL  string `koanf:"database_url" yaml:"database_url" env:"DATABASE_URL"`
	RedisURL     string `koanf:"redis_url" yaml:"redis_url" env:"REDIS_URL"`
	CacheBackend string `koanf:"cache_backend" yaml:"cache_backend" env:"ACCOUNTD_CACHE_BACKEND"`

	JWTSecret      string        `koanf:"jwt_secret" yaml:"jwt_secret" env:"JWT_SECRET_KEY"`
	JWTExpiry      time.Duration `koanf:"jwt_expiry" yaml:"jwt_expiry" env:"JWT_EXPIRED"`
	JWTIssuer      string        `koanf:"jwt_issuer" yaml:"jwt_issuer" env:"ACCOUNTD_JWT_ISSUER"`
	SessionTTL     time.Duration `koanf:"session_ttl" yaml:"session_ttl" env:"ACCOUNTD_SESSION_TTL"`
	StrictSessions bool          `koanf:"strict_sessions" yaml:"strict_sessions" env:"ACCOUNTD_STRICT_SESSIONS"`

	RequestTimeout  time.Duration `koanf:"request_timeout" yaml:"request_timeout" env:"ACCOUNTD_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" env:"ACCOUNTD_SHUTDOWN_TIMEOUT"`
	ConnectAttempts uint64        `koanf:"connect_attempts" yaml:"connect_attempts" env:"ACCOUNTD_CONNECT_ATTEMPTS"`

	Environment string `koanf:"environment" yaml:"environment" env:"ACCOUNTD_ENV"`
	LogFormat   string `koanf:"log_format" yaml:"log_format" env:"ACCOUNTD_LOG_FORMAT"`
	LogLevel    string `koanf:"log_level" yaml:"log_level" env:"ACCOUNTD_LOG_LEVEL"`

	Argon2 Argon2 `koanf:"argon2" yaml:"argon2" envPrefix:"ACCOUNTD_ARGON2_"`
}

// Argon2 holds the password hashing cost parameters.
type Argon2 struct {
	Time      uint32 `koanf:"time" yaml:"time" env:"TIME"`
	MemoryKiB uint32 `koanf:"memory_kib" yaml:"memory_kib" env:"MEMORY_KIB"`
	Threads   uint8  `koanf:"threads" yaml:"threads" env:"THREADS"`
}

// Default returns the built-in configuration. JWTSecret and DatabaseURL
// have no default and must be supplied.
func Default() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            3000,
		MetricsAddr:     "127.0.0.1:9100",
		RedisURL:        "redis://localhost:6379/0",
		CacheBackend:    CacheRedis,
		JWTExpiry:       24 * time.Hour,
		JWTIssuer:       "accountd",
		SessionTTL:      time.Hour,
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		ConnectAttempts: 5,
		Environment:     EnvProduction,
		LogFormat:       "json",
		LogLevel:        "info",
		Argon2:          Argon2{Time: 1, MemoryKiB: 64 * 1024, Threads: 4},
	}
}

// ListenAddr is the API listen address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Development reports whether development mode is on.
func (c Config) Development() bool {
	return c.Environment == EnvDevelopment
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an optional YAML file.
	File string
	// Flags contributes only flags the user explicitly set. Flag names use
	// dashes for the key's underscores, e.g. --jwt-expiry.
	Flags *pflag.FlagSet
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load builds the configuration and validates it.
func Load(opts LoadOptions) (Config, error) {
	cfg, err := load(opts)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnvalidated builds the configuration without validating it. Used by
// commands that only display configuration.
func LoadUnvalidated(opts LoadOptions) (Config, error) {
	return load(opts)
}

func load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_INVALID").With("file", opts.File).Wrap(err)
		}
		if err := unmarshal(k, &cfg); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_INVALID").With("file", opts.File).Wrap(err)
		}
	}

	envOpts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (any, error) { return ParseDuration(v) },
		},
	}
	if opts.Environ != nil {
		envOpts.Environment = opts.Environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return Config{}, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if opts.Flags != nil {
		k := koanf.New(".")
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
		if err := unmarshal(k, &cfg); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	return cfg, nil
}

// unmarshal decodes k into cfg, reading duration strings with ParseDuration.
func unmarshal(k *koanf.Koanf, cfg *Config) error {
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       durationHook,
			Result:           cfg,
			WeaklyTypedInput: true,
		},
	})
}

func durationHook(from, to reflect.Type, data any) (any, error) {
	v, ok := data.(string)
	if !ok || from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	return ParseDuration(v)
}

// ParseDuration accepts Go durations plus a whole-day suffix, so "1d" and
// "36h" are both valid.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, oops.With("value", v).Wrapf(err, "invalid day duration")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, oops.With("value", v).Wrap(err)
	}
	return d, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	invalid := func(key string, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	switch {
	case c.JWTSecret == "":
		return invalid("jwt_secret", "jwt_secret (JWT_SECRET_KEY) is required")
	case c.DatabaseURL == "":
		return invalid("database_url", "database_url (DATABASE_URL) is required")
	case c.Port < 1 || c.Port > 65535:
		return invalid("port", "port must be between 1 and 65535, got %d", c.Port)
	case c.JWTExpiry <= 0:
		return invalid("jwt_expiry", "jwt_expiry must be positive")
	case c.SessionTTL <= 0:
		return invalid("session_ttl", "session_ttl must be positive")
	case c.RequestTimeout < 0:
		return invalid("request_timeout", "request_timeout cannot be negative")
	case c.ShutdownTimeout <= 0:
		return invalid("shutdown_timeout", "shutdown_timeout must be positive")
	case c.Environment != EnvProduction && c.Environment != EnvDevelopment:
		return invalid("environment", "environment must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.Environment)
	case c.LogFormat != "json" && c.LogFormat != "text":
		return invalid("log_format", "log_format must be json or text, got %q", c.LogFormat)
	case c.Argon2.Time > auth.MaxArgon2Time:
		return invalid("argon2.time", "argon2.time must be at most %d", auth.MaxArgon2Time)
	case c.Argon2.MemoryKiB > auth.MaxArgon2Memory:
		return invalid("argon2.memory_kib", "argon2.memory_kib must be at most %d", auth.MaxArgon2Memory)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", "log_level: %v", err)
	}
	if _, err := url.Parse(c.DatabaseURL); err != nil {
		return invalid("database_url", "database_url: %v", err)
	}

	switch c.CacheBackend {
	case CacheRedis:
		if c.RedisURL == "" {
			return invalid("redis_url", "redis_url (REDIS_URL) is required for the redis cache backend")
		}
	case CachePostgres:
	default:
		return invalid("cache_backend", "cache_backend must be %q or %q, got %q", CacheRedis, CachePostgres, c.CacheBackend)
	}
	return nil
}

// Redacted returns a copy safe to print: the signing secret is masked and
// URL passwords are hidden.
func (c Config) Redacted() Config {
	if c.JWTSecret != "" {
		c.JWTSecret = logging.Redacted
	}
	c.DatabaseURL = redactURL(c.DatabaseURL)
	c.RedisURL = redactURL(c.RedisURL)
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
