// Package config provides configuration parsing for the predictor.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct covers:
//   - Listeners (HTTP, gRPC) and server TLS
//   - Reference snapshot storage (file, memory or redis)
//   - Remote data source kind and its SOURCE_* settings
//   - One-shot mode (-once -season -race) and its output format
//   - Logging configuration (level, format)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := cfg.Validate(); err != nil { ... }
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/HatiCode/gridcast/pkg/tls"
)

// Config holds all predictor configuration.
type Config struct {
	Listen     string
	GRPCListen string
	LogFormat  string
	LogLevel   string
	TLS        tls.Config

	Storage       string
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	Source         string
	SourceConfig   map[string]string
	SourceTLS      tls.Config
	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	Once   bool
	Season int
	Race   string
	Format string
	Output string
}

// ParseFlags parses os.Args and the environment into a Config, exiting on
// malformed flags.
func ParseFlags() *Config {
	cfg, err := Parse(flag.CommandLine, os.Args[1:], os.Environ())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// Parse reads flags from args using fs; environ supplies the fallbacks and
// the SOURCE_* map.
func Parse(fs *flag.FlagSet, args []string, environ []string) (*Config, error) {
	env := newEnv(environ)
	cfg := &Config{}

	fs.StringVar(&cfg.Listen, "listen", env.get("LISTEN", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", env.get("GRPC_LISTEN", ":9090"), "gRPC listen address (empty disables gRPC)")

	fs.StringVar(&cfg.LogFormat, "log-format", env.get("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", env.get("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", env.getBool("TLS_ENABLED", false), "Enable TLS for the HTTP and gRPC servers")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", env.get("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", env.get("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", env.get("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	fs.StringVar(&cfg.Storage, "storage", env.get("STORAGE", "file"), "Reference storage backend: file, memory or redis")
	fs.StringVar(&cfg.DataDir, "data-dir", env.get("DATA_DIR", "data"), "Directory of the file storage backend")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", env.get("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", env.get("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", env.getInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", env.getDuration("REDIS_TTL", 0), "Redis snapshot TTL (0 keeps snapshots)")

	fs.StringVar(&cfg.Source, "source", env.get("SOURCE", "ergast"), "Data source kind: ergast or http")
	fs.BoolVar(&cfg.SourceTLS.Enabled, "source-tls-enabled", env.getBool("SOURCE_TLS_ENABLED", false), "Present a client certificate to the data source")
	fs.StringVar(&cfg.SourceTLS.CertFile, "source-tls-cert-file", env.get("SOURCE_TLS_CERT_FILE", ""), "Client certificate file")
	fs.StringVar(&cfg.SourceTLS.KeyFile, "source-tls-key-file", env.get("SOURCE_TLS_KEY_FILE", ""), "Client private key file")
	fs.StringVar(&cfg.SourceTLS.CAFile, "source-tls-ca-file", env.get("SOURCE_TLS_CA_FILE", ""), "CA certificate file for server verification")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", env.getDuration("HTTP_TIMEOUT", 30*time.Second), "Timeout of one remote data request")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", env.getDuration("REQUEST_TIMEOUT", 2*time.Minute), "Timeout of one API request")

	fs.BoolVar(&cfg.Once, "once", env.getBool("ONCE", false), "Run one prediction, print it and exit")
	fs.IntVar(&cfg.Season, "season", env.getInt("SEASON", 0), "Season of the one-shot prediction")
	fs.StringVar(&cfg.Race, "race", env.get("RACE", ""), "Race of the one-shot prediction, e.g. \"Bahrain Grand Prix\"")
	fs.StringVar(&cfg.Format, "format", env.get("FORMAT", "text"), "One-shot output format: text, json or xlsx")
	fs.StringVar(&cfg.Output, "output", env.get("OUTPUT", "-"), "One-shot output file (- for stdout)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.SourceConfig = parseSourceConfig(environ)

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage {
	case "memory", "redis":
	case "file":
		if c.DataDir == "" {
			errs = append(errs, errors.New("data-dir is required with file storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage %q (must be file, memory or redis)", c.Storage))
	}

	if c.Storage == "redis" && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis-addr is required with redis storage"))
	}
	if c.RedisTTL < 0 {
		errs = append(errs, errors.New("redis-ttl cannot be negative"))
	}

	if c.Source == "" {
		errs = append(errs, errors.New("source cannot be empty"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http-timeout must be > 0"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request-timeout must be > 0"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log-level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log-format %q", c.LogFormat))
	}

	if c.Once {
		if c.Season <= 0 {
			errs = append(errs, errors.New("season is required with -once"))
		}
		if strings.TrimSpace(c.Race) == "" {
			errs = append(errs, errors.New("race is required with -once"))
		}
		switch c.Format {
		case "text", "json":
		case "xlsx":
			if c.Output == "-" || c.Output == "" {
				errs = append(errs, errors.New("xlsx output needs an -output file"))
			}
		default:
			errs = append(errs, fmt.Errorf("invalid format %q (must be text, json or xlsx)", c.Format))
		}
	}

	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server tls: %w", err))
	}
	if err := c.SourceTLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source tls: %w", err))
	}

	return errors.Join(errs...)
}

// OpenOutput returns the one-shot output writer. Closing stdout is a no-op.
func (c *Config) OpenOutput() (io.WriteCloser, error) {
	if c.Output == "" || c.Output == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(c.Output)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// sourcePrefix marks environment variables forwarded to the data source
// factory. SOURCE_SESSION_URL becomes the key "sessionUrl".
const sourcePrefix = "SOURCE_"

// sourceReserved are SOURCE_* variables consumed by flags, not the factory.
var sourceReserved = map[string]bool{
	"SOURCE_TLS_ENABLED":   true,
	"SOURCE_TLS_CERT_FILE": true,
	"SOURCE_TLS_KEY_FILE":  true,
	"SOURCE_TLS_CA_FILE":   true,
}

func parseSourceConfig(environ []string) map[string]string {
	config := make(map[string]string)

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, sourcePrefix) || len(key) == len(sourcePrefix) || sourceReserved[key] {
			continue
		}
		config[toLowerCamelCase(key[len(sourcePrefix):])] = value
	}

	return config
}

func toLowerCamelCase(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

// envMap is a snapshot of the environment.
type envMap map[string]string

func newEnv(environ []string) envMap {
	m := make(envMap, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

func (e envMap) get(key, defaultValue string) string {
	if value := e[key]; value != "" {
		return value
	}
	return defaultValue
}

func (e envMap) getInt(key string, defaultValue int) int {
	if value := e[key]; value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func (e envMap) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e[key]; value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (e envMap) getBool(key string, defaultValue bool) bool {
	if value := e[key]; value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
