package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verval/verval-cli/api"
	"github.com/verval/verval-cli/finance"
)

const (
	storeFile   = "file"
	storeRedis  = "redis"
	storeMemory = "memory"

	defaultServerURL   = "http://localhost:3333"
	defaultTokenFile   = ".verval-credentials.json"
	defaultRedisPrefix = "verval:"
	defaultLogLevel    = "warn"
)

// flagValues holds the raw persistent flags; empty means "not given".
type flagValues struct {
	serverURL    string
	store        string
	tokenFile    string
	redisURL     string
	refreshPath  string
	timeout      string
	maxRetries   string
	locale       string
	logLevel     string
	otlpEndpoint string
	plain        bool
}

func (f *flagValues) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.serverURL, "server-url", "",
		"API server URL (default: "+defaultServerURL+" or SERVER_URL env)")
	pf.StringVar(&f.store, "store", "",
		"Credential store: file, redis or memory (default: file or CREDENTIAL_STORE env)")
	pf.StringVar(&f.tokenFile, "token-file", "",
		"Credential file for the file store (default: "+defaultTokenFile+" or TOKEN_FILE env)")
	pf.StringVar(&f.redisURL, "redis-url", "", "Redis URL for the redis store (or REDIS_URL env)")
	pf.StringVar(&f.refreshPath, "refresh-path", "",
		"Token refresh endpoint (default: "+api.DefaultRefreshPath+" or REFRESH_PATH env)")
	pf.StringVar(&f.timeout, "timeout", "", "Per-request timeout (default: 15s or REQUEST_TIMEOUT env)")
	pf.StringVar(&f.maxRetries, "max-retries", "",
		"Retries for network errors and 5xx answers (default: 0 or MAX_RETRIES env)")
	pf.StringVar(&f.locale, "locale", "",
		"Locale for money formatting (default: "+finance.DefaultLocale+" or VERVAL_LOCALE env)")
	pf.StringVar(&f.logLevel, "log-level", "",
		"Diagnostics level: debug, info, warn, error (default: warn or LOG_LEVEL env)")
	pf.StringVar(&f.otlpEndpoint, "otlp-endpoint", "",
		"OTLP/gRPC metrics endpoint (or OTEL_EXPORTER_OTLP_ENDPOINT env)")
	pf.BoolVar(&f.plain, "plain", false, "Print plain progress lines even on a terminal")
}

// config is the resolved configuration of one run.
type config struct {
	serverURL    string
	store        string
	tokenFile    string
	redisURL     string
	refreshPath  string
	timeout      time.Duration
	maxRetries   int
	locale       string
	logLevel     zerolog.Level
	otlpEndpoint string
	plain        bool
}

// resolveConfig applies flag > env > default to every setting and validates
// the result.
func resolveConfig(f *flagValues) (config, error) {
	cfg := config{
		serverURL:    getConfig(f.serverURL, "SERVER_URL", defaultServerURL),
		store:        strings.ToLower(getConfig(f.store, "CREDENTIAL_STORE", storeFile)),
		tokenFile:    getConfig(f.tokenFile, "TOKEN_FILE", defaultTokenFile),
		redisURL:     getConfig(f.redisURL, "REDIS_URL", ""),
		refreshPath:  getConfig(f.refreshPath, "REFRESH_PATH", api.DefaultRefreshPath),
		locale:       getConfig(f.locale, "VERVAL_LOCALE", finance.DefaultLocale),
		otlpEndpoint: getConfig(f.otlpEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		plain:        f.plain,
	}

	if err := validateServerURL(cfg.serverURL); err != nil {
		return config{}, fmt.Errorf("invalid SERVER_URL: %w", err)
	}
	if !strings.HasPrefix(cfg.refreshPath, "/") {
		return config{}, fmt.Errorf("invalid REFRESH_PATH %q: must start with /", cfg.refreshPath)
	}

	switch cfg.store {
	case storeFile, storeMemory:
	case storeRedis:
		if cfg.redisURL == "" {
			return config{}, errors.New("REDIS_URL is required for the redis store")
		}
	default:
		return config{}, fmt.Errorf("unknown credential store %q (want file, redis or memory)", cfg.store)
	}

	var err error
	timeout := getConfig(f.timeout, "REQUEST_TIMEOUT", api.DefaultRequestTimeout.String())
	if cfg.timeout, err = time.ParseDuration(timeout); err != nil || cfg.timeout <= 0 {
		return config{}, fmt.Errorf("invalid REQUEST_TIMEOUT %q: must be a positive duration", timeout)
	}

	retries := getConfig(f.maxRetries, "MAX_RETRIES", "0")
	if cfg.maxRetries, err = strconv.Atoi(retries); err != nil || cfg.maxRetries < 0 {
		return config{}, fmt.Errorf("invalid MAX_RETRIES %q: must be a non-negative integer", retries)
	}

	level := getConfig(f.logLevel, "LOG_LEVEL", defaultLogLevel)
	if cfg.logLevel, err = zerolog.ParseLevel(strings.ToLower(level)); err != nil {
		return config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	return cfg, nil
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// warnPlaintext warns when tokens would travel over plain HTTP to anything
// but a loopback host.
func warnPlaintext(w io.Writer, serverURL string) {
	u, err := url.Parse(serverURL)
	if err != nil || !strings.EqualFold(u.Scheme, "http") {
		return
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return
	}
	fmt.Fprintln(w, "⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!")
	fmt.Fprintln(w, "⚠️  This is only safe for local development. Use HTTPS in production.")
	fmt.Fprintln(w)
}

// newLogger writes diagnostics to w in zerolog's console format.
func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
