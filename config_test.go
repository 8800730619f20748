package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGetConfig(t *testing.T) {
	t.Setenv("VERVAL_TEST_KEY", "from-env")

	if got := getConfig("from-flag", "VERVAL_TEST_KEY", "default"); got != "from-flag" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := getConfig("", "VERVAL_TEST_KEY", "default"); got != "from-env" {
		t.Errorf("env should win over default, got %q", got)
	}
	if got := getConfig("", "VERVAL_TEST_UNSET", "default"); got != "default" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr string
	}{
		{"http://localhost:3333", ""},
		{"https://api.verval.app", ""},
		{"", "cannot be empty"},
		{"ftp://example.com", "scheme must be http or https"},
		{"localhost:3333", "scheme must be http or https"},
		{"http://", "must include a host"},
		{"http://[::1", "invalid URL format"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validateServerURL(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_URL", "CREDENTIAL_STORE", "TOKEN_FILE", "REDIS_URL", "REFRESH_PATH",
		"REQUEST_TIMEOUT", "MAX_RETRIES", "VERVAL_LOCALE", "LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := resolveConfig(&flagValues{})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.serverURL != defaultServerURL {
		t.Errorf("serverURL = %q", cfg.serverURL)
	}
	if cfg.store != storeFile || cfg.tokenFile != defaultTokenFile {
		t.Errorf("store = %q, tokenFile = %q", cfg.store, cfg.tokenFile)
	}
	if cfg.refreshPath != "/api/usuarios/refresh" {
		t.Errorf("refreshPath = %q", cfg.refreshPath)
	}
	if cfg.timeout != 15*time.Second {
		t.Errorf("timeout = %s", cfg.timeout)
	}
	if cfg.maxRetries != 0 {
		t.Errorf("maxRetries = %d", cfg.maxRetries)
	}
	if cfg.logLevel != zerolog.WarnLevel {
		t.Errorf("logLevel = %s", cfg.logLevel)
	}
	if cfg.locale != "pt-BR" {
		t.Errorf("locale = %q", cfg.locale)
	}
}

func TestResolveConfigFlagOverridesEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SERVER_URL", "https://env.example.com")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("CREDENTIAL_STORE", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := resolveConfig(&flagValues{serverURL: "https://flag.example.com", maxRetries: "2", logLevel: "DEBUG"})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.serverURL != "https://flag.example.com" {
		t.Errorf("serverURL = %q", cfg.serverURL)
	}
	if cfg.timeout != 3*time.Second {
		t.Errorf("timeout = %s", cfg.timeout)
	}
	if cfg.store != storeRedis {
		t.Errorf("store = %q", cfg.store)
	}
	if cfg.maxRetries != 2 {
		t.Errorf("maxRetries = %d", cfg.maxRetries)
	}
	if cfg.logLevel != zerolog.DebugLevel {
		t.Errorf("logLevel = %s", cfg.logLevel)
	}
}

func TestResolveConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		flags   flagValues
		wantErr string
	}{
		{"bad server url", flagValues{serverURL: "ftp://x"}, "invalid SERVER_URL"},
		{"unknown store", flagValues{store: "keychain"}, "unknown credential store"},
		{"redis without url", flagValues{store: "redis"}, "REDIS_URL is required"},
		{"bad timeout", flagValues{timeout: "soon"}, "invalid REQUEST_TIMEOUT"},
		{"zero timeout", flagValues{timeout: "0s"}, "invalid REQUEST_TIMEOUT"},
		{"negative retries", flagValues{maxRetries: "-1"}, "invalid MAX_RETRIES"},
		{"bad log level", flagValues{logLevel: "loud"}, "invalid LOG_LEVEL"},
		{"relative refresh path", flagValues{refreshPath: "refresh"}, "invalid REFRESH_PATH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			_, err := resolveConfig(&tt.flags)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWarnPlaintext(t *testing.T) {
	tests := []struct {
		url  string
		warn bool
	}{
		{"http://api.example.com", true},
		{"HTTP://api.example.com", true},
		{"https://api.example.com", false},
		{"http://localhost:3333", false},
		{"http://127.0.0.1:8080", false},
		{"http://[::1]:8080", false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		warnPlaintext(&buf, tt.url)
		if got := strings.Contains(buf.String(), "WARNING"); got != tt.warn {
			t.Errorf("warnPlaintext(%q) warned = %v, want %v", tt.url, got, tt.warn)
		}
	}
}
