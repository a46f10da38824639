package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"chat url scheme", func(c *Config) { c.Client.ChatURL = "http://localhost/chat" }, "client.chat_url"},
		{"chat url empty", func(c *Config) { c.Client.ChatURL = "" }, "client.chat_url must not be empty"},
		{"api url scheme", func(c *Config) { c.Client.APIURL = "ftp://x" }, "client.api_url"},
		{"dial timeout", func(c *Config) { c.Client.DialTimeout = 0 }, "client.dial_timeout"},
		{"request timeout", func(c *Config) { c.Client.RequestTimeout = -time.Second }, "client.request_timeout"},
		{"max upload", func(c *Config) { c.Analyzer.MaxUploadBytes = 0 }, "analyzer.max_upload_bytes"},
		{"analyzer burst", func(c *Config) { c.Analyzer.Burst = 0 }, "analyzer.burst"},
		{"breaker failures", func(c *Config) { c.Analyzer.CircuitBreaker.MaxFailures = 0 }, "analyzer.circuit_breaker.max_failures"},
		{"storage path", func(c *Config) { c.Storage.Path = " " }, "storage.path"},
		{"gateway addr", func(c *Config) { c.Gateway.Addr = "nope" }, "gateway.addr"},
		{"gateway rpm", func(c *Config) { c.Gateway.RequestsPerMinute = -1 }, "gateway.requests_per_minute"},
		{"gateway token", func(c *Config) { c.Gateway.Auth.Tokens = []TokenConfig{{Name: "x"}} }, "gateway.auth.tokens[0].token"},
		{"gateway upstream", func(c *Config) { c.Gateway.AnalyzerUpstream = "not a url" }, "gateway.analyzer_upstream"},
		{"provider", func(c *Config) { c.Assistant.Provider = "bedrock" }, "assistant.provider"},
		{"openai key", func(c *Config) { c.Assistant.Provider = "openai" }, "assistant.api_key"},
		{"ollama model", func(c *Config) { c.Assistant.Provider = "ollama"; c.Assistant.Model = "" }, "assistant.model"},
		{"logger format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"tracer exporter", func(c *Config) { c.Tracer.Exporter = "jaeger" }, "tracer.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Client.DialTimeout = 0
	cfg.Storage.Path = ""
	cfg.Logger.Format = "xml"

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidateOllamaWithoutKey(t *testing.T) {
	cfg := Defaults()
	cfg.Assistant.Provider = "ollama"
	if err := Validate(cfg); err != nil {
		t.Errorf("ollama needs no api key: %v", err)
	}
}

func TestValidateBreakerDisabledSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Analyzer.CircuitBreaker = CircuitBreakerConfig{Enabled: false}
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled breaker should not be validated: %v", err)
	}
}
