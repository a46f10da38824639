package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateClient(cfg, ve)
	validateAnalyzer(cfg, ve)
	validateStorage(cfg, ve)
	validateGateway(cfg, ve)
	validateAssistant(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateClient(cfg *Config, ve *ValidationError) {
	c := cfg.Client
	checkURL(ve, "client.chat_url", c.ChatURL, "ws", "wss")
	checkURL(ve, "client.api_url", c.APIURL, "http", "https")
	if c.DialTimeout <= 0 {
		ve.Add("client.dial_timeout must be > 0")
	}
	if c.RequestTimeout <= 0 {
		ve.Add("client.request_timeout must be > 0")
	}
}

func validateAnalyzer(cfg *Config, ve *ValidationError) {
	a := cfg.Analyzer
	if a.MaxUploadBytes <= 0 {
		ve.Add("analyzer.max_upload_bytes must be > 0")
	}
	if a.RequestsPerMinute < 0 {
		ve.Add("analyzer.requests_per_minute must be >= 0")
	}
	if a.RequestsPerMinute > 0 && a.Burst <= 0 {
		ve.Add("analyzer.burst must be > 0 when requests_per_minute is set")
	}
	validateBreaker(ve, "analyzer.circuit_breaker", a.CircuitBreaker)
}

func validateBreaker(ve *ValidationError, prefix string, cb CircuitBreakerConfig) {
	if !cb.Enabled {
		return
	}
	if cb.MaxFailures == 0 {
		ve.Add("%s.max_failures must be > 0 when enabled", prefix)
	}
	if cb.Timeout <= 0 {
		ve.Add("%s.timeout must be > 0 when enabled", prefix)
	}
}

func validateStorage(cfg *Config, ve *ValidationError) {
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		ve.Add("storage.path must not be empty")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	g := cfg.Gateway
	if g.Addr == "" {
		ve.Add("gateway.addr is required")
	} else if _, _, err := net.SplitHostPort(g.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", g.Addr)
	}
	if g.RequestsPerMinute < 0 {
		ve.Add("gateway.requests_per_minute must be >= 0")
	}
	if g.RequestsPerMinute > 0 && g.Burst <= 0 {
		ve.Add("gateway.burst must be > 0 when requests_per_minute is set")
	}
	if g.MaxUploadBytes <= 0 {
		ve.Add("gateway.max_upload_bytes must be > 0")
	}
	if g.AnalyzerUpstream != "" {
		checkURL(ve, "gateway.analyzer_upstream", g.AnalyzerUpstream, "http", "https")
	}
	for i, tok := range g.Auth.Tokens {
		if tok.Token == "" {
			ve.Add("gateway.auth.tokens[%d].token must not be empty", i)
		}
	}
}

var validProviders = map[string]bool{
	"echo":   true,
	"ollama": true,
	"openai": true,
}

func validateAssistant(cfg *Config, ve *ValidationError) {
	a := cfg.Assistant
	if !validProviders[a.Provider] {
		ve.Add("assistant.provider %q is invalid (want: echo, ollama, openai)", a.Provider)
		return
	}
	if a.Provider == "echo" {
		if a.ChunkDelay < 0 {
			ve.Add("assistant.chunk_delay must be >= 0")
		}
		return
	}
	checkURL(ve, "assistant.base_url", a.BaseURL, "http", "https")
	if a.Model == "" {
		ve.Add("assistant.model must not be empty for provider %q", a.Provider)
	}
	if a.Provider == "openai" && a.APIKey == "" {
		ve.Add("assistant.api_key is required for provider \"openai\"")
	}
	if a.RespTimeout <= 0 {
		ve.Add("assistant.resp_timeout must be > 0")
	}
	validateBreaker(ve, "assistant.circuit_breaker", a.CircuitBreaker)
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
	if cfg.Logger.MaxSizeMB < 0 || cfg.Logger.MaxBackups < 0 || cfg.Logger.MaxAgeDays < 0 {
		ve.Add("logger rotation settings must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}

func checkURL(ve *ValidationError, field, raw string, schemes ...string) {
	if raw == "" {
		ve.Add("%s must not be empty", field)
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		ve.Add("%s %q is not a valid URL", field, raw)
		return
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return
		}
	}
	ve.Add("%s %q must use scheme %s", field, raw, strings.Join(schemes, " or "))
}
