package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// DefaultModel is the assistant model used when none is configured.
const DefaultModel = "Goosedev/luna:latest"

// Config is the root configuration for the client and the assistant gateway.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Storage   StorageConfig   `yaml:"storage"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Assistant AssistantConfig `yaml:"assistant"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// ClientConfig holds settings for connecting to the chat server.
type ClientConfig struct {
	ChatURL        string        `yaml:"chat_url"` // ws:// or wss:// chat channel
	APIURL         string        `yaml:"api_url"`  // base URL of the REST API
	UserID         string        `yaml:"user_id,omitempty"`
	Token          string        `yaml:"token,omitempty"` // gateway auth token, may be "enc:..."
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// AnalyzerConfig holds image analysis client settings.
type AnalyzerConfig struct {
	MaxUploadBytes    int64                `yaml:"max_upload_bytes"`
	RequestsPerMinute int                  `yaml:"requests_per_minute"` // 0 disables client-side limiting
	Burst             int                  `yaml:"burst"`
	CircuitBreaker    CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for remote calls.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// StorageConfig holds local storage settings.
type StorageConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// GatewayConfig holds assistant gateway settings.
type GatewayConfig struct {
	Addr              string     `yaml:"addr"`
	RequestsPerMinute int        `yaml:"requests_per_minute"` // per connection, 0 disables
	Burst             int        `yaml:"burst"`
	Origins           []string   `yaml:"origins,omitempty"` // allowed Origin patterns
	AnalyzerUpstream  string     `yaml:"analyzer_upstream,omitempty"`
	MaxUploadBytes    int64      `yaml:"max_upload_bytes"`
	Auth              AuthConfig `yaml:"auth"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens,omitempty"` // empty disables auth
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// AssistantConfig holds the gateway's reply backend settings.
type AssistantConfig struct {
	Provider       string               `yaml:"provider"` // echo, ollama or openai
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key,omitempty"`
	Model          string               `yaml:"model"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	RespTimeout    time.Duration        `yaml:"resp_timeout"`
	ChunkDelay     time.Duration        `yaml:"chunk_delay"` // echo only
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"` // stdout, stderr, discard or a file path
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Output   string `yaml:"output"` // stdout exporter destination
}

// HomeDir returns $HOME/.virtualfit, falling back to "./.virtualfit".
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".virtualfit"
	}
	return filepath.Join(home, ".virtualfit")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dir := HomeDir()
	return &Config{
		Client: ClientConfig{
			ChatURL:        "ws://localhost:8000/chat",
			APIURL:         "http://localhost:8000",
			DialTimeout:    10 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			MaxUploadBytes:    10 << 20,
			RequestsPerMinute: 30,
			Burst:             3,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "data", "virtualfit.db"),
		},
		Gateway: GatewayConfig{
			Addr:              ":8000",
			RequestsPerMinute: 60,
			Burst:             5,
			MaxUploadBytes:    10 << 20,
		},
		Assistant: AssistantConfig{
			Provider:    "echo",
			BaseURL:     "http://localhost:11434",
			Model:       DefaultModel,
			ConnTimeout: 10 * time.Second,
			RespTimeout: 120 * time.Second,
			ChunkDelay:  30 * time.Millisecond,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies .env and env var overrides, and
// decrypts secrets. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// A .env next to the config file fills variables the working directory did not.
	if err := loadDotEnv(filepath.Join(filepath.Dir(absPath), ".env")); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("VIRTUALFIT_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// ApplyEnvOverrides maps VIRTUALFIT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VIRTUALFIT_CHAT_URL"); v != "" {
		cfg.Client.ChatURL = v
	}
	if v := os.Getenv("VIRTUALFIT_API_URL"); v != "" {
		cfg.Client.APIURL = v
	}
	if v := os.Getenv("VIRTUALFIT_USER_ID"); v != "" {
		cfg.Client.UserID = v
	}
	if v := os.Getenv("VIRTUALFIT_CLIENT_TOKEN"); v != "" {
		cfg.Client.Token = v
	}
	if v := os.Getenv("VIRTUALFIT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("VIRTUALFIT_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("VIRTUALFIT_GATEWAY_TOKENS"); v != "" {
		cfg.Gateway.Auth.Tokens = nil
		for i, tok := range splitAndTrim(v, ",") {
			if tok == "" {
				continue
			}
			cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{
				Token: tok,
				Name:  "env-" + strconv.Itoa(i),
			})
		}
	}
	if v := os.Getenv("VIRTUALFIT_GATEWAY_ORIGINS"); v != "" {
		cfg.Gateway.Origins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("VIRTUALFIT_GATEWAY_ANALYZER_UPSTREAM"); v != "" {
		cfg.Gateway.AnalyzerUpstream = v
	}
	if v := os.Getenv("VIRTUALFIT_GATEWAY_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("VIRTUALFIT_ASSISTANT_PROVIDER"); v != "" {
		cfg.Assistant.Provider = v
	}
	if v := os.Getenv("VIRTUALFIT_ASSISTANT_BASE_URL"); v != "" {
		cfg.Assistant.BaseURL = v
	}
	if v := os.Getenv("VIRTUALFIT_ASSISTANT_API_KEY"); v != "" {
		cfg.Assistant.APIKey = v
	}
	if v := os.Getenv("VIRTUALFIT_ASSISTANT_MODEL"); v != "" {
		cfg.Assistant.Model = v
	}
	if v := os.Getenv("VIRTUALFIT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("VIRTUALFIT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("VIRTUALFIT_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("VIRTUALFIT_TRACER_ENABLED"); v != "" {
		cfg.Tracer.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("VIRTUALFIT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("VIRTUALFIT_TRACER_OUTPUT"); v != "" {
		cfg.Tracer.Output = v
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// decryptSecrets finds "enc:..." values in secret fields and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := []struct {
		name  string
		field *string
	}{
		{"assistant.api_key", &cfg.Assistant.APIKey},
		{"client.token", &cfg.Client.Token},
	}
	for i := range cfg.Gateway.Auth.Tokens {
		secrets = append(secrets, struct {
			name  string
			field *string
		}{"gateway auth token " + cfg.Gateway.Auth.Tokens[i].Name, &cfg.Gateway.Auth.Tokens[i].Token})
	}

	for _, s := range secrets {
		if !strings.HasPrefix(*s.field, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(*s.field, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		*s.field = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
