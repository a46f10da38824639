package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Client.ChatURL != "ws://localhost:8000/chat" {
		t.Errorf("ChatURL = %q", cfg.Client.ChatURL)
	}
	if cfg.Assistant.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Assistant.Model, DefaultModel)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if !strings.HasSuffix(cfg.Storage.Path, filepath.Join("data", "virtualfit.db")) {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Addr != ":8000" {
		t.Errorf("expected defaults, got Gateway.Addr=%q", cfg.Gateway.Addr)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
client:
  chat_url: "wss://fit.example.com/chat"
  api_url: "https://fit.example.com"
  user_id: "u-7"
  dial_timeout: 5s
assistant:
  provider: "ollama"
  base_url: "http://ollama:11434"
  model: "llama3"
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assert.Equal(t, "wss://fit.example.com/chat", cfg.Client.ChatURL)
	assert.Equal(t, "u-7", cfg.Client.UserID)
	assert.Equal(t, 5*time.Second, cfg.Client.DialTimeout)
	assert.Equal(t, 60*time.Second, cfg.Client.RequestTimeout, "unset fields keep defaults")
	assert.Equal(t, "ollama", cfg.Assistant.Provider)
	assert.Equal(t, "llama3", cfg.Assistant.Model)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadDotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VIRTUALFIT_USER_ID=from-dotenv\n"), 0600))

	// godotenv never overrides variables that are already set; register cleanup
	// for the variable it will set.
	t.Setenv("VIRTUALFIT_USER_ID", "")
	os.Unsetenv("VIRTUALFIT_USER_ID")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Client.UserID)
}

func TestLoadDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VIRTUALFIT_LOGGER_LEVEL=error\n"), 0600))
	t.Setenv("VIRTUALFIT_LOGGER_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VIRTUALFIT_CHAT_URL", "ws://remote:9000/chat")
	t.Setenv("VIRTUALFIT_ASSISTANT_PROVIDER", "openai")
	t.Setenv("VIRTUALFIT_LOGGER_LEVEL", "debug")
	t.Setenv("VIRTUALFIT_TRACER_ENABLED", "true")
	t.Setenv("VIRTUALFIT_GATEWAY_RPM", "120")
	t.Setenv("VIRTUALFIT_GATEWAY_ORIGINS", "localhost:*, example.com")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "ws://remote:9000/chat", cfg.Client.ChatURL)
	assert.Equal(t, "openai", cfg.Assistant.Provider)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Tracer.Enabled)
	assert.Equal(t, 120, cfg.Gateway.RequestsPerMinute)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.Gateway.Origins)
}

func TestEnvOverridesGatewayTokens(t *testing.T) {
	t.Setenv("VIRTUALFIT_GATEWAY_TOKENS", "alpha, ,beta")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	require.Len(t, cfg.Gateway.Auth.Tokens, 2)
	assert.Equal(t, "alpha", cfg.Gateway.Auth.Tokens[0].Token)
	assert.Equal(t, "beta", cfg.Gateway.Auth.Tokens[1].Token)
}

func TestEnvOverridesInvalidNumberIgnored(t *testing.T) {
	t.Setenv("VIRTUALFIT_GATEWAY_RPM", "lots")
	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	assert.Equal(t, 60, cfg.Gateway.RequestsPerMinute)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "sk-abcdef123456"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptValue(encrypted, "wrong-pass")
	if err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "abcdef"},
		{"bad salt", "zz:00"},
		{"bad ciphertext", "00:zz"},
		{"too short", "0011:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptValue(tt.input, "pass")
			assert.Error(t, err)
		})
	}
}

func TestDecryptSecrets(t *testing.T) {
	passphrase := "test-config-key"
	encKey, err := EncryptValue("sk-secret123456", passphrase)
	require.NoError(t, err)
	encTok, err := EncryptValue("gw-token", passphrase)
	require.NoError(t, err)

	cfg := Defaults()
	cfg.Assistant.APIKey = "enc:" + encKey
	cfg.Client.Token = "plain-token"
	cfg.Gateway.Auth.Tokens = []TokenConfig{{Name: "ops", Token: "enc:" + encTok}}

	require.NoError(t, decryptSecrets(cfg, passphrase))
	assert.Equal(t, "sk-secret123456", cfg.Assistant.APIKey)
	assert.Equal(t, "plain-token", cfg.Client.Token)
	assert.Equal(t, "gw-token", cfg.Gateway.Auth.Tokens[0].Token)
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.Client.Token = "enc:nothex"
	err := decryptSecrets(cfg, "pass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client.token")
}

func TestLoadWithConfigKey(t *testing.T) {
	passphrase := "load-key"
	enc, err := EncryptValue("sk-live", passphrase)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "assistant:\n  provider: openai\n  base_url: https://api.openai.com/v1\n  model: gpt-4o-mini\n  api_key: \"enc:" + enc + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("VIRTUALFIT_CONFIG_KEY", passphrase)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-live", cfg.Assistant.APIKey)
}

func TestLoadDecryptSecretsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  token: \"enc:bad\"\n"), 0600))
	t.Setenv("VIRTUALFIT_CONFIG_KEY", "k")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt secrets")
}

func TestLoadInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))
	require.NoError(t, os.Chmod(path, 0666))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client: [unterminated\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadReadError(t *testing.T) {
	// A directory cannot be read as a file.
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		mode    os.FileMode
		wantErr bool
	}{
		{0600, false},
		{0644, false},
		{0640, false},
		{0666, true},
		{0622, true},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, "perm.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))
		require.NoError(t, os.Chmod(path, tt.mode))
		err := validatePermissions(path)
		if tt.wantErr {
			assert.Error(t, err, "mode %o", tt.mode)
		} else {
			assert.NoError(t, err, "mode %o", tt.mode)
		}
	}
}

func TestValidatePermissionsStatError(t *testing.T) {
	err := validatePermissions(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
