package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/discover-Austin/DorkNexus/internal/config"
)

const minimalYAML = `
provider:
  name: gemini-live
  api_key: test-key
`

func TestLoadFromReader_Minimal(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Provider.Name != config.ProviderGeminiLive {
		t.Errorf("provider name = %q", cfg.Provider.Name)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr default = %q; want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level default = %q; want info", cfg.Server.LogLevel)
	}
	if cfg.Assistant.Voice != config.DefaultVoice {
		t.Errorf("voice default = %q; want %q", cfg.Assistant.Voice, config.DefaultVoice)
	}
	if !strings.Contains(cfg.Assistant.Instructions, "Nexus") {
		t.Errorf("default instructions missing persona: %q", cfg.Assistant.Instructions)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
provider:
  name: openai-realtime
  api_key: sk-test
  base_url: wss://example.com/v1/realtime
  model: gpt-4o-realtime-preview
assistant:
  instructions: "You are a test assistant."
  voice: sage
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Provider.Name != config.ProviderOpenAIRealtime {
		t.Errorf("provider name = %q", cfg.Provider.Name)
	}
	if cfg.Provider.BaseURL != "wss://example.com/v1/realtime" {
		t.Errorf("base_url = %q", cfg.Provider.BaseURL)
	}
	if cfg.Assistant.Voice != "sage" {
		t.Errorf("voice = %q", cfg.Assistant.Voice)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	yaml := minimalYAML + `
observability:
  backend: prometheus
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_MissingProvider(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
server:
  listen_addr: ":8080"
`))
	if err == nil {
		t.Fatal("expected error for missing provider, got nil")
	}
	if !strings.Contains(err.Error(), "provider.name is required") {
		t.Errorf("error should mention provider.name, got: %v", err)
	}
	if !strings.Contains(err.Error(), "provider.api_key is required") {
		t.Errorf("error should mention provider.api_key, got: %v", err)
	}
}

func TestValidate_UnknownProviderName(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
provider:
  name: amazon-polly
  api_key: k
`))
	if err == nil {
		t.Fatal("expected error for unknown provider name, got nil")
	}
	if !strings.Contains(err.Error(), "amazon-polly") {
		t.Errorf("error should name the bad provider, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(minimalYAML + `
server:
  log_level: verbose
`))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(minimalYAML + `
server:
  tls:
    cert_file: /etc/certs/server.pem
`))
	if err == nil {
		t.Fatal("expected error for TLS without key file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "test-key" {
		t.Errorf("api_key = %q", cfg.Provider.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}

func TestProviderNameIsValid(t *testing.T) {
	t.Parallel()

	if !config.ProviderGeminiLive.IsValid() || !config.ProviderOpenAIRealtime.IsValid() {
		t.Error("known providers should be valid")
	}
	if config.ProviderName("").IsValid() {
		t.Error("empty provider should be invalid")
	}
}
