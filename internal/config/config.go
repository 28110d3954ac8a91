// Package config provides the configuration schema and loader for the
// DorkNexus voice server.
package config

// LogLevel controls log verbosity for the DorkNexus server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ProviderName selects the live speech backend.
type ProviderName string

const (
	// ProviderGeminiLive uses Google's Gemini Live API.
	ProviderGeminiLive ProviderName = "gemini-live"

	// ProviderOpenAIRealtime uses OpenAI's Realtime API.
	ProviderOpenAIRealtime ProviderName = "openai-realtime"
)

// IsValid reports whether p is a recognised provider name.
func (p ProviderName) IsValid() bool {
	return p == ProviderGeminiLive || p == ProviderOpenAIRealtime
}

// DefaultInstructions is the assistant persona used when the config does
// not override it.
const DefaultInstructions = "You are Nexus, an elite Cyber Intelligence Voice Assistant. " +
	"You are embedded in the DorkNexus application. Your goal is to assist the user in " +
	"constructing Google Dorks, navigating the tool, and explaining OSINT concepts. " +
	"Be concise, professional, and slightly futuristic. If the user asks to create a dork, " +
	"generate it and call the update_dork tool. If they want to change views, call change_tab."

// DefaultVoice is the assistant voice used when the config does not
// override it.
const DefaultVoice = "Kore"

// DefaultListenAddr is the server bind address used when the config does
// not override it.
const DefaultListenAddr = ":8080"

// Config is the root configuration structure for DorkNexus.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// ServerConfig holds network and logging settings for the DorkNexus server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProviderConfig selects and configures the live speech backend.
type ProviderConfig struct {
	// Name selects the backend implementation.
	Name ProviderName `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default WebSocket endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	// Leave empty to use the provider's built-in default.
	Model string `yaml:"model"`
}

// AssistantConfig shapes the assistant's behaviour and voice.
type AssistantConfig struct {
	// Instructions is the system prompt sent at session setup.
	// Defaults to [DefaultInstructions].
	Instructions string `yaml:"instructions"`

	// Voice is the provider voice identifier. Defaults to [DefaultVoice].
	Voice string `yaml:"voice"`
}
