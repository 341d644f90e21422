package models

// Config is the root configuration for the daemon, loaded from a JSON file
// with environment overrides applied afterwards.
type Config struct {
	OneBot   OneBotConfig   `json:"onebot"`
	Renderer RendererConfig `json:"renderer"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`

	// Admins maps a receiving bot account id to the administrator ids that
	// receive request notifications and may issue approve/deny commands.
	Admins map[string][]int64 `json:"admins"`

	DataDir       string `json:"dataDir"`
	LogLevel      string `json:"logLevel"`
	RetentionDays int    `json:"retentionDays"`

	CleanupIntervalHours int `json:"cleanupIntervalHours"`
}

type OneBotConfig struct {
	APIBaseURL  string `json:"apiBaseUrl"`
	AccessToken string `json:"accessToken"`
	// EventMode selects how platform events reach the daemon:
	// "webhook" (HTTP event push) or "websocket" (forward WS stream).
	EventMode  string `json:"eventMode"`
	WSURL      string `json:"wsUrl"`
	TimeoutSec int    `json:"timeoutSec"`
	RetryCount int    `json:"retryCount"`
}

type RendererConfig struct {
	BaseURL     string `json:"baseUrl"`
	TemplateDir string `json:"templateDir"`
	TimeoutSec  int    `json:"timeoutSec"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ServerConfig struct {
	Port             int    `json:"port"`
	WebhookSecret    string `json:"webhookSecret"`
	ReadTimeoutSec   int    `json:"readTimeoutSec"`
	WriteTimeoutSec  int    `json:"writeTimeoutSec"`
	IdleTimeoutSec   int    `json:"idleTimeoutSec"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// ConfigError represents a configuration validation failure.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
