package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	"github.com/kvcfdd/yunzai-go/internal/models"
	"github.com/kvcfdd/yunzai-go/internal/security"
)

var (
	ErrMissingOneBotURL = models.ConfigError{Message: "missing OneBot API URL"}
	ErrMissingDBPath    = models.ConfigError{Message: "missing database path"}
	ErrMissingDataDir   = models.ConfigError{Message: "missing data directory"}
	ErrNoAdmins         = models.ConfigError{Message: "admins map is required and must contain at least one bot account"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.OneBot.APIBaseURL == "" {
		return ErrMissingOneBotURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.DataDir == "" {
		return ErrMissingDataDir
	}
	if len(c.Admins) == 0 {
		return ErrNoAdmins
	}

	for account, admins := range c.Admins {
		if _, err := strconv.ParseInt(account, 10, 64); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid bot account id in admins: %s", account)}
		}
		if len(admins) == 0 {
			return models.ConfigError{Message: fmt.Sprintf("bot account %s has no administrators", account)}
		}
	}

	switch c.OneBot.EventMode {
	case "":
		c.OneBot.EventMode = "webhook"
	case "webhook":
	case "websocket":
		if c.OneBot.WSURL == "" {
			return models.ConfigError{Message: "websocket event mode requires wsUrl"}
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown event mode: %s", c.OneBot.EventMode)}
	}

	if c.OneBot.TimeoutSec <= 0 {
		c.OneBot.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.OneBot.RetryCount < 0 {
		c.OneBot.RetryCount = 0
	}
	if c.Renderer.TimeoutSec <= 0 {
		c.Renderer.TimeoutSec = constants.DefaultRenderTimeoutSec
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CleanupIntervalHours <= 0 {
		c.CleanupIntervalHours = constants.CleanupSchedulerIntervalHours
	}

	return nil
}

// ParseAdmins converts the string-keyed admins map into account ids.
// Validation has already rejected non-numeric keys.
func ParseAdmins(c *models.Config) map[int64][]int64 {
	admins := make(map[int64][]int64, len(c.Admins))
	for account, ids := range c.Admins {
		id, err := strconv.ParseInt(account, 10, 64)
		if err != nil {
			continue
		}
		admins[id] = ids
	}
	return admins
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("ONEBOT_API_URL"); url != "" {
		c.OneBot.APIBaseURL = url
	}

	// SECURITY: Access tokens should be set via environment variables
	if token := os.Getenv("ONEBOT_ACCESS_TOKEN"); token != "" {
		c.OneBot.AccessToken = token
	}

	if url := os.Getenv("RENDERER_URL"); url != "" {
		c.Renderer.BaseURL = url
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if secret := os.Getenv("YUNZAI_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}
}
