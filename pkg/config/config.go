package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Vault    VaultConfig    `json:"vault"`
	Delivery DeliveryConfig `json:"delivery"`
	Snapshot SnapshotConfig `json:"snapshot,omitzero"`
	Logging  LoggingConfig  `json:"logging,omitzero"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled     bool                `env:"LINKVAULT_CHANNELS_TELEGRAM_ENABLED"       json:"enabled"`
	Token       string              `env:"LINKVAULT_CHANNELS_TELEGRAM_TOKEN"         json:"token"`
	VaultChatID int64               `env:"LINKVAULT_CHANNELS_TELEGRAM_VAULT_CHAT_ID" json:"vault_chat_id"`
	AllowFrom   FlexibleStringSlice `env:"LINKVAULT_CHANNELS_TELEGRAM_ALLOW_FROM"    json:"allow_from"`
}

type VaultConfig struct {
	StorePath string `env:"LINKVAULT_VAULT_STORE_PATH" json:"store_path"`
}

// DeliveryConfig bounds the retry behavior when copying content to a
// requesting user. These are the only retries in the system.
type DeliveryConfig struct {
	MaxAttempts int `env:"LINKVAULT_DELIVERY_MAX_ATTEMPTS" json:"max_attempts"`
	BackoffMS   int `env:"LINKVAULT_DELIVERY_BACKOFF_MS"   json:"backoff_ms"`
}

type SnapshotConfig struct {
	Enabled  bool   `env:"LINKVAULT_SNAPSHOT_ENABLED"  json:"enabled"`
	Schedule string `env:"LINKVAULT_SNAPSHOT_SCHEDULE" json:"schedule"` // cron expression
	Keep     int    `env:"LINKVAULT_SNAPSHOT_KEEP"     json:"keep"`
}

type LoggingConfig struct {
	File string `env:"LINKVAULT_LOGGING_FILE" json:"file,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled: true,
			},
		},
		Vault: VaultConfig{
			StorePath: "~/.linkvault/vault.json",
		},
		Delivery: DeliveryConfig{
			MaxAttempts: 3,
			BackoffMS:   500,
		},
		Snapshot: SnapshotConfig{
			Schedule: "0 3 * * *",
			Keep:     7,
		},
	}
}

// LoadConfig reads the config file at path, falling back to defaults when
// the file is absent, then applies LINKVAULT_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// StorePath returns the vault file path with a leading ~ expanded.
func (c *Config) StorePath() string {
	return expandHome(c.Vault.StorePath)
}

// Validate checks the parts of the config the gateway cannot run without.
func (c *Config) Validate() error {
	tg := c.Channels.Telegram
	if !tg.Enabled {
		return fmt.Errorf("no channel enabled: set channels.telegram.enabled")
	}
	if tg.Token == "" {
		return fmt.Errorf("telegram token not set (channels.telegram.token or LINKVAULT_CHANNELS_TELEGRAM_TOKEN)")
	}
	if tg.VaultChatID == 0 {
		return fmt.Errorf("vault chat not set (channels.telegram.vault_chat_id or LINKVAULT_CHANNELS_TELEGRAM_VAULT_CHAT_ID)")
	}
	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("delivery.max_attempts must be at least 1")
	}
	return nil
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		if len(path) == 1 {
			return home
		}
	}
	return path
}
