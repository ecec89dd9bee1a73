package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// MissingError reports a required setting that was absent. Only the setting
// name is included, never its value.
type MissingError struct {
	Setting string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required setting: %s", e.Setting)
}

// InvalidError reports a required setting that was present but unusable.
type InvalidError struct {
	Setting string
	Reason  string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Setting, e.Reason)
}

type Config struct {
	Slack   SlackConfig   `json:"slack"`
	Queue   QueueConfig   `json:"queue"`
	Dedupe  DedupeConfig  `json:"dedupe"`
	AI      AIConfig      `json:"ai"`
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
}

type SlackConfig struct {
	SigningSecret  string `json:"signing_secret" env:"SLACKRELAY_SLACK_SIGNING_SECRET"`
	BotToken       string `json:"bot_token" env:"SLACKRELAY_SLACK_BOT_TOKEN"`
	BotUserID      string `json:"bot_user_id" env:"SLACKRELAY_SLACK_BOT_USER_ID"`
	AllowedSkewSec int    `json:"allowed_skew_sec" env:"SLACKRELAY_SLACK_ALLOWED_SKEW_SEC"`
}

type QueueConfig struct {
	URL            string `json:"url" env:"SLACKRELAY_QUEUE_URL"`
	WaitTimeSec    int    `json:"wait_time_sec" env:"SLACKRELAY_QUEUE_WAIT_TIME_SEC"`
	MaxConcurrency int    `json:"max_concurrency" env:"SLACKRELAY_QUEUE_MAX_CONCURRENCY"`
	BatchSize      int    `json:"batch_size" env:"SLACKRELAY_QUEUE_BATCH_SIZE"`
}

type DedupeConfig struct {
	Table    string `json:"table" env:"SLACKRELAY_DEDUPE_TABLE"`
	KeyField string `json:"key_field" env:"SLACKRELAY_DEDUPE_KEY_FIELD"`
	TTLField string `json:"ttl_field" env:"SLACKRELAY_DEDUPE_TTL_FIELD"`
	TTLSec   int64  `json:"ttl_sec" env:"SLACKRELAY_DEDUPE_TTL_SEC"`
}

type AIConfig struct {
	Provider  string `json:"provider" env:"SLACKRELAY_AI_PROVIDER"`
	Model     string `json:"model" env:"SLACKRELAY_AI_MODEL"`
	Region    string `json:"region" env:"SLACKRELAY_AI_REGION"`
	APIKey    string `json:"api_key" env:"SLACKRELAY_AI_API_KEY"`
	MaxTokens int64  `json:"max_tokens" env:"SLACKRELAY_AI_MAX_TOKENS"`
}

type ServerConfig struct {
	ListenAddr string `json:"listen_addr" env:"SLACKRELAY_LISTEN_ADDR"`
}

type LoggingConfig struct {
	Level       string `json:"level" env:"SLACKRELAY_LOG_LEVEL"`
	FileEnabled bool   `json:"file_enabled" env:"SLACKRELAY_LOG_FILE_ENABLED"`
	FilePath    string `json:"file_path" env:"SLACKRELAY_LOG_FILE_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			AllowedSkewSec: 300,
		},
		Queue: QueueConfig{
			WaitTimeSec:    20,
			MaxConcurrency: 4,
			BatchSize:      10,
		},
		Dedupe: DedupeConfig{
			KeyField: "message_id",
			TTLField: "expire_at",
			TTLSec:   3600,
		},
		AI: AIConfig{
			Provider:  "bedrock",
			Region:    "ap-northeast-1",
			MaxTokens: 1024,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional JSON file,
// and environment variables, in that order of precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateIngest checks everything the ingestion stage needs. The first
// problem found is returned; the caller reports it as a server error.
func (c *Config) ValidateIngest() error {
	if c.Slack.SigningSecret == "" {
		return &MissingError{Setting: "SLACKRELAY_SLACK_SIGNING_SECRET"}
	}
	if c.Slack.BotUserID == "" {
		return &MissingError{Setting: "SLACKRELAY_SLACK_BOT_USER_ID"}
	}
	if c.Queue.URL == "" {
		return &MissingError{Setting: "SLACKRELAY_QUEUE_URL"}
	}
	if c.Slack.AllowedSkewSec <= 0 {
		return &InvalidError{Setting: "SLACKRELAY_SLACK_ALLOWED_SKEW_SEC", Reason: "must be a positive integer"}
	}
	return nil
}

// ValidateConsume checks everything the consumption stage needs.
func (c *Config) ValidateConsume() error {
	if c.AI.Model == "" {
		return &MissingError{Setting: "SLACKRELAY_AI_MODEL"}
	}
	if c.Slack.BotToken == "" {
		return &MissingError{Setting: "SLACKRELAY_SLACK_BOT_TOKEN"}
	}
	if c.Queue.URL == "" {
		return &MissingError{Setting: "SLACKRELAY_QUEUE_URL"}
	}
	if c.Dedupe.Table == "" {
		return &MissingError{Setting: "SLACKRELAY_DEDUPE_TABLE"}
	}
	if c.Dedupe.KeyField == "" {
		return &MissingError{Setting: "SLACKRELAY_DEDUPE_KEY_FIELD"}
	}
	if c.Dedupe.TTLField == "" {
		return &MissingError{Setting: "SLACKRELAY_DEDUPE_TTL_FIELD"}
	}
	if c.Dedupe.TTLSec <= 0 {
		return &InvalidError{Setting: "SLACKRELAY_DEDUPE_TTL_SEC", Reason: "must be a positive integer"}
	}
	switch c.AI.Provider {
	case "bedrock":
	case "anthropic", "openai":
		if c.AI.APIKey == "" {
			return &MissingError{Setting: "SLACKRELAY_AI_API_KEY"}
		}
	default:
		return &InvalidError{Setting: "SLACKRELAY_AI_PROVIDER", Reason: "must be one of bedrock, anthropic, openai"}
	}
	return nil
}
