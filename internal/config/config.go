package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models tasktalk.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret             string `yaml:"jwt_secret"`
		AllowLegacyUserHeader bool   `yaml:"allow_legacy_user_header"`
		DevTokenTTLMinutes    int    `yaml:"dev_token_ttl_minutes"`
	} `yaml:"auth"`
	Model struct {
		BaseURL        string `yaml:"base_url"`
		Name           string `yaml:"name"`
		APIKeyEnv      string `yaml:"api_key_env"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"model"`
	Chat struct {
		HistoryLimit    int    `yaml:"history_limit"`
		DefaultLanguage string `yaml:"default_language"`
	} `yaml:"chat"`
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("config.model.name is required")
	}
	if c.Model.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.model.timeout_seconds must be positive")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("config.chat.history_limit must be positive")
	}
	switch c.Chat.DefaultLanguage {
	case "en", "ur":
	default:
		return fmt.Errorf("config.chat.default_language must be en or ur")
	}
	return nil
}

// ModelTimeout returns the bounded timeout for classifier calls.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// ModelAPIKey resolves the model-service API key from the environment.
func (c *Config) ModelAPIKey() string {
	env := c.Model.APIKeyEnv
	if env == "" {
		env = "TASKTALK_MODEL_API_KEY"
	}
	return os.Getenv(env)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "tasktalk.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  jwt_secret: ""
  allow_legacy_user_header: false
  dev_token_ttl_minutes: 60

model:
  base_url: https://api.openai.com/v1
  name: gpt-4o-mini
  api_key_env: TASKTALK_MODEL_API_KEY
  timeout_seconds: 5

chat:
  history_limit: 10
  default_language: en
`
