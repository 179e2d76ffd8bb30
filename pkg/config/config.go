// Package config loads the process configuration from a JSON or YAML
// file. Every knob has a default, so a minimal config only needs one
// enabled provider.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `json:"app" yaml:"app"`
	Server     ServerConfig              `json:"server" yaml:"server"`
	Providers  map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Engine     EngineConfig              `json:"engine" yaml:"engine"`
	Checkpoint CheckpointConfig          `json:"checkpoint" yaml:"checkpoint"`
	Policy     PolicyConfig              `json:"policy" yaml:"policy"`
	Telegram   TelegramConfig            `json:"telegram" yaml:"telegram"`
	Logging    LoggingConfig             `json:"logging" yaml:"logging"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace" yaml:"workspace"`
	Prompts   string `json:"prompts" yaml:"prompts"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// ProviderConfig names one LLM endpoint. Role selects what it is used
// for: "planner" (planning and summarization), "executor" (step
// execution), or empty for both.
type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// EngineConfig holds the step execution budgets.
type EngineConfig struct {
	MaxToolCalls       int `json:"max_tool_calls" yaml:"max_tool_calls"`
	StepTimeoutSeconds int `json:"step_timeout_seconds" yaml:"step_timeout_seconds"`
	MinOutputChars     int `json:"min_output_chars" yaml:"min_output_chars"`
}

// CheckpointConfig selects the session store. Driver is "sqlite" or
// "memory".
type CheckpointConfig struct {
	Driver         string `json:"driver" yaml:"driver"`
	Path           string `json:"path" yaml:"path"`
	RetentionHours int    `json:"retention_hours" yaml:"retention_hours"`
	SweepMinutes   int    `json:"sweep_minutes" yaml:"sweep_minutes"`
}

// PolicyConfig carries the tool governance deny lists.
type PolicyConfig struct {
	DenyTools     []string `json:"deny_tools" yaml:"deny_tools"`
	DenyArguments []string `json:"deny_arguments" yaml:"deny_arguments"`
}

type TelegramConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type LoggingConfig struct {
	EventsFile string `json:"events_file" yaml:"events_file"`
}

// LoadConfig reads and decodes the file at path. The format is chosen
// by extension: .yaml/.yml is YAML, anything else is JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "xAgentic"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "./workspace"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Engine.MaxToolCalls == 0 {
		c.Engine.MaxToolCalls = 15
	}
	if c.Engine.StepTimeoutSeconds == 0 {
		c.Engine.StepTimeoutSeconds = 60
	}
	if c.Engine.MinOutputChars == 0 {
		c.Engine.MinOutputChars = 10
	}
	if c.Checkpoint.Driver == "" {
		c.Checkpoint.Driver = "sqlite"
	}
	if c.Checkpoint.Path == "" {
		c.Checkpoint.Path = "./data/sessions.db"
	}
	if c.Checkpoint.RetentionHours == 0 {
		c.Checkpoint.RetentionHours = 72
	}
	if c.Checkpoint.SweepMinutes == 0 {
		c.Checkpoint.SweepMinutes = 30
	}
	if c.Logging.EventsFile == "" {
		c.Logging.EventsFile = filepath.Join("logs", "events.jsonl")
	}
}

// StepTimeout returns the configured step budget as a duration.
func (c *EngineConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSeconds) * time.Second
}

// ProviderForRole returns the enabled provider serving the given role,
// preferring an exact role match over a role-less provider. Candidates
// are scanned in name order so the same config always resolves the same
// models.
func (c *Config) ProviderForRole(role string) (string, ProviderConfig, bool) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var fallbackName string
	var fallback ProviderConfig
	found := false
	for _, name := range names {
		p := c.Providers[name]
		if !p.Enabled {
			continue
		}
		if p.Role == role {
			return name, p, true
		}
		if p.Role == "" && !found {
			fallbackName, fallback, found = name, p, true
		}
	}
	return fallbackName, fallback, found
}
