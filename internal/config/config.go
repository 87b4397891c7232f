package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models daybook.yml.
type Config struct {
	Remote struct {
		TasksURL       string `yaml:"tasks_url" json:"tasks_url"`
		VideosURL      string `yaml:"videos_url" json:"videos_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"remote" json:"remote"`
	Media struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"media" json:"media"`
	Reachability struct {
		ProbeURL        string `yaml:"probe_url" json:"probe_url"`
		IntervalSeconds int    `yaml:"interval_seconds" json:"interval_seconds"`
	} `yaml:"reachability" json:"reachability"`
	Downloads struct {
		Permission  string `yaml:"permission" json:"permission"`
		APILevel    int    `yaml:"api_level" json:"api_level"`
		OnCollision string `yaml:"on_collision" json:"on_collision"`
	} `yaml:"downloads" json:"downloads"`
	Server struct {
		Addr      string `yaml:"addr" json:"addr"`
		BasePath  string `yaml:"base_path" json:"base_path"`
		JWTSecret string `yaml:"jwt_secret" json:"-"`
		// CORSOrigins lists origins allowed to call the API from a browser.
		CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
	} `yaml:"server" json:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

// WebhookConfig forwards event log entries to an HTTP endpoint while serving.
type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" json:"-"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"remote.tasks_url":  c.Remote.TasksURL,
		"remote.videos_url": c.Remote.VideosURL,
	} {
		if raw == "" {
			return fmt.Errorf("config.%s is required", name)
		}
		if err := validURL(raw); err != nil {
			return fmt.Errorf("config.%s: %w", name, err)
		}
	}
	if c.Reachability.ProbeURL != "" {
		if err := validURL(c.Reachability.ProbeURL); err != nil {
			return fmt.Errorf("config.reachability.probe_url: %w", err)
		}
	}
	if c.Remote.TimeoutSeconds < 0 {
		return fmt.Errorf("config.remote.timeout_seconds must not be negative")
	}
	if c.Reachability.IntervalSeconds < 0 {
		return fmt.Errorf("config.reachability.interval_seconds must not be negative")
	}
	switch c.Downloads.Permission {
	case "allow", "deny":
	default:
		return fmt.Errorf("config.downloads.permission must be 'allow' or 'deny'")
	}
	switch c.Downloads.OnCollision {
	case "cancel", "replace":
	default:
		return fmt.Errorf("config.downloads.on_collision must be 'cancel' or 'replace'")
	}
	for i, hook := range c.Webhooks {
		if err := validURL(hook.URL); err != nil {
			return fmt.Errorf("config.webhooks[%d].url: %w", i, err)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Timeout is the remote request timeout; zero means the transport default.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func (c *Config) ProbeInterval() time.Duration {
	if c.Reachability.IntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Reachability.IntervalSeconds) * time.Second
}

// MediaDir resolves the media directory against the workspace state dir.
func (c *Config) MediaDir(stateDir string) string {
	if c.Media.Dir == "" {
		return filepath.Join(stateDir, "media")
	}
	if filepath.IsAbs(c.Media.Dir) {
		return c.Media.Dir
	}
	return filepath.Join(stateDir, c.Media.Dir)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "daybook.yml")
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses config over the defaults and validates it.
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

const defaultTemplate = `remote:
  tasks_url: https://jsonplaceholder.typicode.com/todos?_limit=20
  videos_url: https://gist.githubusercontent.com/poudyalanil/ca84582cbeb4fc123a13290a586da925/raw/14a27bd0bcd0cd323b35ad79cf3b493dddf6216b/videos.json
  timeout_seconds: 30

media:
  dir: media

reachability:
  probe_url: https://clients3.google.com/generate_204
  interval_seconds: 10

downloads:
  permission: allow
  api_level: 33
  on_collision: cancel

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
