// Package config handles loading and saving retro configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/retro/config.yaml
//   - Data:    ~/.local/share/retro/ (retro.db, boards/*.yaml)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "retro"

// DefaultPollInterval is how often the collect phase refreshes all cards.
const DefaultPollInterval = 5 * time.Second

// BoardRef is a board registered under a short name.
type BoardRef struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// UserConfig identifies the local participant.
type UserConfig struct {
	ID          string `yaml:"id,omitempty"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// RedisConfig locates the broadcast server. An empty Addr disables
// broadcasting; boards then converge through polling alone.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	AnonymousByDefault bool `yaml:"anonymous_by_default,omitempty"`
	ShowNotes          bool `yaml:"show_notes,omitempty"` // Notes panel open at start
}

// Config is the top-level configuration for retro.
type Config struct {
	User         UserConfig    `yaml:"user,omitempty"`
	Redis        RedisConfig   `yaml:"redis,omitempty"`
	Database     string        `yaml:"database,omitempty"`
	BoardsDir    string        `yaml:"boards_dir,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	Boards       []BoardRef    `yaml:"boards,omitempty"`
	LastBoard    string        `yaml:"last_board,omitempty"`
	UI           UIConfig      `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	cfg := Config{PollInterval: DefaultPollInterval}
	if dir := DataDir(); dir != "" {
		cfg.Database = filepath.Join(dir, "retro.db")
		cfg.BoardsDir = filepath.Join(dir, "boards")
	}
	return cfg
}

// ConfigDir returns the XDG config directory for retro.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for retro.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	cfg.Database = expandHome(cfg.Database)
	cfg.BoardsDir = expandHome(cfg.BoardsDir)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindBoard returns the board registered under name, or nil.
func (c Config) FindBoard(name string) *BoardRef {
	for i := range c.Boards {
		if strings.EqualFold(c.Boards[i].Name, name) {
			return &c.Boards[i]
		}
	}
	return nil
}

// ResolveBoard maps a name or id to a board id. Unknown names are assumed
// to be ids already; an empty arg falls back to the last opened board.
func (c Config) ResolveBoard(arg string) string {
	if arg == "" {
		return c.LastBoard
	}
	if ref := c.FindBoard(arg); ref != nil {
		return ref.ID
	}
	return arg
}

// RegisterBoard adds or renames a board reference.
func (c *Config) RegisterBoard(name, id string) {
	for i := range c.Boards {
		if c.Boards[i].ID == id {
			c.Boards[i].Name = name
			return
		}
	}
	c.Boards = append(c.Boards, BoardRef{Name: name, ID: id})
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
