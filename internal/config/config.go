// Package config reads and writes the notes client configuration file.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/mrshanahan/notetaker/internal/utils"
)

var (
	DefaultServerURL string = "http://localhost:3333"
	FileName         string = "client.yml"
)

// Config is the client's view of where the gateway lives and who it is
// talking to it as.
type Config struct {
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token,omitempty"`
	User      string `yaml:"user,omitempty"`
}

// DefaultPath is ~/.notes/client.yml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".notes", FileName)
}

// Load reads the file at path and applies NOTES_SERVER_URL, NOTES_TOKEN and
// NOTES_USER on top. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	cfg.ServerURL = utils.Getenv("NOTES_SERVER_URL", cfg.ServerURL)
	cfg.Token = utils.Getenv("NOTES_TOKEN", cfg.Token)
	cfg.User = utils.Getenv("NOTES_USER", cfg.User)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read parses the file at path without looking at the environment.
func Read(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ServerURL = utils.Coalesce(cfg.ServerURL, DefaultServerURL)
	return cfg, nil
}

// Save writes the config to path, creating its directory. The file holds a
// token so it is only readable by its owner.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url %q: %w", c.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server_url %q: scheme must be http or https", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server_url %q: missing host", c.ServerURL)
	}
	return nil
}

// SameIdentity reports whether both configs talk to the same gateway as the
// same user.
func (c *Config) SameIdentity(other *Config) bool {
	return c.ServerURL == other.ServerURL && c.Token == other.Token && c.User == other.User
}

// Watch calls onChange with the reloaded config whenever the file at path is
// written, created or replaced, until ctx ends. The parent directory is
// watched since editors commonly save by renaming over the original.
// Unreadable intermediate states are logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("ignoring unreadable config change", "path", path, "err", err)
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "path", path, "err", err)
			}
		}
	}()
	return nil
}
