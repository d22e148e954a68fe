package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the client settings read from config.toml.
type Config struct {
	APIURL            string
	DefaultPath       string
	DialogDebounce    time.Duration
	UpdateCoalesce    time.Duration
	ReconnectUpdates  bool
	RequestsPerSecond float64
	LogFile           string
}

const (
	defaultConfigPath     = "~/.config/storyboard/config.toml"
	defaultLogFile        = "~/.local/state/storyboard/storyboard.log"
	defaultAPIURL         = "127.0.0.1:8080"
	defaultDialogDebounce = 1000 * time.Millisecond
	defaultUpdateCoalesce = 100 * time.Millisecond
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:         defaultAPIURL,
		DialogDebounce: defaultDialogDebounce,
		UpdateCoalesce: defaultUpdateCoalesce,
		LogFile:        mustExpand(defaultLogFile),
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL            string  `toml:"api_url"`
		DefaultPath       string  `toml:"default_path"`
		DialogDebounceMS  int     `toml:"dialog_debounce_ms"`
		UpdateCoalesceMS  int     `toml:"update_coalesce_ms"`
		ReconnectUpdates  bool    `toml:"reconnect_updates"`
		RequestsPerSecond float64 `toml:"requests_per_second"`
		LogFile           string  `toml:"log_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	cfg.DefaultPath = strings.Trim(strings.TrimSpace(raw.DefaultPath), "/")
	if raw.DialogDebounceMS > 0 {
		cfg.DialogDebounce = time.Duration(raw.DialogDebounceMS) * time.Millisecond
	}
	if raw.UpdateCoalesceMS > 0 {
		cfg.UpdateCoalesce = time.Duration(raw.UpdateCoalesceMS) * time.Millisecond
	}
	cfg.ReconnectUpdates = raw.ReconnectUpdates
	if raw.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = raw.RequestsPerSecond
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
