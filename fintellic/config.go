package fintellic

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	ApiUrl           string
	LiveUrl          string
	PageSize         int
	SearchDebounce   time.Duration
	ReconnectTimeout time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
}

func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		ApiUrl:           "https://api.fintellic.com",
		LiveUrl:          "wss://live.fintellic.com",
		PageSize:         20,
		SearchDebounce:   300 * time.Millisecond,
		ReconnectTimeout: 5 * time.Second,
		PingTimeout:      15 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      30 * time.Second,
	}
}

// file shape for the operator cli config
type clientSettingsFile struct {
	ApiUrl           string `yaml:"api_url"`
	LiveUrl          string `yaml:"live_url"`
	PageSize         int    `yaml:"page_size"`
	SearchDebounceMs int    `yaml:"search_debounce_ms"`
}

// LoadClientSettings reads a yaml settings file and overlays it on the
// defaults. missing fields keep their default values.
func LoadClientSettings(path string) (*ClientSettings, error) {
	settings := DefaultClientSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var file clientSettingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	if file.ApiUrl != "" {
		settings.ApiUrl = file.ApiUrl
	}
	if file.LiveUrl != "" {
		settings.LiveUrl = file.LiveUrl
	}
	if 0 < file.PageSize {
		settings.PageSize = file.PageSize
	}
	if 0 < file.SearchDebounceMs {
		settings.SearchDebounce = time.Duration(file.SearchDebounceMs) * time.Millisecond
	}

	return settings, nil
}

// ConfigDir returns the XDG config directory for fintellic.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "fintellic")
}

// DataDir returns the XDG data directory for fintellic.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "fintellic")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/fintellic/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	candidates := []string{
		filepath.Join(ConfigDir(), "config.yaml"),
		"config.yaml",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
