package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultPort is the WebSocket port the extension connects to.
const DefaultPort = 19192

// NotifyMode selects where fallback notifications go.
type NotifyMode string

const (
	NotifyDesktop NotifyMode = "desktop"
	NotifyInbox   NotifyMode = "inbox"
	NotifyBoth    NotifyMode = "both"
)

// Config holds the daemon's own configuration. Settings (what the user
// configures in the extension's options page) live separately in a YAML
// file, see Settings.
type Config struct {
	Port         int
	DataDir      string
	SettingsPath string
	Notify       NotifyMode
}

// DBPath returns the sqlite database path inside the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "notebridge.db")
}

// Load reads an optional .env file and then the NOTEBRIDGE_* environment
// variables, falling back to defaults.
func Load() (Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("get home directory: %w", err)
	}

	cfg := Config{
		Port:         DefaultPort,
		DataDir:      filepath.Join(home, ".local", "share", "notebridge"),
		SettingsPath: filepath.Join(home, ".config", "notebridge", "settings.yaml"),
		Notify:       NotifyBoth,
	}

	if v := os.Getenv("NOTEBRIDGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid NOTEBRIDGE_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("NOTEBRIDGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("NOTEBRIDGE_SETTINGS"); v != "" {
		cfg.SettingsPath = v
	}
	if v := os.Getenv("NOTEBRIDGE_NOTIFY"); v != "" {
		mode := NotifyMode(v)
		switch mode {
		case NotifyDesktop, NotifyInbox, NotifyBoth:
			cfg.Notify = mode
		default:
			return Config{}, fmt.Errorf("invalid NOTEBRIDGE_NOTIFY %q (want desktop, inbox or both)", v)
		}
	}
	return cfg, nil
}
