// ABOUTME: Per-user CLI settings persisted as TOML under the config dir.
// ABOUTME: Remembers the model override and the last open conversation.

package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// userSettings are CLI preferences that survive restarts. They layer
// on top of the YAML config: a non-empty Model here wins.
type userSettings struct {
	Model            string `toml:"model,omitempty"`
	NoColor          bool   `toml:"no_color,omitempty"`
	LastConversation string `toml:"last_conversation,omitempty"`
}

// settingsPath returns the TOML settings location, or empty when no
// config dir can be determined.
func settingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "atelier", "settings.toml")
}

// loadSettings reads the settings file. A missing or unreadable file
// yields zero settings; the CLI works without them.
func loadSettings(path string) userSettings {
	var s userSettings
	if path == "" {
		return s
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return userSettings{}
	}
	return s
}

// saveSettings writes the settings file, creating the directory as
// needed. Failures are ignored; settings are a convenience.
func saveSettings(path string, s userSettings) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_ = toml.NewEncoder(f).Encode(s)
}
