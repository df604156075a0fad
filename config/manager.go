package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Settings holds the persisted client configuration.
type Settings struct {
	BackendURL       string `json:"backendUrl"`
	Token            string `json:"token,omitempty"`
	CachePath        string `json:"cachePath"`
	CacheTTLHours    int    `json:"cacheTtlHours"`
	LogFile          string `json:"logFile,omitempty"`
	SearchDebounceMs int    `json:"searchDebounceMs"`
}

// DefaultSettings returns the configuration used before the user saves one.
func DefaultSettings() Settings {
	return Settings{
		BackendURL:       "http://localhost:8080",
		CachePath:        "watchdeck.db",
		CacheTTLHours:    24,
		SearchDebounceMs: 250,
	}
}

// Manager loads and saves the JSON settings file.
type Manager struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewManager creates a manager backed by the OS filesystem.
func NewManager(path string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), path)
}

// NewManagerWithFs creates a manager on the given filesystem. Tests use an
// in-memory fs.
func NewManagerWithFs(fs afero.Fs, path string) *Manager {
	return &Manager{fs: fs, path: path}
}

// Load reads the settings file. A missing file yields the defaults without
// error so first runs work out of the box.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := afero.Exists(m.fs, m.path)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("stat settings: %w", err)
	}
	if !exists {
		return DefaultSettings(), nil
	}

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings: %w", err)
	}
	if settings.CacheTTLHours <= 0 {
		settings.CacheTTLHours = DefaultSettings().CacheTTLHours
	}
	return settings, nil
}

// Save writes the settings file, creating parent directories as needed.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.path)
	if dir != "" && dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := afero.WriteFile(m.fs, m.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
