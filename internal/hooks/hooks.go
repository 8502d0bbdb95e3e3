// Package hooks runs external programs in response to session events.
// Operators drop a subdirectory with a hook.json manifest into the hooks
// directory, and the daemon invokes the executable with the event JSON on
// stdin whenever a subscribed event fires.
package hooks

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// Manifest describes a hook's metadata and the event types it subscribes
// to. An empty Events list subscribes to everything.
type Manifest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribed reports whether the hook wants the given event type.
func (h *Hook) Subscribed(eventType string) bool {
	if len(h.Manifest.Events) == 0 {
		return true
	}
	for _, ev := range h.Manifest.Events {
		if ev == eventType {
			return true
		}
	}
	return false
}

// Manager manages hook discovery and access.
type Manager struct {
	hookDir string
	mu      sync.RWMutex
	hooks   map[string]*Hook
}

// NewManager creates a Manager over the given hooks directory.
func NewManager(hookDir string) *Manager {
	return &Manager{
		hookDir: hookDir,
		hooks:   make(map[string]*Hook),
	}
}

// Discover scans the hooks directory for hook.json manifests. Each
// subdirectory is expected to be one hook. A missing directory is not an
// error; it simply means no hooks are installed.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[string]*Hook)

	info, err := os.Stat(m.hookDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.hookDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(m.hookDir, entry.Name())
		manifestPath := filepath.Join(hookPath, "hook.json")

		manifestData, err := os.ReadFile(manifestPath)
		if err != nil {
			continue // no manifest or unreadable, skip
		}

		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			continue
		}

		m.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	return nil
}

// Get returns a hook by name, or ErrHookNotFound.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hook, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return hook, nil
}

// List returns all discovered hooks.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, hook := range m.hooks {
		hooks = append(hooks, hook)
	}
	return hooks
}
