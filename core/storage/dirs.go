// Package storage provides platform-native directory resolution with XDG support.
package storage

import (
	"os"
	"path/filepath"
)

const AppName = "navia"

// Dirs provides platform-native directory resolution with XDG support.
type Dirs struct {
	Config string // User configuration (config.yaml)
	Data   string // Persistent data (conversation database, knowledge index)
	Cache  string // Regenerable cache
	State  string // Runtime state (logs)
}

// ProjectDirs returns project-local directories.
type ProjectDirs struct {
	Root   string // .navia/
	Config string // .navia/config.yaml (committed)
	Local  string // .navia/local/ (gitignored)
}

// ResolveDirs returns platform-appropriate directories. XDG variables are
// read on every call.
func ResolveDirs() (*Dirs, error) {
	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", platformConfigDefault()),
		Data:   resolveDir("XDG_DATA_HOME", platformDataDefault()),
		Cache:  resolveDir("XDG_CACHE_HOME", platformCacheDefault()),
		State:  resolveDir("XDG_STATE_HOME", platformStateDefault()),
	}, nil
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, AppName)
	}
	return fallback
}

// ResolveProjectDirs returns project-local directories for the given project root.
func ResolveProjectDirs(projectRoot string) *ProjectDirs {
	root := filepath.Join(projectRoot, "."+AppName)
	return &ProjectDirs{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
		Local:  filepath.Join(root, "local"),
	}
}

// LocalConfig returns the gitignored override file path.
func (p *ProjectDirs) LocalConfig() string {
	return filepath.Join(p.Local, "config.yaml")
}

// EnsureDir creates a directory with the specified permissions if it doesn't exist.
// Uses 0700 for sensitive directories by default.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0700
	}
	return os.MkdirAll(path, perm)
}

// ConfigDir returns the config subdirectory path.
func (d *Dirs) ConfigDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Config}, subpath...)...)
}

// DataDir returns the data subdirectory path.
func (d *Dirs) DataDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Data}, subpath...)...)
}

// CacheDir returns the cache subdirectory path.
func (d *Dirs) CacheDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Cache}, subpath...)...)
}

// StateDir returns the state subdirectory path.
func (d *Dirs) StateDir(subpath ...string) string {
	return filepath.Join(append([]string{d.State}, subpath...)...)
}

// UserConfigFile returns the user-level config file path.
func (d *Dirs) UserConfigFile() string {
	return d.ConfigDir("config.yaml")
}

// ConversationDB returns the default SQLite conversation database path.
func (d *Dirs) ConversationDB() string {
	return d.DataDir("conversations.db")
}

// KnowledgeIndex returns the default Bleve knowledge index path.
func (d *Dirs) KnowledgeIndex() string {
	return d.DataDir("knowledge.bleve")
}

// LogDir returns the log directory.
func (d *Dirs) LogDir() string {
	return d.StateDir("logs")
}

// EnsureAll creates all standard directories with appropriate permissions.
func (d *Dirs) EnsureAll() error {
	if err := EnsureDir(d.Config, 0700); err != nil {
		return err
	}
	for _, dir := range []string{d.Data, d.Cache, d.State, d.LogDir()} {
		if err := EnsureDir(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
