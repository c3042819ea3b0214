package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the configuration whenever one of the layered files changes
// until ctx is done or Close is called. Editors often write through a
// rename, so the parent directories are watched rather than the files.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	files := make(map[string]struct{})
	watched := make(map[string]struct{})
	for _, l := range m.layers() {
		path := filepath.Clean(l.path)
		files[path] = struct{}{}

		dir := filepath.Dir(path)
		if _, ok := watched[dir]; ok {
			continue
		}
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if addErr := watcher.Add(dir); addErr != nil {
			m.logger.Warn("config watch skipped directory", "dir", dir, "error", addErr)
			continue
		}
		watched[dir] = struct{}{}
	}

	go m.watchLoop(ctx, watcher, files)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, files map[string]struct{}) {
	defer watcher.Close()

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopWatch:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, tracked := files[filepath.Clean(event.Name)]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(DefaultDebounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			if err := m.Reload(); err != nil {
				m.logger.Warn("config reload failed, keeping previous config", "error", err)
				continue
			}
			m.logger.Info("config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}
