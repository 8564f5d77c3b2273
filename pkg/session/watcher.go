package session

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when a Watcher is created with a zero debounce.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a Holder when one of its table sources changes. Bursts
// of file events within the debounce window cause a single reload.
type Watcher struct {
	holder   *Holder
	debounce time.Duration
	logger   *slog.Logger

	// OnReload, when set, is called after every successful reload.
	OnReload func(*Session)
}

// NewWatcher creates a watcher for the holder's sources.
func NewWatcher(holder *Holder, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{holder: holder, debounce: debounce, logger: logger}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, dir := range w.directories() {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", "path", dir, "error", err)
			continue
		}
		w.logger.Debug("Watching directory", "path", dir)
	}

	w.logger.Info("Table watcher started",
		"sources", w.holder.Sources(),
		"debounce", w.debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && w.recursive() {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fsw.Add(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Table change detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-fire:
			fire = nil
			s, err := w.holder.Reload(ctx)
			if err != nil {
				continue
			}
			if w.OnReload != nil {
				w.OnReload(s)
			}
		}
	}
}

// directories lists the directories holding the sources: the parent of each
// literal path and the base of each glob, walked recursively for "**".
func (w *Watcher) directories() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range w.holder.Sources() {
		if !isGlob(pattern) {
			add(filepath.Dir(pattern))
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		if !strings.Contains(pattern, "**") {
			add(base)
			continue
		}
		_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != base && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				add(path)
			}
			return nil
		})
	}
	return dirs
}

func (w *Watcher) recursive() bool {
	for _, pattern := range w.holder.Sources() {
		if strings.Contains(pattern, "**") {
			return true
		}
	}
	return false
}

// relevant reports whether an event touches a file named by the sources.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	for _, pattern := range w.holder.Sources() {
		if !isGlob(pattern) {
			if filepath.Clean(pattern) == name {
				return true
			}
			continue
		}
		if ok, _ := doublestar.PathMatch(pattern, name); ok {
			return true
		}
	}
	return false
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
