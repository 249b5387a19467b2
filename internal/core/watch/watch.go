// Package watch triggers rule reloads when tag or rule files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces editor save bursts into one reload.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc performs one reload. Errors are logged; watching continues.
type ReloadFunc func(ctx context.Context) error

// Watcher observes one directory for changes to files matching patterns.
type Watcher struct {
	dir      string
	patterns []string
	debounce time.Duration
	reload   ReloadFunc
	fsw      *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New starts watching dir. Close releases the underlying watch if Run is
// never called.
func New(dir string, patterns []string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	if reload == nil {
		return nil, fmt.Errorf("reload cannot be nil")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:      dir,
		patterns: patterns,
		debounce: DefaultDebounce,
		reload:   reload,
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// matches reports whether name is a tag or rule file.
func (w *Watcher) matches(name string) bool {
	base := filepath.Base(name)
	for _, p := range w.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Run dispatches debounced reloads until ctx is cancelled, then closes
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	// fire is nil while no reload is pending
	var fire <-chan time.Time

	log.Info().Str("dir", w.dir).Strs("patterns", w.patterns).Msg("Watching rule sources")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.matches(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Rule source changed")
			fire = time.After(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", w.dir).Msg("Watcher error")

		case <-fire:
			fire = nil
			if err := w.reload(ctx); err != nil {
				log.Warn().Err(err).Msg("Reload after file change failed, keeping previous rule set")
			}
		}
	}
}
