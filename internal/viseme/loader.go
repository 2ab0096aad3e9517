package viseme

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// LoadMap reads a phoneme map from a JSON file. The file format matches
// the TTS backend's /phoneme-map payload: a flat symbol-to-category
// object, optionally wrapped with count/neutral/tag fields.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read viseme map %s: %w", path, err)
	}
	return ParseMap(data)
}

// ParseMap decodes a map from JSON. A bare {"AH":0,...} object is accepted
// and filled in with the default count, neutral category, and shape tags.
func ParseMap(data []byte) (*Map, error) {
	var full Map
	if err := json.Unmarshal(data, &full); err == nil && len(full.Symbols) > 0 {
		if full.Count == 0 {
			full.Count = DefaultCount
		}
		if len(full.OpenTags) == 0 && len(full.RoundTags) == 0 {
			def := DefaultMap()
			full.OpenTags = def.OpenTags
			full.RoundTags = def.RoundTags
		}
		if err := full.Validate(); err != nil {
			return nil, err
		}
		return &full, nil
	}

	var flat map[string]ID
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parse viseme map: %w", err)
	}

	m := DefaultMap()
	m.Symbols = flat
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Watcher hot-reloads a viseme map file on change. A reload that fails
// validation keeps the previous map.
type Watcher struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  *Map
	onReload func(*Map)

	done chan struct{}
}

// NewWatcher loads the map at path and begins watching it for changes.
func NewWatcher(path string, logger zerolog.Logger) (*Watcher, error) {
	m, err := LoadMap(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory; editors replace files rather than writing in place.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		logger:  logger.With().Str("component", "viseme-watcher").Logger(),
		watcher: fsw,
		current: m,
		done:    make(chan struct{}),
	}

	go w.watchLoop()

	return w, nil
}

// Current returns the most recently loaded valid map.
func (w *Watcher) Current() *Map {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// SetOnReload registers a callback invoked after a successful reload.
func (w *Watcher) SetOnReload(fn func(*Map)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Viseme map watcher error")
		}
	}
}

func (w *Watcher) reload() {
	m, err := LoadMap(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("Viseme map reload failed, keeping previous map")
		return
	}

	w.mu.Lock()
	w.current = m
	fn := w.onReload
	w.mu.Unlock()

	w.logger.Info().Str("path", w.path).Int("symbols", len(m.Symbols)).Msg("Viseme map reloaded")

	if fn != nil {
		fn(m)
	}
}
