package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2/maybe"
)

// File is a Store kept in a single JSON document on disk. Writes replace the
// document atomically, and an fsnotify watch on the parent directory turns
// writes made by other processes into Change events. Values must be JSON.
type File struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	snapshot map[string][]byte
	watchers watchers

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// OpenFile opens (or lazily creates) the store document at path.
func OpenFile(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	f := &File{path: path, logger: logger, done: make(chan struct{})}
	snap, err := f.load()
	if err != nil {
		return nil, err
	}
	f.snapshot = snap

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	f.fsw = fsw
	go f.watchLoop()

	return f, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return fmt.Errorf("value for %s is not a JSON document: %w", key, err)
	}
	return f.mutate(func(items map[string][]byte) {
		items[key] = compact.Bytes()
	})
}

func (f *File) Remove(_ context.Context, key string) error {
	return f.mutate(func(items map[string][]byte) {
		delete(items, key)
	})
}

func (f *File) Watch(fn func(Change)) func() {
	return f.watchers.add(fn)
}

// Close stops the directory watch. It is safe to call more than once.
func (f *File) Close() error {
	select {
	case <-f.done:
		return nil
	default:
		close(f.done)
	}
	return f.fsw.Close()
}

func (f *File) mutate(apply func(map[string][]byte)) error {
	f.mu.Lock()
	items, err := f.load()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	apply(items)
	if err := f.write(items); err != nil {
		f.mu.Unlock()
		return err
	}
	changes := f.advance(items)
	f.mu.Unlock()

	for _, c := range changes {
		f.watchers.publish(c)
	}
	return nil
}

// advance diffs items against the last published snapshot and makes items the
// new snapshot. Callers hold f.mu.
func (f *File) advance(items map[string][]byte) []Change {
	var changes []Change
	for k, v := range items {
		if old, ok := f.snapshot[k]; !ok || string(old) != string(v) {
			changes = append(changes, Change{Key: k, Old: clone(f.snapshot[k]), New: clone(v)})
		}
	}
	for k, old := range f.snapshot {
		if _, ok := items[k]; !ok {
			changes = append(changes, Change{Key: k, Old: clone(old)})
		}
	}
	f.snapshot = items
	return changes
}

func (f *File) load() (map[string][]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string][]byte), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return make(map[string][]byte), nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", f.path, err)
	}
	items := make(map[string][]byte, len(doc))
	for k, v := range doc {
		items[k] = []byte(v)
	}
	return items, nil
}

func (f *File) write(items map[string][]byte) error {
	doc := make(map[string]json.RawMessage, len(items))
	for k, v := range items {
		doc[k] = v
	}
	// Values are stored byte-for-byte so reloads diff cleanly against the snapshot.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if err := maybe.WriteFile(f.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

func (f *File) watchLoop() {
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			f.reload()
		case err, ok := <-f.fsw.Errors:
			if !ok {
				return
			}
			f.logger.Warn("store watch error", slog.String("error", err.Error()))
		}
	}
}

func (f *File) reload() {
	f.mu.Lock()
	items, err := f.load()
	if err != nil {
		f.mu.Unlock()
		// A half-visible write; the rename that completes it fires another event.
		f.logger.Debug("store reload skipped", slog.String("error", err.Error()))
		return
	}
	changes := f.advance(items)
	f.mu.Unlock()

	for _, c := range changes {
		f.watchers.publish(c)
	}
}
