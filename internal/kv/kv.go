// Package kv is the persistent key-value store the rest of casetrack builds on.
//
// A Store maps string keys to opaque byte values (JSON documents in practice).
// Every call is a whole-record read or write; there is no cross-call isolation,
// so two read-modify-write sequences racing on the same key can lose an update.
// Stores publish a Change for every mutation they observe to Watch subscribers.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Change describes one mutation of a key. A nil Old or New means the key was absent.
type Change struct {
	Key string
	Old []byte
	New []byte
}

// Store is the opaque key-value collaborator.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Watch registers fn for every subsequent Change. The returned func unregisters it.
	Watch(fn func(Change)) (stop func())
	Close() error
}

// GetJSON decodes the value stored at key into v. It reports false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// SchemaKey holds the semantic version of the layout written by this build.
const SchemaKey = "schemaVersion"

// SchemaVersion is the layout version this build writes.
const SchemaVersion = "1.0.0"

// ErrIncompatibleSchema is returned when the store was written by an incompatible build.
var ErrIncompatibleSchema = errors.New("incompatible store schema")

// EnsureSchema stamps a fresh store with SchemaVersion and refuses stores whose
// recorded version is outside the same major line. Nothing is migrated.
func EnsureSchema(ctx context.Context, s Store) error {
	raw, ok, err := s.Get(ctx, SchemaKey)
	if err != nil {
		return err
	}
	if !ok {
		return SetJSON(ctx, s, SchemaKey, SchemaVersion)
	}

	var recorded string
	if err := json.Unmarshal(raw, &recorded); err != nil {
		return fmt.Errorf("%w: unreadable version %q", ErrIncompatibleSchema, raw)
	}
	v, err := semver.NewVersion(recorded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleSchema, err)
	}
	current := semver.MustParse(SchemaVersion)
	c, err := semver.NewConstraint(fmt.Sprintf("^%d", current.Major()))
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: store is %s, this build reads %s", ErrIncompatibleSchema, v, c)
	}
	return nil
}

// watchers is the subscriber registry shared by the backends.
type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (w *watchers) add(fn func(Change)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(Change))
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) publish(c Change) {
	if bytes.Equal(c.Old, c.New) && (c.Old == nil) == (c.New == nil) {
		return
	}
	w.mu.Lock()
	fns := make([]func(Change), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
