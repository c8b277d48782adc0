package kv

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	file, err := OpenFile(filepath.Join(t.TempDir(), "store.json"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	bdg, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { bdg.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"badger": bdg,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))
			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"a":1}`, string(v))

			require.NoError(t, s.Remove(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			// removing an absent key is not an error
			require.NoError(t, s.Remove(ctx, "k"))
		})
	}
}

func TestStoreWatchReportsOldAndNew(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			stop := s.Watch(rec.record)

			require.NoError(t, s.Set(ctx, "k", []byte(`1`)))
			require.NoError(t, s.Set(ctx, "k", []byte(`2`)))
			require.NoError(t, s.Remove(ctx, "k"))
			stop()
			require.NoError(t, s.Set(ctx, "k", []byte(`3`)))

			local := filterKey(rec.snapshot(), "k")
			require.Len(t, local, 3)
			assert.Nil(t, local[0].Old)
			assert.Equal(t, "1", string(local[0].New))
			assert.Equal(t, "1", string(local[1].Old))
			assert.Equal(t, "2", string(local[1].New))
			assert.Equal(t, "2", string(local[2].Old))
			assert.Nil(t, local[2].New)
		})
	}
}

func TestFileStoreSeesExternalWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	writer, err := OpenFile(path, nil)
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.Set(ctx, "reminderData", []byte(`{}`)))

	reader, err := OpenFile(path, nil)
	require.NoError(t, err)
	defer reader.Close()

	rec := &recorder{}
	defer reader.Watch(rec.record)()

	require.NoError(t, writer.Set(ctx, "reminderData", []byte(`{"rfe":null}`)))

	require.Eventually(t, func() bool {
		return len(filterKey(rec.snapshot(), "reminderData")) > 0
	}, 5*time.Second, 20*time.Millisecond)

	c := filterKey(rec.snapshot(), "reminderData")[0]
	assert.Equal(t, `{}`, string(c.Old))
	assert.JSONEq(t, `{"rfe":null}`, string(c.New))
}

func TestFileStoreRejectsNonJSON(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "store.json"), nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.Set(context.Background(), "k", []byte("not json"))
	assert.Error(t, err)
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	_, err := OpenFile(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse store")
}

func TestFileStoreReplacesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := OpenFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", []byte(`1`)))
	require.NoError(t, s.Set(ctx, "b", []byte(`{"x":"<y>"}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "store.json", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":{"x":"<y>"}}`, string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps fresh store", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, EnsureSchema(ctx, s))
		var v string
		ok, err := GetJSON(ctx, s, SchemaKey, &v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, SchemaVersion, v)
	})

	t.Run("accepts same major", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, SetJSON(ctx, s, SchemaKey, "1.4.2"))
		assert.NoError(t, EnsureSchema(ctx, s))
	})

	t.Run("refuses newer major", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, SetJSON(ctx, s, SchemaKey, "2.0.0"))
		err := EnsureSchema(ctx, s)
		assert.ErrorIs(t, err, ErrIncompatibleSchema)
	})

	t.Run("refuses garbage", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, SetJSON(ctx, s, SchemaKey, "banana"))
		assert.ErrorIs(t, EnsureSchema(ctx, s), ErrIncompatibleSchema)
	})
}

func filterKey(changes []Change, key string) []Change {
	var out []Change
	for _, c := range changes {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}
