package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for the badger backend.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger
}

// Badger is a Store on an embedded badger database. Badger holds an exclusive
// directory lock, so only one process can have the store open; the change
// feed therefore covers writes made through this handle only.
type Badger struct {
	db       *badger.DB
	watchers watchers
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens the badger backend described by cfg.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, found, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	var old []byte
	err := b.db.Update(func(txn *badger.Txn) error {
		prev, err := readTxn(txn, key)
		if err != nil {
			return err
		}
		old = prev
		return txn.Set([]byte(key), clone(value))
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	b.watchers.publish(Change{Key: key, Old: old, New: clone(value)})
	return nil
}

func (b *Badger) Remove(_ context.Context, key string) error {
	var old []byte
	err := b.db.Update(func(txn *badger.Txn) error {
		prev, err := readTxn(txn, key)
		if err != nil || prev == nil {
			return err
		}
		old = prev
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	if old != nil {
		b.watchers.publish(Change{Key: key, Old: old})
	}
	return nil
}

func (b *Badger) Watch(fn func(Change)) func() {
	return b.watchers.add(fn)
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func readTxn(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
