package reminder

import (
	"context"
	"fmt"

	"github.com/casetrack/cli/internal/kv"
)

// StorageKey is where the category map lives in the KV store.
const StorageKey = "reminderData"

// Store persists the reminder Set. Every operation reads the whole map,
// mutates it and writes it back.
type Store struct {
	kv kv.Store
}

// NewStore returns a reminder store over the given KV store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// GetAll returns every stored reminder.
func (s *Store) GetAll(ctx context.Context) (Set, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return Set{}, fmt.Errorf("read reminders: %w", err)
	}
	if !ok {
		return Set{}, nil
	}
	return DecodeSet(raw)
}

// Save files r under c, overwriting any existing reminder for c and leaving
// the other categories as they were.
func (s *Store) Save(ctx context.Context, c Category, r Reminder) error {
	return s.update(ctx, func(set *Set) { set.Put(c, r) })
}

// Delete removes the reminder for c. Deleting an absent reminder is a no-op.
func (s *Store) Delete(ctx context.Context, c Category) error {
	set, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	if _, ok := set.Get(c); !ok {
		return nil
	}
	set.Clear(c)
	return s.write(ctx, set)
}

// DeleteAll clears the whole map.
func (s *Store) DeleteAll(ctx context.Context) error {
	if err := s.kv.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, mutate func(*Set)) error {
	set, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	mutate(&set)
	return s.write(ctx, set)
}

func (s *Store) write(ctx context.Context, set Set) error {
	if err := kv.SetJSON(ctx, s.kv, StorageKey, set); err != nil {
		return fmt.Errorf("write reminders: %w", err)
	}
	return nil
}
