package store

import (
	"context"
	"slices"
)

// Staged is the transaction view handed to BlobStore.Update callbacks. It
// serves reads from a snapshot of the declared keys and buffers writes until
// the backend commits them.
type Staged struct {
	declared map[string]struct{}
	values   map[string][]byte
	writes   map[string][]byte
}

// Stage loads keys through load (found=false for missing keys), runs fn on
// the staged view and returns the buffered writes in key order.
func Stage(
	ctx context.Context,
	keys []string,
	load func(key string) ([]byte, bool, error),
	fn func(ctx context.Context, tx BlobStore) error,
) ([]Write, error) {
	staged := &Staged{
		declared: make(map[string]struct{}, len(keys)),
		values:   make(map[string][]byte, len(keys)),
		writes:   make(map[string][]byte),
	}
	for _, key := range UniqueKeys(keys) {
		staged.declared[key] = struct{}{}
		value, found, err := load(key)
		if err != nil {
			return nil, err
		}
		if found {
			staged.values[key] = value
		}
	}

	if err := fn(ctx, staged); err != nil {
		return nil, err
	}
	return staged.Writes(), nil
}

type Write struct {
	Key   string
	Value []byte
}

func (s *Staged) Get(_ context.Context, key string) ([]byte, error) {
	if _, ok := s.declared[key]; !ok {
		return nil, ErrUndeclaredKey
	}
	if value, ok := s.writes[key]; ok {
		return slices.Clone(value), nil
	}
	value, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(value), nil
}

func (s *Staged) Put(_ context.Context, key string, value []byte) error {
	if _, ok := s.declared[key]; !ok {
		return ErrUndeclaredKey
	}
	s.writes[key] = slices.Clone(value)
	return nil
}

// Update on a staged view joins the enclosing transaction.
func (s *Staged) Update(ctx context.Context, keys []string, fn func(ctx context.Context, tx BlobStore) error) error {
	for _, key := range keys {
		if _, ok := s.declared[key]; !ok {
			return ErrUndeclaredKey
		}
	}
	return fn(ctx, s)
}

func (s *Staged) Writes() []Write {
	keys := make([]string, 0, len(s.writes))
	for key := range s.writes {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	writes := make([]Write, 0, len(keys))
	for _, key := range keys {
		writes = append(writes, Write{Key: key, Value: s.writes[key]})
	}
	return writes
}

// UniqueKeys returns keys sorted and deduplicated, the lock order every
// backend uses.
func UniqueKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
