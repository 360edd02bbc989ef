package redisblob

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"repairdesk/backend/internal/store"
)

const maxWatchRetries = 5

// Store keeps each collection under "<prefix><key>". Update is an optimistic
// WATCH/MULTI transaction over the declared keys.
type Store struct {
	client *redis.Client
	prefix string
}

func New(addr string, password string, db int, prefix string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Store{client: client, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Update(ctx context.Context, keys []string, fn func(ctx context.Context, tx store.BlobStore) error) error {
	unique := store.UniqueKeys(keys)
	watched := make([]string, 0, len(unique))
	for _, key := range unique {
		watched = append(watched, s.prefix+key)
	}

	txf := func(rtx *redis.Tx) error {
		writes, err := store.Stage(ctx, unique, func(key string) ([]byte, bool, error) {
			val, err := rtx.Get(ctx, s.prefix+key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return val, true, nil
		}, fn)
		if err != nil {
			return err
		}
		if len(writes) == 0 {
			return nil
		}

		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range writes {
				pipe.Set(ctx, s.prefix+w.Key, w.Value, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %d attempts", store.ErrConflict, maxWatchRetries)
}
