package redisblob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"repairdesk/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REPAIRDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set REPAIRDESK_TEST_REDIS_ADDR to run redis integration test")
	}

	s := New(addr, os.Getenv("REPAIRDESK_TEST_REDIS_PASSWORD"), 0, fmt.Sprintf("repairdesk-test-%d:", time.Now().UnixNano()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() {
		for _, key := range store.AllKeys {
			_ = s.client.Del(context.Background(), s.prefix+key).Err()
		}
		_ = s.Close()
	})
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(context.Background(), store.KeyDrafts); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCommitsAllWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, []string{store.KeyTransactions, store.KeyLastTransactionID}, func(ctx context.Context, tx store.BlobStore) error {
		if err := tx.Put(ctx, store.KeyTransactions, []byte(`[{"id":1}]`)); err != nil {
			return err
		}
		return tx.Put(ctx, store.KeyLastTransactionID, []byte("1"))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	last, err := s.Get(ctx, store.KeyLastTransactionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(last) != "1" {
		t.Fatalf("expected 1, got %s", last)
	}
}

func TestUpdateDiscardsWritesOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, []string{store.KeyInventory}, func(ctx context.Context, tx store.BlobStore) error {
		_ = tx.Put(ctx, store.KeyInventory, []byte(`[]`))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := s.Get(ctx, store.KeyInventory); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected nothing written, got %v", err)
	}
}
