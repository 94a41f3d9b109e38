package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/activityserve/activityserve/internal/domain"
)

func TestMemoryStoreGetAbsent(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "/missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	doc := Document{"id": "/u/alice", "type": "Person"}

	if err := s.Put(context.Background(), "/u/alice", doc); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := s.Get(context.Background(), "/u/alice")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got["type"] != "Person" {
		t.Fatalf("unexpected document: %v", got)
	}

	// mutating the returned document must not leak into the store
	got["type"] = "Service"
	again, _ := s.Get(context.Background(), "/u/alice")
	if again["type"] != "Person" {
		t.Fatalf("store shares state with callers")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), "/u/alice", Document{"id": "/u/alice"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Delete(context.Background(), "/u/alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(context.Background(), "/u/alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestMemoryStoreConditionalCreate(t *testing.T) {
	s := NewMemoryStore()

	created, existing, err := s.ConditionalCreate(context.Background(), "/idents/abc", Document{"user": "/u/alice"})
	if err != nil {
		t.Fatalf("conditional create failed: %v", err)
	}
	if !created {
		t.Fatalf("expected first create to win")
	}
	if existing["user"] != "/u/alice" {
		t.Fatalf("expected returned document to be the created one")
	}

	created, existing, err = s.ConditionalCreate(context.Background(), "/idents/abc", Document{"user": "/u/bob"})
	if err != nil {
		t.Fatalf("second conditional create failed: %v", err)
	}
	if created {
		t.Fatalf("second create must lose")
	}
	if existing["user"] != "/u/alice" {
		t.Fatalf("loser must see the winner's document, got %v", existing)
	}
}

func TestMemoryStoreConditionalCreateConcurrent(t *testing.T) {
	s := NewMemoryStore()

	const n = 16
	wins := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, _, err := s.ConditionalCreate(context.Background(), "/idents/key", Document{"writer": fmt.Sprintf("%d", i)})
			if err != nil {
				t.Errorf("create %d failed: %v", i, err)
				return
			}
			wins[i] = created
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemoryStoreQueryByFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Put(ctx, "/u/alice", Document{"id": "/u/alice", "type": "Person", "name": "Alice"})
	_ = s.Put(ctx, "/u/bob", Document{"id": "/u/bob", "type": "Person", "name": "Bob"})
	_ = s.Put(ctx, "/u/alice/inbox", Document{"id": "/u/alice/inbox", "type": "OrderedCollection"})

	people, err := s.QueryByFields(ctx, map[string]any{"type": "Person"}, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}

	limited, err := s.QueryByFields(ctx, map[string]any{"type": "Person"}, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	alice, err := s.QueryByFields(ctx, map[string]any{"type": "Person", "name": "Alice"}, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(alice) != 1 || alice[0]["id"] != "/u/alice" {
		t.Fatalf("expected only alice, got %v", alice)
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Get(ctx, "/u/alice"); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected StorageError on cancelled context, got %v", err)
	}
	if err := s.Put(ctx, "/u/alice", Document{}); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected StorageError on cancelled context, got %v", err)
	}
}
