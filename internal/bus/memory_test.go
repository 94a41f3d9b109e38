package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/activityserve/activityserve/internal/domain"
)

func TestMemoryBusFIFO(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		envelope := domain.Envelope{"id": fmt.Sprintf("/u/alice/activities/%d", i), "type": "Create"}
		if err := b.Submit(ctx, envelope); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}
	if b.Pending() != 3 {
		t.Fatalf("expected 3 pending, got %d", b.Pending())
	}

	for i := 0; i < 3; i++ {
		envelope, ok, err := b.Next(ctx)
		if err != nil || !ok {
			t.Fatalf("next %d: ok=%v err=%v", i, ok, err)
		}
		want := fmt.Sprintf("/u/alice/activities/%d", i)
		if envelope.ID() != want {
			t.Fatalf("expected %s, got %s", want, envelope.ID())
		}
	}

	if _, ok, err := b.Next(ctx); ok || err != nil {
		t.Fatalf("drained queue must report empty, ok=%v err=%v", ok, err)
	}
}

func TestMemoryBusRejectsUnsubmittable(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	if err := b.Submit(ctx, domain.Envelope{}); !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("expected rejection of empty envelope, got %v", err)
	}
	if err := b.Submit(ctx, domain.Envelope{"type": "Create"}); !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("expected rejection of id-less envelope, got %v", err)
	}
	if b.Pending() != 0 {
		t.Fatalf("rejected envelopes must not be queued")
	}
}

func TestMemoryBusCopiesOnSubmit(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	envelope := domain.Envelope{"id": "/u/alice/activities/1", "type": "Create"}
	if err := b.Submit(ctx, envelope); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	envelope["type"] = "Delete"

	queued, ok, err := b.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	if queued["type"] != "Create" {
		t.Fatalf("queue shares state with the submitter: %v", queued)
	}
}

func TestMemoryBusCancelledContext(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Submit(ctx, domain.Envelope{"id": "/x"}); err == nil {
		t.Fatalf("expected submit on cancelled context to fail")
	}
	if _, _, err := b.Next(ctx); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected StorageError from next on cancelled context, got %v", err)
	}
}
