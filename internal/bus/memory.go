package bus

import (
	"context"
	"sync"

	"github.com/activityserve/activityserve/internal/domain"
)

// MemoryBus queues envelopes in process. Used for tests and single-node
// deployments.
type MemoryBus struct {
	mu    sync.Mutex
	queue []domain.Envelope
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Submit(ctx context.Context, envelope domain.Envelope) error {
	if err := checkSubmittable(envelope); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.SubmissionRejectedError{Reason: err.Error()}
	}

	b.mu.Lock()
	b.queue = append(b.queue, envelope.Clone())
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) Next(ctx context.Context) (domain.Envelope, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, domain.StorageError{Op: "bus next", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil, false, nil
	}
	envelope := b.queue[0]
	b.queue = b.queue[1:]
	return envelope, true, nil
}

// Pending reports the queue depth; test helper.
func (b *MemoryBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

var _ DeliveryBus = (*MemoryBus)(nil)
