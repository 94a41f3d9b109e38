package bus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/activityserve/activityserve/internal/domain"
)

// RedisBus queues envelopes on a redis list so multiple workers can share
// one delivery queue. Submit pushes to the head, Next pops from the tail;
// FIFO across the queue as a whole.
type RedisBus struct {
	client *redis.Client
	queue  string
}

func NewRedisBus(client *redis.Client, queue string) *RedisBus {
	return &RedisBus{client: client, queue: queue}
}

func (b *RedisBus) Submit(ctx context.Context, envelope domain.Envelope) error {
	if err := checkSubmittable(envelope); err != nil {
		return err
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return domain.SubmissionRejectedError{Reason: "envelope not serializable: " + err.Error()}
	}

	if err := b.client.LPush(ctx, b.queue, raw).Err(); err != nil {
		return domain.StorageError{Op: "bus submit", Err: err}
	}
	return nil
}

func (b *RedisBus) Next(ctx context.Context) (domain.Envelope, bool, error) {
	raw, err := b.client.RPop(ctx, b.queue).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, domain.StorageError{Op: "bus next", Err: err}
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false, domain.StorageError{Op: "bus next", Err: err}
	}
	return envelope, true, nil
}

var _ DeliveryBus = (*RedisBus)(nil)
