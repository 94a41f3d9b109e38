// Package bus is the delivery-bus port: accepted activities are queued here
// and drained by the background worker. Fan-out to remote inboxes is the
// bus consumer's concern, not the gateway's.
package bus

import (
	"context"

	"github.com/activityserve/activityserve/internal/domain"
)

// DeliveryBus accepts validated envelopes for asynchronous delivery.
// Submit returns domain.SubmissionRejectedError when the bus declines the
// envelope and domain.StorageError when the queue itself is unreachable.
// Next pops the oldest queued envelope; ok=false means the queue was empty.
type DeliveryBus interface {
	Submit(ctx context.Context, envelope domain.Envelope) error
	Next(ctx context.Context) (envelope domain.Envelope, ok bool, err error)
}

func checkSubmittable(envelope domain.Envelope) error {
	if len(envelope) == 0 {
		return domain.SubmissionRejectedError{Reason: "empty envelope"}
	}
	if envelope.ID() == "" {
		return domain.SubmissionRejectedError{Reason: "envelope has no id"}
	}
	return nil
}
