package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/activityserve/activityserve/internal/bus"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/store"
)

// DeliveryWorker drains the bus queue and appends accepted activities to
// the inbox collections of local recipients. Remote fan-out belongs to an
// external consumer of the same queue.
type DeliveryWorker struct {
	bus   bus.DeliveryBus
	store store.ObjectStore
	idle  time.Duration
}

func NewDeliveryWorker(delivery bus.DeliveryBus, objects store.ObjectStore) *DeliveryWorker {
	return &DeliveryWorker{bus: delivery, store: objects, idle: 100 * time.Millisecond}
}

// Run processes the queue until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	log.Info().Msg("delivery worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("delivery worker stopped")
			return
		default:
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil {
			log.Error().Err(err).Msg("delivery worker error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if !processed {
			select {
			case <-ctx.Done():
			case <-time.After(w.idle):
			}
		}
	}
}

// ProcessNext pops one envelope and delivers it locally. Returns false when
// the queue was empty.
func (w *DeliveryWorker) ProcessNext(ctx context.Context) (bool, error) {
	envelope, ok, err := w.bus.Next(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := w.persist(ctx, envelope); err != nil {
		return true, err
	}

	for _, recipient := range envelope.Recipients() {
		recipient = domain.NormalizeID(recipient)
		if err := w.deliverLocal(ctx, recipient, envelope); err != nil {
			log.Warn().Err(err).
				Str("activity", envelope.ID()).
				Str("recipient", recipient).
				Msg("local delivery failed")
		}
	}
	return true, nil
}

// persist stores the activity document under its id and links it into the
// actor's outbox collection.
func (w *DeliveryWorker) persist(ctx context.Context, envelope domain.Envelope) error {
	id := envelope.ID()
	if err := w.store.Put(ctx, id, store.Document(envelope)); err != nil {
		return err
	}

	actor := domain.NormalizeID(domain.ExtractID(envelope.Actor()))
	if actor == "" {
		return nil
	}

	outboxKey := actor + domain.OutboxSuffix
	doc, err := w.store.Get(ctx, outboxKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	items, _ := doc["items"].([]any)
	doc["items"] = append(items, id)
	return w.store.Put(ctx, outboxKey, doc)
}

func (w *DeliveryWorker) deliverLocal(ctx context.Context, recipient string, envelope domain.Envelope) error {
	inboxKey := recipient + domain.InboxSuffix
	doc, err := w.store.Get(ctx, inboxKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// not a local actor
			return nil
		}
		return err
	}

	items, _ := doc["items"].([]any)
	items = append(items, envelope.ID())
	doc["items"] = items

	return w.store.Put(ctx, inboxKey, doc)
}
