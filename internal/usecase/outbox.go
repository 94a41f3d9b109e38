package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/activityserve/activityserve/internal/bus"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/store"
)

// SubmissionValidator checks an inbound activity envelope against the
// authenticated actor, fills in missing identifiers and timestamps and
// hands the result to the delivery bus. It never writes to the store.
type SubmissionValidator struct {
	store store.ObjectStore
	bus   bus.DeliveryBus
	now   func() time.Time
}

func NewSubmissionValidator(objects store.ObjectStore, delivery bus.DeliveryBus) *SubmissionValidator {
	return &SubmissionValidator{store: objects, bus: delivery, now: time.Now}
}

// ValidateAndSubmit runs the outbox pipeline in strict order: target actor
// must exist, the acting user must own the target outbox, the envelope
// actor must be or become the acting user, missing id and published fields
// are synthesized, and only then is the envelope submitted. The returned
// envelope is exactly what the bus accepted.
func (v *SubmissionValidator) ValidateAndSubmit(ctx context.Context, actingUser domain.User, targetActorID string, envelope domain.Envelope) (domain.Envelope, error) {
	ctx, span := tracer.Start(ctx, "Outbox.ValidateAndSubmit")
	defer span.End()

	target, err := v.resolveActor(ctx, targetActorID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !domain.SameID(actingUser.ID, target.ID) {
		err := domain.ForbiddenError{Reason: "you may only post to your own outbox"}
		span.RecordError(err)
		return nil, err
	}

	out := envelope.Clone()

	if _, present := out["actor"]; !present {
		out["actor"] = actingUser.ID
	} else if !domain.SameID(out["actor"], actingUser.ID) {
		err := domain.InvalidActivityError{Reason: "activity actor must match the authenticated user"}
		span.RecordError(err)
		return nil, err
	}

	if out.ID() == "" {
		out["id"] = actingUser.ID + "/activities/" + uuid.NewString()
	}

	if _, present := out["published"]; !present {
		out["published"] = v.now().UTC().Format(time.RFC3339)
	}

	if err := v.bus.Submit(ctx, out); err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrSubmissionRejected) || errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		return nil, domain.SubmissionRejectedError{Reason: err.Error()}
	}

	return out, nil
}

func (v *SubmissionValidator) resolveActor(ctx context.Context, actorID string) (domain.User, error) {
	doc, err := v.store.Get(ctx, domain.UserKey(domain.NormalizeID(actorID)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.NotFoundError{Resource: actorID}
		}
		return domain.User{}, err
	}

	var user domain.User
	if err := doc.Decode(&user); err != nil || user.ID == "" {
		return domain.User{}, domain.NotFoundError{Resource: actorID}
	}
	return user, nil
}
