package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/activityserve/activityserve/internal/auth"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/store"
)

var tracer = otel.Tracer("usecase")

// IdentityResolver maps verified provider claims onto the local user,
// creating the user and identity records the first time a (sub, iss) pair
// is seen. It is the only component allowed to create User or Identity
// records.
type IdentityResolver struct {
	store store.ObjectStore
	now   func() time.Time
}

func NewIdentityResolver(objects store.ObjectStore) *IdentityResolver {
	return &IdentityResolver{store: objects, now: time.Now}
}

// ResolveOrCreate returns the user for the claims' identity key. On first
// sight the user document, its inbox/outbox collections and finally the
// identity record are written; the identity record is written last and via
// conditional create, so it only ever references a fully materialized user
// and at most one racing request wins the key. Losers read the winner's
// identity back and return that user.
func (r *IdentityResolver) ResolveOrCreate(ctx context.Context, claims domain.VerifiedClaims) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "Identity.ResolveOrCreate")
	defer span.End()

	key, err := auth.DeriveIdentityKey(claims)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}

	identityKey := domain.IdentityStorageKey(key)

	doc, err := r.store.Get(ctx, identityKey)
	if err == nil {
		var identity domain.Identity
		if decodeErr := doc.Decode(&identity); decodeErr == nil && identity.UserID != "" {
			user, userErr := r.getUser(ctx, identity.UserID)
			if userErr == nil {
				r.refreshIdentity(ctx, identityKey, identity, claims)
				return user, nil
			}
			if !errors.Is(userErr, domain.ErrNotFound) {
				span.RecordError(userErr)
				return domain.User{}, userErr
			}
		}
		// The identity points at a user that no longer resolves. Recreate
		// both and overwrite the stale reference.
		log.Warn().Str("identity", identityKey).Msg("repairing identity with missing user")
		return r.recreate(ctx, identityKey, key, claims)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return domain.User{}, err
	}

	user, err := r.createUser(ctx, claims)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}

	identity := r.newIdentity(key, user.ID, claims)
	identityDoc, err := store.FromStruct(identity)
	if err != nil {
		return domain.User{}, domain.StorageError{Op: "encode identity", Err: err}
	}

	created, existing, err := r.store.ConditionalCreate(ctx, identityKey, identityDoc)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}
	if created {
		return user, nil
	}

	// Lost the create race. The winner's identity record is authoritative;
	// compensate by removing the user this request wrote, then return the
	// winner's user.
	r.discardUser(ctx, user)

	var winner domain.Identity
	if err := existing.Decode(&winner); err != nil || winner.UserID == "" {
		return domain.User{}, domain.StorageError{Op: "decode winning identity", Err: err}
	}
	return r.getUser(ctx, winner.UserID)
}

func (r *IdentityResolver) getUser(ctx context.Context, userID string) (domain.User, error) {
	doc, err := r.store.Get(ctx, domain.UserKey(userID))
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	if err := doc.Decode(&user); err != nil {
		return domain.User{}, domain.StorageError{Op: "decode user", Err: err}
	}
	if user.ID == "" {
		return domain.User{}, domain.NotFoundError{Resource: userID}
	}
	return user, nil
}

// createUser persists a new user and its inbox/outbox collections. The user
// id embeds a freshly generated opaque key; inbox and outbox addresses are
// fixed suffixes of the id.
func (r *IdentityResolver) createUser(ctx context.Context, claims domain.VerifiedClaims) (domain.User, error) {
	userID := domain.UserKeyPrefix + xid.New().String()
	now := r.now().UTC().Format(time.RFC3339)

	user := domain.User{
		ID:        userID,
		Type:      "Person",
		Name:      claims.Name,
		Username:  claims.Name,
		Image:     claims.Picture,
		Inbox:     userID + domain.InboxSuffix,
		Outbox:    userID + domain.OutboxSuffix,
		Published: now,
	}

	userDoc, err := store.FromStruct(user)
	if err != nil {
		return domain.User{}, domain.StorageError{Op: "encode user", Err: err}
	}
	userDoc["@context"] = "https://www.w3.org/ns/activitystreams"

	if err := r.store.Put(ctx, domain.UserKey(userID), userDoc); err != nil {
		return domain.User{}, err
	}

	for _, collection := range []struct {
		key  string
		name string
	}{
		{user.Inbox, "Inbox"},
		{user.Outbox, "Outbox"},
	} {
		doc := store.Document{
			"@context":  "https://www.w3.org/ns/activitystreams",
			"id":        collection.key,
			"type":      "OrderedCollection",
			"name":      collection.name,
			"published": now,
			"items":     []any{},
		}
		if err := r.store.Put(ctx, collection.key, doc); err != nil {
			return domain.User{}, err
		}
	}

	return user, nil
}

func (r *IdentityResolver) newIdentity(key, userID string, claims domain.VerifiedClaims) domain.Identity {
	return domain.Identity{
		Key:       key,
		UserID:    userID,
		Claims:    claims,
		Name:      claims.Name,
		Image:     claims.Picture,
		Published: r.now().UTC().Format(time.RFC3339),
	}
}

// discardUser removes a user whose identity claim lost the create race.
// Best effort: a leftover document is unreachable (nothing references it),
// so cleanup failure is only logged.
func (r *IdentityResolver) discardUser(ctx context.Context, user domain.User) {
	for _, key := range []string{user.Inbox, user.Outbox, domain.UserKey(user.ID)} {
		if err := r.store.Delete(ctx, key); err != nil {
			log.Debug().Err(err).Str("user", user.ID).Msg("orphan user cleanup failed")
		}
	}
}

// recreate handles the repaired-inconsistency path: a fresh user is written
// and the identity record is overwritten to reference it.
func (r *IdentityResolver) recreate(ctx context.Context, identityKey, key string, claims domain.VerifiedClaims) (domain.User, error) {
	user, err := r.createUser(ctx, claims)
	if err != nil {
		return domain.User{}, err
	}

	identity := r.newIdentity(key, user.ID, claims)
	doc, err := store.FromStruct(identity)
	if err != nil {
		return domain.User{}, domain.StorageError{Op: "encode identity", Err: err}
	}
	if err := r.store.Put(ctx, identityKey, doc); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// refreshIdentity keeps display metadata current on the fast path. Best
// effort: a failed refresh never fails the login.
func (r *IdentityResolver) refreshIdentity(ctx context.Context, identityKey string, identity domain.Identity, claims domain.VerifiedClaims) {
	if identity.Name == claims.Name && identity.Image == claims.Picture {
		return
	}

	identity.Claims = claims
	identity.Name = claims.Name
	identity.Image = claims.Picture

	doc, err := store.FromStruct(identity)
	if err != nil {
		return
	}
	if err := r.store.Put(ctx, identityKey, doc); err != nil {
		log.Debug().Err(err).Str("identity", identityKey).Msg("identity metadata refresh failed")
	}
}
