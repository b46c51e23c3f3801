// Package profile resolves user profiles against the backing store with a
// two-tier cache in front: process memory first, the durable local store
// second. Missing profiles are created lazily from identity-provider
// metadata; creation races between concurrent logins are recovered by
// re-fetching the winning row.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/eventive/eventive"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const fetchTimeout = 10 * time.Second

type Resolver struct {
	Store   eventive.ProfileStore
	Memory  eventive.ProfileCache
	Durable eventive.ProfileCache

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time

	group singleflight.Group
}

func NewResolver(store eventive.ProfileStore, memory eventive.ProfileCache, durable eventive.ProfileCache) *Resolver {
	return &Resolver{
		Store:   store,
		Memory:  memory,
		Durable: durable,
		Now:     time.Now,
	}
}

// Resolve returns the profile for the given identity, or false when it is
// not resolvable. Failures never escape: they degrade to a missing profile
// and a logged diagnostic, so callers fall back to defaults instead of
// breaking.
//
// With force unset a valid cache entry short-circuits the whole flow and
// issues no store call at all. Concurrent resolutions for the same user id
// share one in-flight fetch; the store-side uniqueness conflict recovery
// stays in place for races this process cannot see (other tabs, other
// hosts).
func (r *Resolver) Resolve(ctx context.Context, identity eventive.Identity, force bool) (eventive.Profile, bool) {
	if !force {
		if profile, ok := r.cached(identity.Id); ok {
			return profile, true
		}
	}

	type outcome struct {
		profile eventive.Profile
		ok      bool
	}
	v, _, _ := r.group.Do(string(identity.Id), func() (interface{}, error) {
		profile, ok := r.fetch(ctx, identity)
		return outcome{profile: profile, ok: ok}, nil
	})
	result := v.(outcome)
	return result.profile, result.ok
}

// Refresh drops both cache tiers for the identity and resolves again,
// bypassing the cache. Call it after any mutation so callers observe the
// authoritative post-write state.
func (r *Resolver) Refresh(ctx context.Context, identity eventive.Identity) (eventive.Profile, bool) {
	r.Invalidate(identity.Id)
	return r.Resolve(ctx, identity, true)
}

// Invalidate removes the cache entries for a user id at both tiers.
func (r *Resolver) Invalidate(userId eventive.UserId) {
	for _, tier := range r.tiers() {
		if err := tier.Invalidate(userId); err != nil {
			logrus.WithError(err).WithField("user_id", userId).
				Warnln("Cache invalidation failed.")
		}
	}
}

func (r *Resolver) fetch(ctx context.Context, identity eventive.Identity) (eventive.Profile, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	profile, err := r.Store.ByUserId(fetchCtx, identity.Id)
	switch {
	case err == nil:
		r.cache(identity.Id, profile)
		return profile, true
	case errors.Is(err, eventive.ErrProfileNotFound):
		return r.create(ctx, identity)
	default:
		// timeouts land here too: no retry, resolve to no profile
		logrus.WithError(err).WithField("user_id", identity.Id).
			Errorln("Profile fetch failed.")
		return eventive.Profile{}, false
	}
}

// create derives a first-login profile from provider metadata and inserts
// it. Losing the creation race to another session is benign: the existing
// row is fetched and used instead.
func (r *Resolver) create(ctx context.Context, identity eventive.Identity) (eventive.Profile, bool) {
	createCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	created, err := r.Store.Create(createCtx, eventive.Profile{
		Id:          identity.Id,
		DisplayName: identity.DisplayName(),
		AvatarUrl:   identity.Metadata.AvatarUrl,
		Role:        eventive.RoleUser,
	})
	switch {
	case err == nil:
		r.cache(identity.Id, created)
		return created, true
	case errors.Is(err, eventive.ErrProfileExists):
		existing, err := r.Store.ByUserId(createCtx, identity.Id)
		if err != nil {
			logrus.WithError(err).WithField("user_id", identity.Id).
				Errorln("Profile re-fetch after creation conflict failed.")
			return eventive.Profile{}, false
		}
		r.cache(identity.Id, existing)
		return existing, true
	default:
		logrus.WithError(err).WithField("user_id", identity.Id).
			Errorln("Profile creation failed.")
		return eventive.Profile{}, false
	}
}

// cached consults the tiers in speed order. A durable hit re-populates the
// memory tier so the next lookup skips it.
func (r *Resolver) cached(userId eventive.UserId) (eventive.Profile, bool) {
	now := r.Now()

	if r.Memory != nil {
		if entry, ok := r.Memory.Get(userId); ok && entry.Valid(now) {
			return entry.Profile, true
		}
	}
	if r.Durable != nil {
		if entry, ok := r.Durable.Get(userId); ok && entry.Valid(now) {
			if r.Memory != nil {
				if err := r.Memory.Set(userId, entry); err != nil {
					logrus.WithError(err).WithField("user_id", userId).
						Warnln("Memory tier promotion failed.")
				}
			}
			return entry.Profile, true
		}
	}
	return eventive.Profile{}, false
}

// cache stamps both tiers with the current time. A tier write failure is
// logged and ignored; the other tier stays authoritative.
func (r *Resolver) cache(userId eventive.UserId, profile eventive.Profile) {
	entry := eventive.CacheEntry{Profile: profile, Timestamp: r.Now()}
	for _, tier := range r.tiers() {
		if err := tier.Set(userId, entry); err != nil {
			logrus.WithError(err).WithField("user_id", userId).
				Warnln("Cache tier write failed.")
		}
	}
}

func (r *Resolver) tiers() []eventive.ProfileCache {
	tiers := make([]eventive.ProfileCache, 0, 2)
	if r.Memory != nil {
		tiers = append(tiers, r.Memory)
	}
	if r.Durable != nil {
		tiers = append(tiers, r.Durable)
	}
	return tiers
}
