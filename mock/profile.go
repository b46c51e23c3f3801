package mock

import (
	"context"

	"github.com/eventive/eventive"
)

type ProfileStore struct {
	ByUserIdFn func(ctx context.Context, userId eventive.UserId) (eventive.Profile, error)
	CreateFn   func(ctx context.Context, profile eventive.Profile) (eventive.Profile, error)
	UpdateFn   func(ctx context.Context, userId eventive.UserId, patch eventive.ProfilePatch) (eventive.Profile, error)
}

func (s ProfileStore) ByUserId(ctx context.Context, userId eventive.UserId) (eventive.Profile, error) {
	return s.ByUserIdFn(ctx, userId)
}

func (s ProfileStore) Create(ctx context.Context, profile eventive.Profile) (eventive.Profile, error) {
	return s.CreateFn(ctx, profile)
}

func (s ProfileStore) Update(ctx context.Context, userId eventive.UserId, patch eventive.ProfilePatch) (eventive.Profile, error) {
	return s.UpdateFn(ctx, userId, patch)
}

type ProfileCache struct {
	GetFn        func(userId eventive.UserId) (eventive.CacheEntry, bool)
	SetFn        func(userId eventive.UserId, entry eventive.CacheEntry) error
	InvalidateFn func(userId eventive.UserId) error
}

func (c ProfileCache) Get(userId eventive.UserId) (eventive.CacheEntry, bool) {
	return c.GetFn(userId)
}

func (c ProfileCache) Set(userId eventive.UserId, entry eventive.CacheEntry) error {
	return c.SetFn(userId, entry)
}

func (c ProfileCache) Invalidate(userId eventive.UserId) error {
	return c.InvalidateFn(userId)
}
