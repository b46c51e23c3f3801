package inmem

import (
	"context"
	"testing"

	"github.com/eventive/eventive"
	"github.com/stretchr/testify/assert"
)

func TestProfileStoreLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewProfileStore()

	_, err := store.ByUserId(ctx, "u1")
	assert.ErrorIs(err, eventive.ErrProfileNotFound)

	created, err := store.Create(ctx, eventive.Profile{Id: "u1", DisplayName: "Ada L"})
	assert.NoError(err)
	assert.Equal(eventive.RoleUser, created.Role)
	assert.False(created.CreatedAt.IsZero())

	_, err = store.Create(ctx, eventive.Profile{Id: "u1"})
	assert.ErrorIs(err, eventive.ErrProfileExists)

	bio := "analytical engines"
	updated, err := store.Update(ctx, "u1", eventive.ProfilePatch{Bio: &bio})
	assert.NoError(err)
	assert.Equal("analytical engines", updated.Bio)
	assert.Equal("Ada L", updated.DisplayName)
}

func TestProfileStoreUsernameImmutable(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewProfileStore()

	_, err := store.Create(ctx, eventive.Profile{Id: "u1"})
	assert.NoError(err)

	ada := "ada"
	_, err = store.Update(ctx, "u1", eventive.ProfilePatch{Username: &ada})
	assert.NoError(err)

	other := "countess"
	_, err = store.Update(ctx, "u1", eventive.ProfilePatch{Username: &other})
	assert.ErrorIs(err, eventive.ErrUsernameImmutable)
}

func TestProfileStoreSettings(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewProfileStore()

	_, err := store.Settings(ctx, "u1")
	assert.ErrorIs(err, eventive.ErrProfileNotFound)

	_, err = store.Create(ctx, eventive.Profile{Id: "u1"})
	assert.NoError(err)

	saved, err := store.UpdateSettings(ctx, "u1", eventive.Settings{"theme": "dark"})
	assert.NoError(err)
	assert.Equal("dark", saved["theme"])

	// mutating the returned map must not leak into the store
	saved["theme"] = "light"
	settings, err := store.Settings(ctx, "u1")
	assert.NoError(err)
	assert.Equal("dark", settings["theme"])
}
