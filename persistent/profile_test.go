package persistent

import (
	"context"
	"testing"

	"github.com/eventive/eventive"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newUserId() eventive.UserId {
	return eventive.UserId(uuid.NewString())
}

func TestProfileCreateAndFetch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	userId := newUserId()
	_, err := store.ByUserId(ctx, userId)
	assert.ErrorIs(err, eventive.ErrProfileNotFound)

	created, err := store.Create(ctx, eventive.Profile{
		Id:          userId,
		DisplayName: "Ada L",
		AvatarUrl:   "https://cdn.example.com/ada.png",
	})
	assert.NoError(err)
	assert.Equal(userId, created.Id)
	assert.Equal("Ada L", created.DisplayName)
	assert.Equal(eventive.RoleUser, created.Role)
	assert.False(created.CreatedAt.IsZero())

	fetched, err := store.ByUserId(ctx, userId)
	assert.NoError(err)
	assert.Equal(created.Id, fetched.Id)
	assert.Equal("Ada L", fetched.DisplayName)
}

func TestProfileCreateConflict(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	userId := newUserId()
	_, err := store.Create(ctx, eventive.Profile{Id: userId, DisplayName: "first"})
	assert.NoError(err)

	_, err = store.Create(ctx, eventive.Profile{Id: userId, DisplayName: "second"})
	assert.ErrorIs(err, eventive.ErrProfileExists)

	// the first writer's row is intact
	fetched, err := store.ByUserId(ctx, userId)
	assert.NoError(err)
	assert.Equal("first", fetched.DisplayName)
}

func TestProfileUpdatePatch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	userId := newUserId()
	_, err := store.Create(ctx, eventive.Profile{Id: userId, DisplayName: "Ada L"})
	assert.NoError(err)

	bio := "analytical engines"
	updated, err := store.Update(ctx, userId, eventive.ProfilePatch{Bio: &bio})
	assert.NoError(err)
	assert.Equal("analytical engines", updated.Bio)
	assert.Equal("Ada L", updated.DisplayName, "unpatched field untouched")

	_, err = store.Update(ctx, newUserId(), eventive.ProfilePatch{Bio: &bio})
	assert.ErrorIs(err, eventive.ErrProfileNotFound)
}

func TestProfileUsernameImmutable(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	userId := newUserId()
	_, err := store.Create(ctx, eventive.Profile{Id: userId})
	assert.NoError(err)

	ada := "ada_" + uuid.NewString()[:8]
	updated, err := store.Update(ctx, userId, eventive.ProfilePatch{Username: &ada})
	assert.NoError(err)
	assert.Equal(ada, updated.Username)

	// setting it to the same value is a no-op, changing it is refused
	_, err = store.Update(ctx, userId, eventive.ProfilePatch{Username: &ada})
	assert.NoError(err)

	other := "countess"
	_, err = store.Update(ctx, userId, eventive.ProfilePatch{Username: &other})
	assert.ErrorIs(err, eventive.ErrUsernameImmutable)
}

func TestProfileSettingsRoundtrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	userId := newUserId()
	_, err := store.Create(ctx, eventive.Profile{Id: userId})
	assert.NoError(err)

	settings, err := store.Settings(ctx, userId)
	assert.NoError(err)
	assert.Empty(settings)

	saved, err := store.UpdateSettings(ctx, userId, eventive.Settings{
		"theme":         "dark",
		"notifications": true,
	})
	assert.NoError(err)
	assert.Equal("dark", saved["theme"])

	settings, err = store.Settings(ctx, userId)
	assert.NoError(err)
	assert.Equal("dark", settings["theme"])
	assert.Equal(true, settings["notifications"])

	_, err = store.UpdateSettings(ctx, newUserId(), eventive.Settings{"theme": "light"})
	assert.ErrorIs(err, eventive.ErrProfileNotFound)
}
