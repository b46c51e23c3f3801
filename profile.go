package eventive

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrProfileExists    = errors.New("profile already exists")
	ErrUsernameImmutable = errors.New("username cannot be changed once set")
)

// UserId is the identity-provider subject, shared 1:1 with Profile.Id.
type UserId string

// Profile is the application's persisted record for an authenticated user.
// Optional attributes are empty strings until the user sets them; Username
// is globally unique and immutable once non-empty.
type Profile struct {
	Id          UserId
	Username    string
	DisplayName string
	Bio         string
	AvatarUrl   string
	Role        Role
	Settings    Settings
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Username    *string
	DisplayName *string
	Bio         *string
	AvatarUrl   *string
}

type ProfileStore interface {
	// ByUserId returns the profile for the given user id or
	// ErrProfileNotFound. At most one row matches.
	ByUserId(ctx context.Context, userId UserId) (Profile, error)

	// Create inserts a new profile row. A duplicate id yields
	// ErrProfileExists so callers can recover from creation races.
	Create(ctx context.Context, profile Profile) (Profile, error)

	// Update applies a partial update and returns the stored row.
	Update(ctx context.Context, userId UserId, patch ProfilePatch) (Profile, error)
}
