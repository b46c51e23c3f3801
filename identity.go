package eventive

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrSessionMissing = errors.New("no active session")
	ErrUnauthorized   = errors.New("unauthorized")
)

// Metadata carries provider-supplied user attributes. Every field is
// optional; providers differ in what they return.
type Metadata struct {
	FullName  string `json:"full_name"`
	Name      string `json:"name"`
	AvatarUrl string `json:"avatar_url"`
}

// Identity is the externally authenticated principal. It is owned by the
// identity service; this module only observes it.
type Identity struct {
	Id       UserId
	Email    string
	Metadata Metadata
}

// DisplayName derives the name shown for a fresh profile: provider full
// name, then short name, then the local part of the email address.
func (i Identity) DisplayName() string {
	if i.Metadata.FullName != "" {
		return i.Metadata.FullName
	}
	if i.Metadata.Name != "" {
		return i.Metadata.Name
	}
	if at := strings.IndexByte(i.Email, '@'); at > 0 {
		return i.Email[:at]
	}
	return i.Email
}

// Session is the identity service's authenticated session.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionListener observes session transitions. A nil session means the
// user signed out. Listeners are invoked serially, never concurrently.
type SessionListener func(session *Session)
