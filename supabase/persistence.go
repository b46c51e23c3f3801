package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventive/eventive"
	"github.com/tidwall/buntdb"
)

const sessionKey = "auth:session"

// BuntSessions persists the current session in the local buntdb store,
// next to the durable profile cache.
type BuntSessions struct {
	DB *buntdb.DB
}

var _ SessionPersistence = (*BuntSessions)(nil)

type persistedSession struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresAt    int64             `json:"expires_at"`
	UserId       string            `json:"user_id"`
	Email        string            `json:"email"`
	Metadata     eventive.Metadata `json:"metadata"`
}

func (s *BuntSessions) Load() (*eventive.Session, error) {
	var raw string
	err := s.DB.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get(sessionKey)
		return err
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("bunt view: %w", err)
	}

	var stored persistedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}

	expiresAt := time.Unix(stored.ExpiresAt, 0)
	if stored.ExpiresAt == 0 {
		// older entries predate the stored expiry; recover it from the token
		if fromToken, err := tokenExpiry(stored.AccessToken); err == nil {
			expiresAt = fromToken
		}
	}
	return &eventive.Session{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    expiresAt,
		Identity: eventive.Identity{
			Id:       eventive.UserId(stored.UserId),
			Email:    stored.Email,
			Metadata: stored.Metadata,
		},
	}, nil
}

func (s *BuntSessions) Save(session eventive.Session) error {
	raw, err := json.Marshal(persistedSession{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt.Unix(),
		UserId:       string(session.Identity.Id),
		Email:        session.Identity.Email,
		Metadata:     session.Identity.Metadata,
	})
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	err = s.DB.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(sessionKey, string(raw), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

func (s *BuntSessions) Clear() error {
	err := s.DB.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(sessionKey)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}
