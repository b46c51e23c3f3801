package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventive/eventive"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"
)

// Bunt is the durable cache tier. Entries survive process restarts the way
// the web client kept them in local storage: JSON documents with an
// epoch-millis timestamp, under a key namespaced by user id.
type Bunt struct {
	DB *buntdb.DB
}

var _ eventive.ProfileCache = (*Bunt)(nil)

type buntEntry struct {
	Profile   buntProfile `json:"profile"`
	Timestamp int64       `json:"timestamp"`
}

type buntProfile struct {
	Id          string            `json:"id"`
	Username    string            `json:"username,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Bio         string            `json:"bio,omitempty"`
	AvatarUrl   string            `json:"avatar_url,omitempty"`
	Role        string            `json:"role"`
	Settings    eventive.Settings `json:"settings,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func profileKey(userId eventive.UserId) string {
	return "profile:" + string(userId)
}

func (c *Bunt) Get(userId eventive.UserId) (eventive.CacheEntry, bool) {
	var raw string
	err := c.DB.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get(profileKey(userId))
		return err
	})
	if err != nil {
		if !errors.Is(err, buntdb.ErrNotFound) {
			logrus.WithError(err).WithField("user_id", userId).
				Warnln("Durable cache read failed.")
		}
		return eventive.CacheEntry{}, false
	}

	var entry buntEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// treat an unreadable entry as a miss; it gets overwritten on
		// the next successful resolution
		logrus.WithError(err).WithField("user_id", userId).
			Warnln("Durable cache entry malformed.")
		return eventive.CacheEntry{}, false
	}
	return eventive.CacheEntry{
		Profile: eventive.Profile{
			Id:          eventive.UserId(entry.Profile.Id),
			Username:    entry.Profile.Username,
			DisplayName: entry.Profile.DisplayName,
			Bio:         entry.Profile.Bio,
			AvatarUrl:   entry.Profile.AvatarUrl,
			Role:        eventive.Role(entry.Profile.Role),
			Settings:    entry.Profile.Settings,
			CreatedAt:   entry.Profile.CreatedAt,
			UpdatedAt:   entry.Profile.UpdatedAt,
		},
		Timestamp: time.UnixMilli(entry.Timestamp),
	}, true
}

func (c *Bunt) Set(userId eventive.UserId, entry eventive.CacheEntry) error {
	raw, err := json.Marshal(buntEntry{
		Profile: buntProfile{
			Id:          string(entry.Profile.Id),
			Username:    entry.Profile.Username,
			DisplayName: entry.Profile.DisplayName,
			Bio:         entry.Profile.Bio,
			AvatarUrl:   entry.Profile.AvatarUrl,
			Role:        string(entry.Profile.Role),
			Settings:    entry.Profile.Settings,
			CreatedAt:   entry.Profile.CreatedAt,
			UpdatedAt:   entry.Profile.UpdatedAt,
		},
		Timestamp: entry.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("entry marshal: %w", err)
	}

	err = c.DB.Update(func(tx *buntdb.Tx) error {
		options := &buntdb.SetOptions{
			Expires: true,
			TTL:     eventive.ProfileCacheTTL,
		}
		_, _, err := tx.Set(profileKey(userId), string(raw), options)
		return err
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

func (c *Bunt) Invalidate(userId eventive.UserId) error {
	err := c.DB.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(profileKey(userId))
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
