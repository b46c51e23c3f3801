// Package inmem holds map-backed store implementations for tests and
// offline development.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/eventive/eventive"
)

type ProfileStore struct {
	profiles map[eventive.UserId]eventive.Profile
	mutex    sync.RWMutex
}

var _ eventive.ProfileStore = (*ProfileStore)(nil)
var _ eventive.SettingsStore = (*ProfileStore)(nil)

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: map[eventive.UserId]eventive.Profile{}}
}

func (s *ProfileStore) ByUserId(ctx context.Context, userId eventive.UserId) (eventive.Profile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return eventive.Profile{}, eventive.ErrProfileNotFound
	}
	return profile, nil
}

func (s *ProfileStore) Create(ctx context.Context, profile eventive.Profile) (eventive.Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.profiles[profile.Id]; ok {
		return eventive.Profile{}, eventive.ErrProfileExists
	}
	if profile.Role == "" {
		profile.Role = eventive.RoleUser
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	s.profiles[profile.Id] = profile
	return profile, nil
}

func (s *ProfileStore) Update(ctx context.Context, userId eventive.UserId, patch eventive.ProfilePatch) (eventive.Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return eventive.Profile{}, eventive.ErrProfileNotFound
	}
	if patch.Username != nil {
		if profile.Username != "" && *patch.Username != profile.Username {
			return eventive.Profile{}, eventive.ErrUsernameImmutable
		}
		profile.Username = *patch.Username
	}
	if patch.DisplayName != nil {
		profile.DisplayName = *patch.DisplayName
	}
	if patch.Bio != nil {
		profile.Bio = *patch.Bio
	}
	if patch.AvatarUrl != nil {
		profile.AvatarUrl = *patch.AvatarUrl
	}
	profile.UpdatedAt = time.Now()
	s.profiles[userId] = profile
	return profile, nil
}

func (s *ProfileStore) Settings(ctx context.Context, userId eventive.UserId) (eventive.Settings, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return nil, eventive.ErrProfileNotFound
	}
	if profile.Settings == nil {
		return eventive.Settings{}, nil
	}
	return profile.Settings.Clone(), nil
}

func (s *ProfileStore) UpdateSettings(ctx context.Context, userId eventive.UserId, settings eventive.Settings) (eventive.Settings, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return nil, eventive.ErrProfileNotFound
	}
	profile.Settings = settings.Clone()
	profile.UpdatedAt = time.Now()
	s.profiles[userId] = profile
	return profile.Settings.Clone(), nil
}
