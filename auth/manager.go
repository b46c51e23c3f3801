// Package auth keeps the current identity and its resolved profile in sync
// with the external identity service.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/eventive/eventive"
	"github.com/sirupsen/logrus"
)

// IdentityService is the slice of the supabase client the manager needs.
type IdentityService interface {
	// Session returns the current session or nil when signed out.
	Session(ctx context.Context) (*eventive.Session, error)

	// OnSessionChange registers a serially-invoked listener; the returned
	// func deregisters it.
	OnSessionChange(listener eventive.SessionListener) func()

	SignOut(ctx context.Context) error
}

// ProfileResolver is the slice of the profile resolver the manager needs.
type ProfileResolver interface {
	Resolve(ctx context.Context, identity eventive.Identity, force bool) (eventive.Profile, bool)
	Invalidate(userId eventive.UserId)
}

// Manager exposes the authenticated identity, its profile and a loading
// flag, and keeps them synchronized with the identity service for the
// process lifetime.
type Manager struct {
	identity IdentityService
	profiles ProfileResolver

	mutex       sync.RWMutex
	current     *eventive.Identity
	profile     *eventive.Profile
	loading     bool
	unsubscribe func()
}

func NewManager(identity IdentityService, profiles ProfileResolver) *Manager {
	return &Manager{
		identity: identity,
		profiles: profiles,
		loading:  true,
	}
}

// Initialize requests the current session once (no retry), resolves the
// profile when a session exists, and clears the loading flag regardless of
// the outcome. It also subscribes to session transitions; Close drops the
// subscription.
func (m *Manager) Initialize(ctx context.Context) {
	m.mutex.Lock()
	if m.unsubscribe == nil {
		m.unsubscribe = m.identity.OnSessionChange(m.onSessionChange)
	}
	m.mutex.Unlock()

	session, err := m.identity.Session(ctx)
	if err != nil {
		logrus.WithError(err).Errorln("Could not get session.")
	}
	if session != nil {
		m.setIdentity(&session.Identity)
		m.resolveProfile(ctx, session.Identity, false)
	}
	m.setLoading(false)
}

// Identity returns the current identity, or false when signed out.
func (m *Manager) Identity() (eventive.Identity, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.current == nil {
		return eventive.Identity{}, false
	}
	return *m.current, true
}

// Profile returns the resolved profile, or false when none is resolved.
// Absence is not an error: the caller shows defaults instead.
func (m *Manager) Profile() (eventive.Profile, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.profile == nil {
		return eventive.Profile{}, false
	}
	return *m.profile, true
}

func (m *Manager) Loading() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.loading
}

// RefreshProfile re-resolves the profile past the cache. Call it after any
// profile or settings mutation.
func (m *Manager) RefreshProfile(ctx context.Context) {
	identity, ok := m.Identity()
	if !ok {
		return
	}
	m.profiles.Invalidate(identity.Id)
	m.resolveProfile(ctx, identity, true)
}

// SignOut invalidates the current user's cache entries first, then ends
// the session. Sign-out failure propagates; the invalidation is not rolled
// back, the cache is only advisory.
func (m *Manager) SignOut(ctx context.Context) error {
	if identity, ok := m.Identity(); ok {
		m.profiles.Invalidate(identity.Id)
	}
	if err := m.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("identity sign out: %w", err)
	}
	return nil
}

// Close deregisters the session listener. In-flight resolutions are not
// cancelled; their late results are ignored safely.
func (m *Manager) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Manager) onSessionChange(session *eventive.Session) {
	if session == nil {
		m.mutex.Lock()
		m.current = nil
		m.profile = nil
		m.loading = false
		m.mutex.Unlock()
		return
	}

	identity := session.Identity
	m.setIdentity(&identity)
	m.setLoading(false)

	// resolution happens off the listener; the caller never waits on it
	go m.resolveProfile(context.Background(), identity, false)
}

func (m *Manager) resolveProfile(ctx context.Context, identity eventive.Identity, force bool) {
	resolved, ok := m.profiles.Resolve(ctx, identity, force)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	// a sign-out may have landed while the resolution was in flight
	if m.current == nil || m.current.Id != identity.Id {
		return
	}
	if ok {
		m.profile = &resolved
	} else {
		m.profile = nil
	}
}

func (m *Manager) setIdentity(identity *eventive.Identity) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = identity
}

func (m *Manager) setLoading(loading bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.loading = loading
}
