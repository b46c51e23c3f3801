package mock

import (
	"context"

	"github.com/eventive/eventive"
)

// IdentityService doubles the supabase client for session manager tests.
// Fire delivers a session transition to every registered listener, the way
// the identity service would.
type IdentityService struct {
	SessionFn func(ctx context.Context) (*eventive.Session, error)
	SignOutFn func(ctx context.Context) error

	listeners []eventive.SessionListener
}

func (s *IdentityService) Session(ctx context.Context) (*eventive.Session, error) {
	return s.SessionFn(ctx)
}

func (s *IdentityService) SignOut(ctx context.Context) error {
	return s.SignOutFn(ctx)
}

func (s *IdentityService) OnSessionChange(listener eventive.SessionListener) func() {
	s.listeners = append(s.listeners, listener)
	index := len(s.listeners) - 1
	return func() {
		s.listeners[index] = nil
	}
}

func (s *IdentityService) Fire(session *eventive.Session) {
	for _, listener := range s.listeners {
		if listener != nil {
			listener(session)
		}
	}
}

func (s *IdentityService) ListenerCount() int {
	count := 0
	for _, listener := range s.listeners {
		if listener != nil {
			count++
		}
	}
	return count
}
