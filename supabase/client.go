package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eventive/eventive"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var ErrInvalidCredentials = errors.New("supabase: invalid credentials")

const (
	// refreshMargin is how long before expiry the background refresh runs.
	refreshMargin = 30 * time.Second
	refreshFloor  = time.Second
)

// SessionPersistence keeps the current session across process restarts,
// the way the web client kept it in local storage. Load returns (nil, nil)
// when no session is persisted.
type SessionPersistence interface {
	Load() (*eventive.Session, error)
	Save(session eventive.Session) error
	Clear() error
}

// Client talks to a Supabase-style GoTrue identity service. It owns the
// current session and broadcasts session transitions to registered
// listeners; listeners are always invoked serially.
type Client struct {
	BaseUrl     string
	AnonKey     string
	Persistence SessionPersistence

	// AutoRefresh arms a background refresh shortly before every session
	// expiry; listeners observe the refreshed session. Close disarms it.
	AutoRefresh bool

	mutex        sync.RWMutex
	session      *eventive.Session
	listeners    map[int]eventive.SessionListener
	nextListener int
	loaded       bool
	refreshTimer *time.Timer

	// serializes listener dispatch across concurrent transitions
	dispatchMutex sync.Mutex
}

func New(baseUrl string, anonKey string) *Client {
	return &Client{
		BaseUrl:   baseUrl,
		AnonKey:   anonKey,
		listeners: map[int]eventive.SessionListener{},
	}
}

type userResponse struct {
	Id           string            `json:"id"`
	Email        string            `json:"email"`
	UserMetadata eventive.Metadata `json:"user_metadata"`
}

func (u userResponse) toIdentity() eventive.Identity {
	return eventive.Identity{
		Id:       eventive.UserId(u.Id),
		Email:    u.Email,
		Metadata: u.UserMetadata,
	}
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func (r sessionResponse) toSession(now time.Time) eventive.Session {
	return eventive.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
		Identity:     r.User.toIdentity(),
	}
}

// Session returns the current session, or nil when signed out. An expired
// session is refreshed once against the identity service; a refresh
// failure reports the session as absent alongside the error.
func (c *Client) Session(ctx context.Context) (*eventive.Session, error) {
	c.mutex.Lock()
	if !c.loaded {
		c.loadPersisted()
	}
	session := c.session
	c.mutex.Unlock()

	if session == nil {
		return nil, nil
	}
	if !session.Expired(time.Now()) {
		copied := *session
		return &copied, nil
	}

	refreshed, err := c.refresh(ctx, session.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("session refresh: %w", err)
	}
	c.setSession(&refreshed)
	c.notify(&refreshed)
	return &refreshed, nil
}

// AccessToken implements the bearer source consumed by the api client.
// It is empty when no session is active.
func (c *Client) AccessToken() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) SignInWithPassword(ctx context.Context, email string, password string) (eventive.Session, error) {
	body := map[string]string{"email": email, "password": password}
	status, respBody, err := c.do(ctx, fiber.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return eventive.Session{}, err
	}
	if status != fiber.StatusOK {
		if status == fiber.StatusBadRequest || status == fiber.StatusUnauthorized {
			return eventive.Session{}, ErrInvalidCredentials
		}
		return eventive.Session{}, statusError("password grant", status, respBody)
	}

	var response sessionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return eventive.Session{}, fmt.Errorf("response unmarshal: %w", err)
	}
	session := response.toSession(time.Now())
	c.setSession(&session)
	c.notify(&session)
	return session, nil
}

// SignUpWithPassword registers a new identity. When the project requires
// email confirmation the service returns no tokens; the caller gets a nil
// session and signs in after confirming.
func (c *Client) SignUpWithPassword(ctx context.Context, email string, password string) (*eventive.Session, error) {
	body := map[string]string{"email": email, "password": password}
	status, respBody, err := c.do(ctx, fiber.MethodPost, "/auth/v1/signup", "", body)
	if err != nil {
		return nil, err
	}
	if status != fiber.StatusOK {
		return nil, statusError("signup", status, respBody)
	}

	var response sessionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("response unmarshal: %w", err)
	}
	if response.AccessToken == "" {
		return nil, nil
	}
	session := response.toSession(time.Now())
	c.setSession(&session)
	c.notify(&session)
	return &session, nil
}

// SignOut ends the session server-side and always drops the local session,
// even when the server call fails; the error is still propagated.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.AccessToken()

	c.setSession(nil)
	c.notify(nil)

	if token == "" {
		return nil
	}
	status, respBody, err := c.do(ctx, fiber.MethodPost, "/auth/v1/logout", token, nil)
	if err != nil {
		return err
	}
	if status != fiber.StatusNoContent && status != fiber.StatusOK {
		return statusError("logout", status, respBody)
	}
	return nil
}

// User fetches the authenticated identity with provider metadata.
func (c *Client) User(ctx context.Context) (eventive.Identity, error) {
	token := c.AccessToken()
	if token == "" {
		return eventive.Identity{}, eventive.ErrSessionMissing
	}

	status, respBody, err := c.do(ctx, fiber.MethodGet, "/auth/v1/user", token, nil)
	if err != nil {
		return eventive.Identity{}, err
	}
	if status != fiber.StatusOK {
		if status == fiber.StatusUnauthorized {
			return eventive.Identity{}, eventive.ErrUnauthorized
		}
		return eventive.Identity{}, statusError("user", status, respBody)
	}

	var response userResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return eventive.Identity{}, fmt.Errorf("response unmarshal: %w", err)
	}
	return response.toIdentity(), nil
}

// OnSessionChange registers a listener fired on sign-in, sign-out and
// token refresh. The returned func deregisters it.
func (c *Client) OnSessionChange(listener eventive.SessionListener) func() {
	c.mutex.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = listener
	c.mutex.Unlock()

	return func() {
		c.mutex.Lock()
		delete(c.listeners, id)
		c.mutex.Unlock()
	}
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (eventive.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	status, respBody, err := c.do(ctx, fiber.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body)
	if err != nil {
		return eventive.Session{}, err
	}
	if status != fiber.StatusOK {
		return eventive.Session{}, statusError("refresh grant", status, respBody)
	}

	var response sessionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return eventive.Session{}, fmt.Errorf("response unmarshal: %w", err)
	}
	return response.toSession(time.Now()), nil
}

// loadPersisted restores the persisted session. Caller holds c.mutex.
func (c *Client) loadPersisted() {
	c.loaded = true
	if c.Persistence == nil {
		return
	}
	session, err := c.Persistence.Load()
	if err != nil {
		logrus.WithError(err).Warnln("Could not load persisted session.")
		return
	}
	if session == nil {
		return
	}
	if subject, err := tokenSubject(session.AccessToken); err != nil || subject != session.Identity.Id {
		// stored identity no longer matches the token; start signed out
		logrus.WithField("user_id", session.Identity.Id).
			Warnln("Persisted session rejected.")
		return
	}
	c.session = session
}

// scheduleRefresh re-arms the background refresh timer for the given
// session, or disarms it on sign-out. Caller holds c.mutex.
func (c *Client) scheduleRefresh(session *eventive.Session) {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if !c.AutoRefresh || session == nil {
		return
	}
	wait := time.Until(session.ExpiresAt) - refreshMargin
	if wait < refreshFloor {
		wait = refreshFloor
	}
	refreshToken := session.RefreshToken
	c.refreshTimer = time.AfterFunc(wait, func() {
		c.backgroundRefresh(refreshToken)
	})
}

func (c *Client) backgroundRefresh(refreshToken string) {
	refreshed, err := c.refresh(context.Background(), refreshToken)
	if err != nil {
		// the lazy refresh in Session remains the fallback
		logrus.WithError(err).Warnln("Background session refresh failed.")
		return
	}
	c.setSession(&refreshed)
	c.notify(&refreshed)
}

// Close disarms the background refresh. The current session stays usable.
func (c *Client) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

func (c *Client) setSession(session *eventive.Session) {
	c.mutex.Lock()
	c.loaded = true
	c.session = session
	c.scheduleRefresh(session)
	c.mutex.Unlock()

	if c.Persistence == nil {
		return
	}
	var err error
	if session == nil {
		err = c.Persistence.Clear()
	} else {
		err = c.Persistence.Save(*session)
	}
	if err != nil {
		// persistence is advisory; the in-memory session stays valid
		logrus.WithError(err).Warnln("Could not persist session.")
	}
}

func (c *Client) notify(session *eventive.Session) {
	c.mutex.RLock()
	listeners := make([]eventive.SessionListener, 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.mutex.RUnlock()

	c.dispatchMutex.Lock()
	defer c.dispatchMutex.Unlock()
	for _, listener := range listeners {
		listener(session)
	}
}

func (c *Client) do(ctx context.Context, method string, path string, bearer string, body interface{}) (int, []byte, error) {
	agent := fiber.AcquireAgent()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.BaseUrl + path)
	req.Header.Set("apikey", c.AnonKey)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	if body != nil {
		agent.JSON(body)
	}
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	}

	if err := agent.Parse(); err != nil {
		return 0, nil, fmt.Errorf("agent parse: %w", err)
	}
	status, respBody, errArr := agent.Bytes()
	if len(errArr) != 0 {
		return 0, nil, fmt.Errorf("agent bytes: %v", errArr)
	}
	return status, respBody, nil
}

func statusError(operation string, status int, body []byte) error {
	type errorResponse struct {
		Message     string `json:"msg"`
		Description string `json:"error_description"`
	}
	var response errorResponse
	if err := json.Unmarshal(body, &response); err == nil {
		if response.Message != "" {
			return fmt.Errorf("supabase %s: status %d: %s", operation, status, response.Message)
		}
		if response.Description != "" {
			return fmt.Errorf("supabase %s: status %d: %s", operation, status, response.Description)
		}
	}
	return fmt.Errorf("supabase %s: invalid status code '%d': %s", operation, status, string(body))
}
