package supabase

import (
	"context"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/eventive/eventive"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var ErrOAuthInvalidCode = errors.New("supabase: oauth invalid code")

type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderDiscord Provider = "discord"
)

func (p Provider) Known() bool {
	return p == ProviderGoogle || p == ProviderDiscord
}

// PKCEVerifier is the per-attempt secret of the authorization code flow.
// The challenge goes into the authorize URL; the verifier stays local and
// is presented at code exchange.
type PKCEVerifier string

func NewPKCEVerifier() (PKCEVerifier, error) {
	raw := make([]byte, 32)
	if _, err := crand.Read(raw); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	return PKCEVerifier(base64.RawURLEncoding.EncodeToString(raw)), nil
}

func (v PKCEVerifier) Challenge() string {
	sum := sha256.Sum256([]byte(v))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// OAuthUrl builds the hosted authorization URL for the given provider.
// The identity service redirects back to redirectTo with a ?code= query.
func (c *Client) OAuthUrl(provider Provider, redirectTo string, verifier PKCEVerifier) string {
	authorizeUrl, err := url.Parse(c.BaseUrl + "/auth/v1/authorize")
	if err != nil {
		logrus.WithError(err).Fatalln("Could not parse authorize url.")
		return ""
	}
	query := authorizeUrl.Query()
	query.Set("provider", string(provider))
	query.Set("redirect_to", redirectTo)
	query.Set("code_challenge", verifier.Challenge())
	query.Set("code_challenge_method", "s256")
	authorizeUrl.RawQuery = query.Encode()
	return authorizeUrl.String()
}

// ExchangeCode trades the callback code for a session and signs the
// client in.
func (c *Client) ExchangeCode(ctx context.Context, code string, verifier PKCEVerifier) (eventive.Session, error) {
	body := map[string]string{
		"auth_code":     code,
		"code_verifier": string(verifier),
	}
	status, respBody, err := c.do(ctx, fiber.MethodPost, "/auth/v1/token?grant_type=pkce", "", body)
	if err != nil {
		return eventive.Session{}, err
	}
	if status != fiber.StatusOK {
		if status == fiber.StatusBadRequest || status == fiber.StatusNotFound {
			return eventive.Session{}, ErrOAuthInvalidCode
		}
		return eventive.Session{}, statusError("pkce grant", status, respBody)
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
