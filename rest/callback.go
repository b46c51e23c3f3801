package rest

import (
	"errors"
	"fmt"

	"github.com/eventive/eventive"
	"github.com/eventive/eventive/supabase"
	"github.com/gofiber/fiber/v2"
)

// OAuthCallbackController receives the identity service's redirect after a
// hosted OAuth sign-in and finishes the code exchange. It serves a single
// local sign-in attempt, e.g. from the CLI.
type OAuthCallbackController struct {
	ExchangeCode func(code string) (eventive.Session, error)
	OnSession    func(session eventive.Session)
}

func (c *OAuthCallbackController) InstallTo(app *fiber.App) {
	app.Get("/auth/callback", c.serveCallback)
}

func (c *OAuthCallbackController) serveCallback(ctx *fiber.Ctx) error {
	code := ctx.Query("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no code")
	}

	session, err := c.ExchangeCode(code)
	if err != nil {
		if errors.Is(err, supabase.ErrOAuthInvalidCode) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid code")
		}
		return fmt.Errorf("code exchange: %w", err)
	}

	RequestLog(ctx).
		WithField("user_id", session.Identity.Id).
		Infoln("OAuth sign-in completed.")

	if c.OnSession != nil {
		c.OnSession(session)
	}
	return ctx.JSON(map[string]string{
		"status": "signed in, you can close this window",
	})
}
