package rest

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/eventive/eventive"
	"github.com/eventive/eventive/supabase"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func newCallbackApp(controller *OAuthCallbackController) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	controller.InstallTo(app)
	app.Use(NotFoundHandler)
	return app
}

func TestOAuthCallback(t *testing.T) {
	assert := assert.New(t)

	var received []eventive.Session
	controller := &OAuthCallbackController{
		ExchangeCode: func(code string) (eventive.Session, error) {
			switch code {
			case "good-code":
				return eventive.Session{
					AccessToken: "token-1",
					Identity:    eventive.Identity{Id: "u1"},
				}, nil
			case "expired-code":
				return eventive.Session{}, supabase.ErrOAuthInvalidCode
			default:
				return eventive.Session{}, errors.New("identity service down")
			}
		},
		OnSession: func(session eventive.Session) {
			received = append(received, session)
		},
	}
	app := newCallbackApp(controller)

	cases := []struct {
		path       string
		returnCode int
		returnBody string
	}{
		{path: "/auth/callback?code=good-code", returnCode: fiber.StatusOK,
			returnBody: `{"status":"signed in, you can close this window"}`},
		{path: "/auth/callback", returnCode: fiber.StatusBadRequest,
			returnBody: JsonErrorMessageResponse("no code")},
		{path: "/auth/callback?code=expired-code", returnCode: fiber.StatusUnauthorized,
			returnBody: JsonErrorMessageResponse("invalid code")},
		{path: "/auth/callback?code=boom", returnCode: fiber.StatusInternalServerError,
			returnBody: JsonErrorMessageResponse(fiber.ErrInternalServerError.Message)},
		{path: "/unknown_path", returnCode: fiber.StatusNotFound,
			returnBody: JsonErrorMessageResponse("Not Found")},
	}

	for _, useCase := range cases {
		assertMsg := "path: " + useCase.path

		req := httptest.NewRequest("GET", useCase.path, nil)
		resp, err := app.Test(req)
		if !assert.NoError(err, assertMsg) {
			continue
		}
		defer resp.Body.Close()

		assert.Equal(useCase.returnCode, resp.StatusCode, assertMsg)
		body, err := io.ReadAll(resp.Body)
		assert.NoError(err, assertMsg)
		assert.Equal(useCase.returnBody, string(body), assertMsg)
	}

	assert.Len(received, 1)
	assert.Equal(eventive.UserId("u1"), received[0].Identity.Id)
}
