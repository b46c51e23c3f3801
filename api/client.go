// Package api is the client of the Eventive backend REST API. It covers
// the account surfaces served over HTTP: own-profile reads and updates,
// public profiles, settings and avatar uploads. Profile resolution itself
// goes through the direct store, not through this client.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/eventive/eventive"
	"github.com/gofiber/fiber/v2"
)

// TokenSource supplies the bearer for authenticated calls. An absent
// session yields an empty bearer value; the backend rejects it with 401.
type TokenSource interface {
	AccessToken() string
}

type Client struct {
	BaseUrl string
	Tokens  TokenSource
}

type profileResponse struct {
	Id          string            `json:"id"`
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	Bio         string            `json:"bio"`
	AvatarUrl   string            `json:"avatar_url"`
	Role        string            `json:"role"`
	Settings    eventive.Settings `json:"settings"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (r profileResponse) toDomain() eventive.Profile {
	return eventive.Profile{
		Id:          eventive.UserId(r.Id),
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Bio:         r.Bio,
		AvatarUrl:   r.AvatarUrl,
		Role:        eventive.Role(r.Role),
		Settings:    r.Settings,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Me returns the authenticated user's profile.
func (c *Client) Me() (eventive.Profile, error) {
	status, body, err := c.do(fiber.MethodGet, "/api/users/me", nil)
	if err != nil {
		return eventive.Profile{}, err
	}
	return parseProfile(status, body)
}

// UpdateMe applies a partial profile update and returns the stored row.
func (c *Client) UpdateMe(patch eventive.ProfilePatch) (eventive.Profile, error) {
	request := map[string]interface{}{}
	if patch.Username != nil {
		request["username"] = *patch.Username
	}
	if patch.DisplayName != nil {
		request["display_name"] = *patch.DisplayName
	}
	if patch.Bio != nil {
		request["bio"] = *patch.Bio
	}
	if patch.AvatarUrl != nil {
		request["avatar_url"] = *patch.AvatarUrl
	}

	status, body, err := c.do(fiber.MethodPut, "/api/users/me", request)
	if err != nil {
		return eventive.Profile{}, err
	}
	return parseProfile(status, body)
}

// PublicProfile returns another user's public fields. No auth required.
func (c *Client) PublicProfile(userId eventive.UserId) (eventive.Profile, error) {
	status, body, err := c.do(fiber.MethodGet, "/api/users/"+string(userId), nil)
	if err != nil {
		return eventive.Profile{}, err
	}
	return parseProfile(status, body)
}

func (c *Client) Settings() (eventive.Settings, error) {
	status, body, err := c.do(fiber.MethodGet, "/api/settings", nil)
	if err != nil {
		return nil, err
	}
	return parseSettings(status, body)
}

func (c *Client) UpdateSettings(settings eventive.Settings) (eventive.Settings, error) {
	status, body, err := c.do(fiber.MethodPut, "/api/settings", settings)
	if err != nil {
		return nil, err
	}
	return parseSettings(status, body)
}

// UploadAvatar validates the payload through the upload gate and posts it
// as the multipart field "avatar". Returns the public URL of the stored
// image.
func (c *Client) UploadAvatar(filename string, contentType string, data []byte) (string, error) {
	if validation := eventive.ValidateAvatar(contentType, int64(len(data))); !validation.Valid {
		return "", fmt.Errorf("avatar rejected: %s", validation.Reason)
	}

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile("avatar", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("form write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("form close: %w", err)
	}

	agent := fiber.AcquireAgent()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	req.Header.SetMethod(fiber.MethodPost)
	req.SetRequestURI(c.BaseUrl + "/api/uploads/avatar")
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.bearer())
	req.Header.SetContentType(writer.FormDataContentType())
	agent.Body(buffer.Bytes())

	if err := agent.Parse(); err != nil {
		return "", fmt.Errorf("agent parse: %w", err)
	}
	status, body, errArr := agent.Bytes()
	if len(errArr) != 0 {
		return "", fmt.Errorf("agent bytes: %v", errArr)
	}
	if status != fiber.StatusOK && status != fiber.StatusCreated {
		return "", apiError("upload avatar", status, body)
	}

	var response struct {
		Url string `json:"url"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("response unmarshal: %w", err)
	}
	return response.Url, nil
}

func (c *Client) DeleteAvatar() error {
	status, body, err := c.do(fiber.MethodDelete, "/api/uploads/avatar", nil)
	if err != nil {
		return err
	}
	if status != fiber.StatusOK && status != fiber.StatusNoContent {
		return apiError("delete avatar", status, body)
	}
	return nil
}

// Health reports the backend status string, e.g. "ok".
func (c *Client) Health() (string, error) {
	status, body, err := c.do(fiber.MethodGet, "/health", nil)
	if err != nil {
		return "", err
	}
	if status != fiber.StatusOK {
		return "", apiError("health", status, body)
	}
	var response struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("response unmarshal: %w", err)
	}
	return response.Status, nil
}

func (c *Client) do(method string, path string, requestBody interface{}) (int, []byte, error) {
	agent := fiber.AcquireAgent()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.BaseUrl + path)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.bearer())
	if requestBody != nil {
		agent.JSON(requestBody)
	}

	if err := agent.Parse(); err != nil {
		return 0, nil, fmt.Errorf("agent parse: %w", err)
	}
	status, body, errArr := agent.Bytes()
	if len(errArr) != 0 {
		return 0, nil, fmt.Errorf("agent bytes: %v", errArr)
	}
	return status, body, nil
}

func (c *Client) bearer() string {
	if c.Tokens == nil {
		return ""
	}
	return c.Tokens.AccessToken()
}

func parseProfile(status int, body []byte) (eventive.Profile, error) {
	if status != fiber.StatusOK {
		return eventive.Profile{}, apiError("profile", status, body)
	}
	var response profileResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return eventive.Profile{}, fmt.Errorf("response unmarshal: %w", err)
	}
	return response.toDomain(), nil
}

func parseSettings(status int, body []byte) (eventive.Settings, error) {
	if status != fiber.StatusOK {
		return nil, apiError("settings", status, body)
	}
	var response eventive.Settings
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("response unmarshal: %w", err)
	}
	return response, nil
}

// apiError maps the backend's {"error":{"message":...}} envelope onto
// typed errors where the caller can act on them.
func apiError(operation string, status int, body []byte) error {
	switch status {
	case fiber.StatusUnauthorized:
		return eventive.ErrUnauthorized
	case fiber.StatusNotFound:
		return eventive.ErrProfileNotFound
	case fiber.StatusConflict:
		return eventive.ErrProfileExists
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("api %s: status %d: %s", operation, status, envelope.Error.Message)
	}
	return fmt.Errorf("api %s: invalid status code '%d': %s", operation, status, string(body))
}
