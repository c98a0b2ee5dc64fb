// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jason-s-yu/dicebet/internal/middleware"
	"github.com/sirupsen/logrus"
)

// ErrNoToken is returned by Login when the server answers 2xx without a token.
var ErrNoToken = errors.New("token not received")

// APIError is a non-2xx reply from the game API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the login/register/logout endpoints.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client whose requests are logged through logger.
func NewClient(baseURL string, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &middleware.LogTransport{Logger: logger.WithField("component", "api")},
		},
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges a username and password for a session credential.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	username, password, err := validateLogin(username, password)
	if err != nil {
		return "", err
	}

	var resp loginResponse
	if err := c.do(ctx, "/login", "", credentials{username, password}, &resp); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// Register creates an account. Inputs are checked locally before any request is made.
func (c *Client) Register(ctx context.Context, username, password, confirm string) error {
	username, err := validateRegister(username, password, confirm)
	if err != nil {
		return err
	}
	if err := c.do(ctx, "/register", "", credentials{username, password}, nil); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	return nil
}

// Logout invalidates token server-side. Callers clear their own state whatever the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.do(ctx, "/logout", token, nil, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// do POSTs body as JSON to path and decodes a 2xx reply into out when out is non-nil.
func (c *Client) do(ctx context.Context, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage prefers the JSON "message" field, then "error", then the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}
