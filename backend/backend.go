package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/users"
)

const maxResponseBytes = 1 << 20

// Credentials is the token bundle issued by the backend on a successful
// authentication, together with the profile it was issued for.
type Credentials struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *users.User `json:"user,omitempty"`
}

// Registration carries the fields of the /auth/register form.
type Registration struct {
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Client is a thin wrapper over the platform backend's auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a backend client rooted at baseURL (including any API prefix).
func New(baseURL string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[backend.New] baseURL is required")
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// Register creates an account. A successful registration is immediately a
// logged-in session: the backend returns tokens alongside the new profile.
func (c *Client) Register(ctx context.Context, reg Registration) (*Credentials, error) {
	return c.credentialsRequest(ctx, http.MethodPost, "/auth/register", reg)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	body := map[string]string{"email": email, "password": password}
	return c.credentialsRequest(ctx, http.MethodPost, "/auth/login", body)
}

// GoogleLogin exchanges a third-party credential for a session.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (*Credentials, error) {
	body := map[string]string{"credential": credential}
	return c.credentialsRequest(ctx, http.MethodPost, "/auth/google-login", body)
}

// ExchangeCode trades a provider authorization code for a session.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Credentials, error) {
	body := map[string]string{"code": code}
	return c.credentialsRequest(ctx, http.MethodPost, "/auth/google/callback", body)
}

// AuthorizationURL asks the backend for the provider authorization URL. The
// backend owns the provider client configuration; redirectURI tells it where
// the provider should send the user back.
func (c *Client) AuthorizationURL(ctx context.Context, redirectURI string) (string, error) {
	path := "/auth/google"
	if redirectURI != "" {
		path += "?redirect_uri=" + url.QueryEscape(redirectURI)
	}
	env, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}

	var data struct {
		AuthURL string `json:"auth_url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.Wrap(err, "[Client.AuthorizationURL] decoding payload")
	}
	if data.AuthURL == "" {
		return "", errors.New("[Client.AuthorizationURL] backend returned no auth_url")
	}
	return data.AuthURL, nil
}

// Me validates accessToken and returns the backend's current profile record.
func (c *Client) Me(ctx context.Context, accessToken string) (*users.User, error) {
	env, err := c.do(ctx, http.MethodGet, "/auth/me", nil, accessToken)
	if err != nil {
		return nil, err
	}

	user := &users.User{}
	if err := json.Unmarshal(env.Data, user); err != nil {
		return nil, errors.Wrap(err, "[Client.Me] decoding profile")
	}
	return user, nil
}

// Check validates accessToken without fetching the profile.
func (c *Client) Check(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, http.MethodGet, "/auth/check", nil, accessToken)
	return err
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.credentialsRequest(ctx, http.MethodPost, "/auth/refresh", body)
}

func (c *Client) credentialsRequest(ctx context.Context, method, path string, body any) (*Credentials, error) {
	env, err := c.do(ctx, method, path, body, "")
	if err != nil {
		return nil, err
	}

	creds := &Credentials{}
	if err := json.Unmarshal(env.Data, creds); err != nil {
		return nil, errors.Wrapf(err, "[Client.credentialsRequest] decoding %s payload", path)
	}
	if creds.AccessToken == "" {
		return nil, errors.Errorf("[Client.credentialsRequest] %s returned no access token", path)
	}
	return creds, nil
}

// do executes one round-trip and separates the two failure classes: transport
// errors and unparseable responses come back as plain errors (connectivity),
// while a decoded envelope with a message becomes a *RejectedError.
func (c *Client) do(ctx context.Context, method, path string, body any, accessToken string) (*envelope, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.do] marshalling request body")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.do] building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.do] %s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.do] reading %s response", path)
	}

	env := &envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("unparseable backend response")
		return nil, errors.Errorf("[Client.do] %s returned status %d without a parseable body", path, resp.StatusCode)
	}

	if !env.ok() {
		if env.Message == "" {
			return nil, errors.Errorf("[Client.do] %s returned status %d", path, resp.StatusCode)
		}
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return env, nil
}
