// Package exchange trades a signed client assertion for a Stone Banking access token.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	GrantType           = "client_credentials"
	ClientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	DefaultTimeout = 30 * time.Second

	// Version is reported in the User-Agent header.
	Version = "1.0.0"
)

// AccessToken is the token endpoint response.
type AccessToken struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	NotBeforePolicy  int    `json:"not-before-policy"`
	SessionState     string `json:"session_state"`
	Scope            string `json:"scope"`

	// ExpiresAt is computed from ExpiresIn when the response is received.
	ExpiresAt time.Time `json:"-"`
}

// Valid reports whether the token is still usable at now.
func (t *AccessToken) Valid(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}

// BearerHeader returns the Authorization header value for the token.
func (t *AccessToken) BearerHeader() string {
	return "Bearer " + t.AccessToken
}

type Client struct {
	logger     *slog.Logger
	tokenURL   string
	httpClient *http.Client
	userAgent  string
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default client, whose timeout is DefaultTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(logger *slog.Logger, tokenURL string, opts ...Option) *Client {
	c := &Client{
		logger:     logger,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "StoneBanking.Jwt/" + Version,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange posts the client assertion to the token endpoint.
func (c *Client) Exchange(ctx context.Context, clientID, assertion string) (*AccessToken, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("grant_type", GrantType)
	form.Set("client_assertion_type", ClientAssertionType)
	form.Set("client_assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("exchanging client assertion", slog.String("url", c.tokenURL), slog.String("client-id", clientID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		var badRequest BadRequestError
		if err := json.Unmarshal(body, &badRequest); err == nil && badRequest.Code != "" {
			c.logger.Warn("token endpoint rejected assertion",
				slog.String("error", badRequest.Code),
				slog.String("error-description", badRequest.Description),
			)
			return nil, &badRequest
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("unexpected status from token endpoint", slog.Int("status", resp.StatusCode))
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token AccessToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	token.ExpiresAt = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)

	return &token, nil
}
