package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTokenURL = "https://iam.cloud.ibm.com/identity/token"
	apiKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"
)

// ErrMissingAccessToken is returned when the token endpoint answers without an
// access_token field.
var ErrMissingAccessToken = errors.New("iam: response missing access_token")

// HTTPStatusError captures non-2xx responses from the token endpoint.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("iam: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Client exchanges an API key for a short-lived bearer token. Tokens are not
// cached; every call to Token performs a fresh exchange.
type Client struct {
	apiKey     string
	tokenURL   string
	httpClient *http.Client
}

type Option func(*Client)

func WithTokenURL(tokenURL string) Option {
	return func(c *Client) {
		if u := strings.TrimSpace(tokenURL); u != "" {
			c.tokenURL = u
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("iam: api key must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		tokenURL:   DefaultTokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c, nil
}

// Token performs the API key exchange and returns the access token.
func (c *Client) Token(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("grant_type", apiKeyGrantType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("iam: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("iam: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: c.tokenURL, Body: string(buf)}
	}

	var payload tokenResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("iam: decode response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", ErrMissingAccessToken
	}
	return payload.AccessToken, nil
}
