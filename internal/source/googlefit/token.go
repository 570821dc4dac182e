// internal/source/googlefit/token.go
package googlefit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jpfieber/sleepsync/internal/clock"
)

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	sleepScope      = "https://www.googleapis.com/auth/fitness.sleep.read"

	// Minimum spacing between outbound calls to the fitness API. All
	// requests from the adapter and the token client share one watermark.
	minRequestInterval = 1000 * time.Millisecond

	// Tokens are refreshed this long before their reported expiry.
	expiryMargin = 60 * time.Second
)

// ErrAuthFailed marks authentication failures (invalid state, rejected
// refresh). These are never retried: retrying with the same bad credential
// cannot succeed.
var ErrAuthFailed = errors.New("googlefit: authentication failed")

// Token is the OAuth credential set for the fitness API. Expiry is epoch
// milliseconds. The TokenClient owns the only mutable copy and refreshes
// it in place.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       int64
}

// PersistFunc commits a refreshed token back to settings storage.
type PersistFunc func(Token) error

// TokenClient issues bearer tokens for the fitness API, refreshing them
// when they are within the expiry margin, and enforces the minimum
// inter-request spacing for every outbound call.
type TokenClient struct {
	clientID     string
	clientSecret string
	persist      PersistFunc
	clk          clock.Clock
	client       *http.Client
	tokenURL     string

	mu          sync.Mutex
	token       Token
	lastRequest time.Time
}

// NewTokenClient creates a TokenClient holding the given token. persist is
// invoked with the new token after every successful refresh or exchange.
func NewTokenClient(clientID, clientSecret string, token Token, persist PersistFunc, clk clock.Clock) *TokenClient {
	return &TokenClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		persist:      persist,
		clk:          clk,
		client:       &http.Client{Timeout: 15 * time.Second},
		tokenURL:     defaultTokenURL,
		token:        token,
	}
}

// SetTokenURL overrides the token endpoint. Used by tests.
func (c *TokenClient) SetTokenURL(u string) { c.tokenURL = u }

// Wait blocks until the minimum spacing since the last outbound request
// has elapsed, then advances the shared watermark. Holding the lock
// through the sleep serializes all callers.
func (c *TokenClient) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	if !c.lastRequest.IsZero() {
		if remaining := minRequestInterval - now.Sub(c.lastRequest); remaining > 0 {
			c.clk.Sleep(remaining)
		}
	}
	c.lastRequest = c.clk.Now()
	return ctx.Err()
}

// EnsureToken returns a valid access token, refreshing first if the
// current one expires within the safety margin. Refresh failure
// propagates; it is not retried.
func (c *TokenClient) EnsureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := time.UnixMilli(c.token.Expiry)
	if c.token.AccessToken != "" && c.clk.Now().Add(expiryMargin).Before(expiry) {
		return c.token.AccessToken, nil
	}

	if c.token.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token; run authorization first", ErrAuthFailed)
	}

	tok, err := c.requestToken(ctx, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.token.RefreshToken},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		return "", err
	}
	// Google omits the refresh token on refresh responses; keep ours.
	if tok.RefreshToken == "" {
		tok.RefreshToken = c.token.RefreshToken
	}
	c.token = tok

	if c.persist != nil {
		if err := c.persist(tok); err != nil {
			return "", fmt.Errorf("persist refreshed token: %w", err)
		}
	}
	return tok.AccessToken, nil
}

// Exchange trades an authorization code for a token and stores it as the
// client's current token.
func (c *TokenClient) Exchange(ctx context.Context, code, redirectURI string) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, err := c.requestToken(ctx, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return Token{}, err
	}
	c.token = tok
	if c.persist != nil {
		if err := c.persist(tok); err != nil {
			return Token{}, fmt.Errorf("persist token: %w", err)
		}
	}
	return tok, nil
}

// requestToken posts to the token endpoint and decodes the response.
// Caller must hold c.mu.
func (c *TokenClient) requestToken(ctx context.Context, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("%w: token endpoint returned %s", ErrAuthFailed, resp.Status)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: token response missing access token", ErrAuthFailed)
	}

	return Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Expiry:       c.clk.Now().Add(time.Duration(body.ExpiresIn) * time.Second).UnixMilli(),
	}, nil
}
