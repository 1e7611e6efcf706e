package badgr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/badgr/pkg/httpx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenPath = "/o/token"

	// refreshBuffer is how long before expiry a token is considered stale
	refreshBuffer = 30 * time.Second
)

// tokenManager owns the bearer token. It fetches a token on first use and
// refreshes it when it expires or the server rejects it.
type tokenManager struct {
	httpClient *http.Client
	tokenURL   string

	username string
	password string
	clientID string
	scope    string

	now func() time.Time

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time       // zero when unknown; valid until a 401
	scopes       map[string]bool // granted scopes for fast lookup
}

func newTokenManager(httpClient *http.Client, cfg Config) *tokenManager {
	tm := &tokenManager{
		httpClient:   httpClient,
		tokenURL:     cfg.BaseURL + tokenPath,
		username:     cfg.Username,
		password:     cfg.Password,
		clientID:     cfg.ClientID,
		scope:        cfg.Scope,
		now:          time.Now,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
		scopes:       map[string]bool{},
	}
	if tm.accessToken != "" {
		tm.expiresAt = tm.expiryFromJWT(tm.accessToken)
	}
	return tm
}

// Token returns a valid access token, fetching or refreshing it if needed.
func (tm *tokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.RLock()
	if tm.validLocked() {
		token := tm.accessToken
		tm.mu.RUnlock()
		return token, nil
	}
	tm.mu.RUnlock()

	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if tm.validLocked() {
		return tm.accessToken, nil
	}

	if err := tm.refreshLocked(ctx); err != nil {
		return "", err
	}
	return tm.accessToken, nil
}

// forceRefresh replaces a token the server rejected. When another caller
// already replaced stale, the current token is returned without a request.
func (tm *tokenManager) forceRefresh(ctx context.Context, stale string) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.accessToken != stale && tm.validLocked() {
		return tm.accessToken, nil
	}

	if err := tm.refreshLocked(ctx); err != nil {
		return "", err
	}
	return tm.accessToken, nil
}

func (tm *tokenManager) validLocked() bool {
	if tm.accessToken == "" {
		return false
	}
	return tm.expiresAt.IsZero() || tm.now().Before(tm.expiresAt)
}

// refreshLocked obtains a new token. The password grant is preferred; the
// refresh_token grant is used when no password is configured.
func (tm *tokenManager) refreshLocked(ctx context.Context) error {
	data := url.Values{"client_id": {tm.clientID}}
	if tm.scope != "" {
		data.Set("scope", tm.scope)
	}

	switch {
	case tm.username != "" && tm.password != "":
		data.Set("grant_type", "password")
		data.Set("username", tm.username)
		data.Set("password", tm.password)
	case tm.refreshToken != "":
		data.Set("grant_type", "refresh_token")
		data.Set("refresh_token", tm.refreshToken)
	default:
		return &AuthenticationError{Description: "no password or refresh token available to obtain a token"}
	}

	tokenResp, err := tm.requestToken(ctx, data)
	if err != nil {
		return err
	}

	tm.accessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		tm.refreshToken = tokenResp.RefreshToken
	}
	tm.expiresAt = tm.expiry(tokenResp)
	tm.scopes = make(map[string]bool)
	for _, s := range httpx.ParseSpaceDelimitedFields(tokenResp.Scope) {
		tm.scopes[s] = true
	}
	return nil
}

// expiry derives the refresh deadline from expires_in, falling back to the
// exp claim when the access token is a JWT.
func (tm *tokenManager) expiry(resp *tokenResponse) time.Time {
	if resp.ExpiresIn > 0 {
		lifetime := time.Duration(resp.ExpiresIn) * time.Second
		if lifetime > 2*refreshBuffer {
			lifetime -= refreshBuffer
		}
		return tm.now().Add(lifetime)
	}
	return tm.expiryFromJWT(resp.AccessToken)
}

// expiryFromJWT reads the exp claim without verifying the signature; the
// server is the one that verifies tokens. Opaque tokens return zero.
func (tm *tokenManager) expiryFromJWT(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Add(-refreshBuffer)
}

// grantedScopes returns a copy of the scopes granted with the current token.
func (tm *tokenManager) grantedScopes() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	scopes := make([]string, 0, len(tm.scopes))
	for scope := range tm.scopes {
		scopes = append(scopes, scope)
	}
	return scopes
}

func (tm *tokenManager) requestToken(ctx context.Context, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		tm.tokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Method: http.MethodPost, URL: tm.tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Method: http.MethodPost, URL: tm.tokenURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, msg := parseErrorMessage(body)
		if msg == code {
			msg = ""
		}
		if code == "" && msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &AuthenticationError{
			StatusCode:  resp.StatusCode,
			Code:        code,
			Description: msg,
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, &AuthenticationError{
			StatusCode:  resp.StatusCode,
			Description: "token response did not contain an access_token",
		}
	}

	return &tokenResp, nil
}
