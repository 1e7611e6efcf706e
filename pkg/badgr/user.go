package badgr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	userProfilePath = "/v1/user/profile"
	tokensPath      = "/v2/auth/tokens"
)

// CreateUser registers a new account. The request is sent without a token.
func (c *Client) CreateUser(ctx context.Context, req UserRequest) (*User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	env, err := c.call(ctx, request{
		method:    http.MethodPost,
		path:      userProfilePath,
		body:      req,
		anonymous: true,
		plain:     true,
	})
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(env.raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// FetchTokens lists the access tokens issued to the authenticated user.
func (c *Client) FetchTokens(ctx context.Context) ([]AccessToken, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: tokensPath})
	if err != nil {
		return nil, err
	}

	tokens := make([]AccessToken, 0, len(env.Result))
	for _, raw := range env.Result {
		var t AccessToken
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("failed to decode access token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}
