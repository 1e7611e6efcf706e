package badgr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/badgr/pkg/slogx"
)

// request describes a single API call relative to the base URL.
type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// anonymous requests are sent without an Authorization header
	anonymous bool

	// plain responses (v1 endpoints) are not wrapped in the v2 envelope
	plain bool
}

// url builds a complete URL by appending the path and query to the base URL.
func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// call performs an API request and decodes the response envelope.
// A 401 triggers exactly one forced token refresh and one retry.
func (c *Client) call(ctx context.Context, r request) (*envelope, error) {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if r.anonymous {
		status, body, err := c.doRequest(ctx, r, payload, "")
		if err != nil {
			return nil, err
		}
		return decodeEnvelope(r, status, body)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.doRequest(ctx, r, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		slogx.FromContextOr(ctx, c.log).Debug("access token rejected, refreshing",
			"method", r.method,
			"path", r.path,
		)

		if token, err = c.tokens.forceRefresh(ctx, token); err != nil {
			return nil, err
		}
		if status, body, err = c.doRequest(ctx, r, payload, token); err != nil {
			return nil, err
		}
	}

	return decodeEnvelope(r, status, body)
}

// doRequest sends one HTTP request and reads the whole body. Transport
// failures are returned as *ConnectionError.
func (c *Client) doRequest(
	ctx context.Context,
	r request,
	payload []byte,
	token string,
) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	target := c.url(r.path, r.query)
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &ConnectionError{Method: r.method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &ConnectionError{Method: r.method, URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return resp.StatusCode, respBody, nil
}

// decodeEnvelope maps the status code to an error or decodes the v2
// envelope. Empty 2xx bodies decode to an empty envelope.
func decodeEnvelope(r request, status int, body []byte) (*envelope, error) {
	if status < 200 || status >= 300 {
		return nil, parseErrorResponse(r.method, r.path, status, body)
	}

	env := &envelope{raw: body}
	if r.plain || len(bytes.TrimSpace(body)) == 0 {
		return env, nil
	}

	if err := json.Unmarshal(body, env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Status != nil && !env.Status.Success {
		return nil, &APIError{
			StatusCode: status,
			Method:     r.method,
			Path:       r.path,
			Message:    env.Status.Description,
			Body:       body,
		}
	}

	return env, nil
}
