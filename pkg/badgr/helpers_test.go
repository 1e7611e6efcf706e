package badgr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/badgr/pkg/httpx"
	"github.com/aussiebroadwan/badgr/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal Badgr server. The token endpoint hands out
// tok-1, tok-2, ... and API routes are registered per test.
type fakeServer struct {
	*httptest.Server
	mux *http.ServeMux

	tokenCalls atomic.Int32
	apiCalls   atomic.Int32

	mu         sync.Mutex
	tokenForms []map[string]string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{mux: http.NewServeMux()}
	fs.mux.HandleFunc("POST /o/token", fs.handleToken)
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath {
			fs.apiCalls.Add(1)
		}
		fs.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) handleToken(w http.ResponseWriter, r *http.Request) {
	n := fs.tokenCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	fs.mu.Lock()
	fs.tokenForms = append(fs.tokenForms, form)
	fs.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  fmt.Sprintf("tok-%d", n),
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"token_type":    "Bearer",
		"expires_in":    86400,
		"scope":         "rw:profile rw:issuer rw:backpack",
	})
}

func (fs *fakeServer) lastTokenForm() map[string]string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if len(fs.tokenForms) == 0 {
		return nil
	}
	return fs.tokenForms[len(fs.tokenForms)-1]
}

func (fs *fakeServer) handle(pattern string, h http.HandlerFunc) {
	fs.mux.HandleFunc(pattern, h)
}

func (fs *fakeServer) config() Config {
	return Config{
		Username: "admin@example.com",
		Password: "secret",
		ClientID: "public",
		BaseURL:  fs.URL,
	}
}

func (fs *fakeServer) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	return newTestClient(t, fs.config(), opts...)
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{
		WithLogger(slogx.Discard()),
		WithRateLimit(httpx.Disabled),
	}, opts...)

	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEnvelope writes a successful v2 envelope with the given results.
func writeEnvelope(w http.ResponseWriter, results ...any) {
	if results == nil {
		results = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": map[string]any{"success": true, "description": "ok"},
		"result": results,
	})
}

func issuerJSON(id, name string) map[string]any {
	return map[string]any{
		"entityType":  KindIssuer,
		"entityId":    id,
		"openBadgeId": "https://badgr.test/public/issuers/" + id,
		"name":        name,
		"email":       "issuer@example.com",
		"url":         "https://example.com",
	}
}

func badgeClassJSON(id, issuer, name string) map[string]any {
	return map[string]any{
		"entityType":        KindBadgeClass,
		"entityId":          id,
		"issuer":            issuer,
		"name":              name,
		"description":       "A badge",
		"criteriaNarrative": "Do the thing",
	}
}

func assertionJSON(id, badgeClass, email string) map[string]any {
	return map[string]any{
		"entityType": KindAssertion,
		"entityId":   id,
		"badgeclass": badgeClass,
		"recipient": map[string]any{
			"identity": email,
			"type":     "email",
			"hashed":   false,
		},
		"issuedOn": "2024-01-02T03:04:05Z",
		"revoked":  false,
	}
}

func requireValidationError(t *testing.T, err error, field string) {
	t.Helper()

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, field)
}

func requireAPIError(t *testing.T, err error, status int) *APIError {
	t.Helper()

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	return apiErr
}
