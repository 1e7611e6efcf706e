package badgr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/badgr/pkg/httpx"
	"github.com/aussiebroadwan/badgr/pkg/slogx"
)

const (
	backpackAssertionsPath = "/v2/backpack/assertions"
	revokeAssertionsPath   = "/v2/assertions/revoke"
)

// Client is a client for a Badgr server. It owns the bearer token and is
// safe for concurrent use. Entities returned by the client keep a reference
// to it; the client must outlive them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	tokens *tokenManager

	// names is nil unless Config.UniqueBadgeNames is set
	names *badgeNameIndex
}

type options struct {
	httpClient *http.Client
	transport  http.RoundTripper
	logger     *slog.Logger
	timeout    time.Duration
	rateLimit  *httpx.RateLimitConfig
	scopes     []string
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient uses hc as is, bypassing the logging and rate limiting
// transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTransport sets the transport below the logging and rate limiting
// transports. Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithLogger sets the logger used by the client and its transports.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout overrides Config.Timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit overrides Config.RateLimit. Pass httpx.Disabled to turn
// outbound rate limiting off.
func WithRateLimit(cfg httpx.RateLimitConfig) Option {
	return func(o *options) { o.rateLimit = &cfg }
}

// WithScopes overrides Config.Scope.
func WithScopes(scopes ...string) Option {
	return func(o *options) { o.scopes = scopes }
}

// NewClient validates cfg and returns a Client. No request is made until the
// first call that needs a token; use Authenticate to check credentials early.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.scopes) > 0 {
		cfg.Scope = httpx.JoinFields(o.scopes)
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	if o.rateLimit != nil {
		cfg.RateLimit = *o.rateLimit
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = defaultLogger(cfg)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &slogx.Transport{
				Logger: logger,
				Next:   httpx.NewRateLimitTransport(o.transport, cfg.RateLimit, httpx.HostKeyExtractor),
			},
		}
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		log:        logger,
		tokens:     newTokenManager(httpClient, cfg),
	}
	if cfg.UniqueBadgeNames {
		c.names = newBadgeNameIndex()
	}

	return c, nil
}

func defaultLogger(cfg Config) *slog.Logger {
	if cfg.LogLevel == "" {
		return slog.Default()
	}
	return slogx.New(slogx.Config{
		Service: "badgr",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

func (c *Client) logger() *slog.Logger { return c.log }

func (c *Client) badgeNames() *badgeNameIndex { return c.names }

// Authenticate obtains a token now instead of on the first request.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

// Scopes returns the scopes granted with the current token. It is empty
// before the first token request.
func (c *Client) Scopes() []string {
	return c.tokens.grantedScopes()
}

// ============================================================================
// Issuers
// ============================================================================

// FetchIssuers lists the issuers the authenticated user belongs to.
func (c *Client) FetchIssuers(ctx context.Context) ([]*Issuer, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: issuersPath})
	if err != nil {
		return nil, err
	}
	return decodeResults[Issuer](c, env.Result)
}

// FetchIssuer fetches a single issuer.
func (c *Client) FetchIssuer(ctx context.Context, id string) (*Issuer, error) {
	issuer := NewIssuer(c, id)
	if err := issuer.Fetch(ctx); err != nil {
		return nil, err
	}
	return issuer, nil
}

// ============================================================================
// Badge Classes
// ============================================================================

// FetchBadgeClasses lists the badge classes of every issuer the
// authenticated user belongs to.
func (c *Client) FetchBadgeClasses(ctx context.Context) ([]*BadgeClass, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: badgeClassesPath})
	if err != nil {
		return nil, err
	}
	return decodeResults[BadgeClass](c, env.Result)
}

// FetchBadgeClass fetches a single badge class.
func (c *Client) FetchBadgeClass(ctx context.Context, id string) (*BadgeClass, error) {
	bc := NewBadgeClass(c, id)
	if err := bc.Fetch(ctx); err != nil {
		return nil, err
	}
	return bc, nil
}

// LoadBadgeNames (re)loads the badge name index for an issuer. It fails
// with a *ValidationError when the client does not track unique names.
func (c *Client) LoadBadgeNames(ctx context.Context, issuerID string) error {
	if c.names == nil {
		return invalid("uniqueBadgeNames", "badge name index is disabled")
	}
	badges, err := NewIssuer(c, issuerID).fetchBadgeClasses(ctx)
	if err != nil {
		return err
	}
	c.names.replace(c.log, issuerID, badges)
	return nil
}

// BadgeIDByName returns the id of the badge class called name, as indexed
// by LoadBadgeNames or a previous fetch or create.
func (c *Client) BadgeIDByName(issuerID, name string) (string, bool) {
	if c.names == nil {
		return "", false
	}
	return c.names.lookup(issuerID, name)
}

// ============================================================================
// Assertions
// ============================================================================

// FetchAssertions lists the assertions in the authenticated user's backpack.
func (c *Client) FetchAssertions(ctx context.Context) ([]*Assertion, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: backpackAssertionsPath})
	if err != nil {
		return nil, err
	}
	return decodeResults[Assertion](c, env.Result)
}

// FetchAssertion fetches a single assertion.
func (c *Client) FetchAssertion(ctx context.Context, id string) (*Assertion, error) {
	a := NewAssertion(c, id)
	if err := a.Fetch(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

type bulkRevokeItem struct {
	EntityID         string `json:"entityId"`
	RevocationReason string `json:"revocationReason"`
}

// RevokeAssertions revokes several assertions in one request. An empty
// reason is replaced by DefaultRevocationReason.
func (c *Client) RevokeAssertions(ctx context.Context, ids []string, reason string) ([]RevocationResult, error) {
	if len(ids) == 0 {
		return nil, invalid("entityId", "at least one assertion id is required")
	}
	if reason == "" {
		reason = DefaultRevocationReason
	}

	payload := make([]bulkRevokeItem, 0, len(ids))
	for _, id := range ids {
		if err := validateEntityID(id); err != nil {
			return nil, err
		}
		payload = append(payload, bulkRevokeItem{EntityID: id, RevocationReason: reason})
	}

	env, err := c.call(ctx, request{method: http.MethodPost, path: revokeAssertionsPath, body: payload})
	if err != nil {
		return nil, err
	}

	results := make([]RevocationResult, 0, len(env.Result))
	for _, raw := range env.Result {
		var r RevocationResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("failed to decode revocation result: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

// ============================================================================
// Collections
// ============================================================================

// FetchCollections lists the authenticated user's backpack collections.
func (c *Client) FetchCollections(ctx context.Context) ([]*Collection, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: collectionsPath})
	if err != nil {
		return nil, err
	}
	return decodeResults[Collection](c, env.Result)
}

// FetchCollection fetches a single backpack collection.
func (c *Client) FetchCollection(ctx context.Context, id string) (*Collection, error) {
	col := NewCollection(c, id)
	if err := col.Fetch(ctx); err != nil {
		return nil, err
	}
	return col, nil
}
