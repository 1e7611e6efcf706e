package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/badgr/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the outbound rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultLimit allows 10 requests per second towards a single host.
// Override with: RATELIMIT_BADGR_REQUESTS, RATELIMIT_BADGR_WINDOW_SEC, RATELIMIT_BADGR_BURST
var DefaultLimit = RateLimitConfig{
	RequestsPerWindow: 10,
	Window:            time.Second,
	Burst:             10,
}

// Disabled is a config that lets every request through.
var Disabled = RateLimitConfig{}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_BADGR_REQUESTS, RATELIMIT_BADGR_WINDOW_SEC, RATELIMIT_BADGR_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// Enabled reports whether the config describes an actual limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

// KeyExtractor groups outbound requests for rate limiting purposes.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor limits per destination host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// RateLimitTransport is an http.RoundTripper that blocks each request until
// its key's limiter has a token available, or the request context is done.
type RateLimitTransport struct {
	// Next is the transport used to send the request. When nil the value of
	// http.DefaultTransport at call time is used.
	Next http.RoundTripper

	config RateLimitConfig
	key    KeyExtractor
	rl     *rateLimiter
}

// NewRateLimitTransport wraps next with a limiter built from config.
// A disabled config returns a transport that only forwards.
func NewRateLimitTransport(next http.RoundTripper, config RateLimitConfig, key KeyExtractor) *RateLimitTransport {
	if key == nil {
		key = HostKeyExtractor
	}

	t := &RateLimitTransport{Next: next, config: config, key: key}
	if config.Enabled() {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		t.rl = &rateLimiter{
			rate:  rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
			burst: burst,
		}
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.rl != nil {
		ctx := req.Context()
		limiter := t.rl.getLimiter(t.key(req))

		if !limiter.Allow() {
			slogx.FromContext(ctx).Debug("rate limit: waiting for token",
				"host", req.URL.Host,
				"limit", t.config.RequestsPerWindow,
				"window", t.config.Window.String(),
			)
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}
	}

	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}
