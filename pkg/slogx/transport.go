package slogx

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDHeader carries the per-request id to the server.
const RequestIDHeader = "X-Request-ID"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a lexicographically sortable ULID string using a
// monotonic entropy source.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// Transport logs outbound requests and attaches a contextual logger, tagged
// with the request id, to the request context for the transports below it.
type Transport struct {
	// Next is the transport used to send the request. When nil the value of
	// http.DefaultTransport at call time is used.
	Next http.RoundTripper

	// Logger is used when the request context carries no logger.
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	base := FromContextOr(req.Context(), t.Logger)
	if base == nil {
		base = slog.Default()
	}

	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = NewRequestID()
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, reqID)
	}

	ctx := WithContext(req.Context(), base.With("method", req.Method, "path", req.URL.Path))
	ctx = WithRequestID(ctx, reqID)
	logger := FromContext(ctx)
	req = req.WithContext(ctx)

	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}

	resp, err := next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_request_failed",
			"duration_ms", duration,
			"err", err,
		)
		return nil, err
	}

	logger.Debug("http_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
