package badgr

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/badgr/pkg/httpx"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultScope   = "rw:profile rw:issuer rw:backpack"
	DefaultTimeout = 30 * time.Second

	// DefaultRevocationReason is used by RevokeAssertions when no reason is given.
	DefaultRevocationReason = "Revoked by badgrclient"
)

// Config holds the credential and connection settings of a Client.
// It is read once at construction; the Client never mutates it.
type Config struct {
	Username string // Required unless RefreshToken is set (falls back to BADGR_USERNAME)
	Password string // Required unless RefreshToken is set (falls back to BADGR_PASSWORD)
	ClientID string // Required: OAuth2 client_id
	Scope    string // Optional: space-delimited OAuth2 scope (default: DefaultScope)
	BaseURL  string // Optional: server URL (default: DefaultBaseURL)

	AccessToken  string // Optional: pre-issued access token
	RefreshToken string // Optional: refresh token to use when no password is configured

	// UniqueBadgeNames declares that badge class names are unique per issuer,
	// enabling name based lookups through the client's badge name index.
	UniqueBadgeNames bool

	Timeout   time.Duration         // Optional: HTTP timeout (default: DefaultTimeout)
	RateLimit httpx.RateLimitConfig // Optional: outbound rate limit (zero value disables)
	LogLevel  string                // Optional: debug, info, warn, error; empty keeps slog.Default
	LogFormat string                // Optional: json, text (default: json)
}

// LoadConfig reads a Config from the environment.
func LoadConfig() Config {
	return Config{
		Username:         os.Getenv("BADGR_USERNAME"),
		Password:         os.Getenv("BADGR_PASSWORD"),
		ClientID:         os.Getenv("BADGR_CLIENT_ID"),
		Scope:            getEnvOrDefault("BADGR_SCOPE", DefaultScope),
		BaseURL:          getEnvOrDefault("BADGR_BASE_URL", DefaultBaseURL),
		AccessToken:      os.Getenv("BADGR_ACCESS_TOKEN"),
		RefreshToken:     os.Getenv("BADGR_REFRESH_TOKEN"),
		UniqueBadgeNames: getEnvBoolOrDefault("BADGR_UNIQUE_BADGE_NAMES", false),
		Timeout:          getEnvDurationOrDefault("BADGR_TIMEOUT", DefaultTimeout),
		RateLimit:        httpx.ParseRateLimitFromEnv("BADGR", httpx.DefaultLimit),
		LogLevel:         os.Getenv("BADGR_LOG_LEVEL"),
		LogFormat:        getEnvOrDefault("BADGR_LOG_FORMAT", "json"),
	}
}

// LoadConfigFile loads the given .env files (default ".env") into the
// process environment and then reads the Config. Variables already set in
// the environment win over the file.
func LoadConfigFile(filenames ...string) (Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}
	return LoadConfig(), nil
}

// withDefaults fills unset optional fields. Username and password fall back
// to BADGR_USERNAME and BADGR_PASSWORD.
func (c Config) withDefaults() Config {
	if c.Username == "" {
		c.Username = os.Getenv("BADGR_USERNAME")
	}
	if c.Password == "" {
		c.Password = os.Getenv("BADGR_PASSWORD")
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) hasPassword() bool {
	return c.Username != "" && c.Password != ""
}

// Validate checks the Config is usable to obtain a token.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return invalid("clientId", "required")
	}
	if err := validate.Var(c.BaseURL, "required,url"); err != nil {
		return invalid("baseUrl", "must be a valid URL")
	}

	switch {
	case c.hasPassword():
	case c.RefreshToken != "":
	case c.AccessToken != "":
		return invalid("refreshToken", "a refresh token is required when authenticating with an access token")
	default:
		return invalid("password", "username and password are required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "30s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
