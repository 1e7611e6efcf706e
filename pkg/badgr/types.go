package badgr

import "encoding/json"

// ============================================================================
// Response Envelope
// ============================================================================

// envelope is the v2 API response wrapper:
//
//	{"status": {"success": true, "description": "ok"}, "result": [...]}
type envelope struct {
	Status *envelopeStatus   `json:"status,omitempty"`
	Result []json.RawMessage `json:"result"`

	// raw is the undecoded body, used by endpoints that are not enveloped
	raw []byte
}

type envelopeStatus struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
}

// ============================================================================
// Token Types
// ============================================================================

// tokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from POST /o/token for both password and refresh_token grants.
type tokenResponse struct {
	// AccessToken is the bearer token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is used to obtain new access tokens without the password
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// AccessToken describes one of the authenticated user's issued tokens, as
// listed by GET /v2/auth/tokens.
type AccessToken struct {
	EntityType  string           `json:"entityType"`
	EntityID    string           `json:"entityId"`
	Application TokenApplication `json:"application"`
	Scope       string           `json:"scope"`
	Expires     string           `json:"expires"`
	Created     string           `json:"created"`
}

// TokenApplication is the OAuth2 application a token was issued to.
type TokenApplication struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Image string `json:"image,omitempty"`
}

// ============================================================================
// Shared Resource Types
// ============================================================================

// Recipient identifies who an assertion was issued to.
type Recipient struct {
	// Identity is the email address (or url/telephone) of the recipient
	Identity string `json:"identity" validate:"required"`

	// Type is one of "email", "url", "telephone"
	Type string `json:"type" validate:"required,oneof=email url telephone"`

	Hashed            *bool  `json:"hashed,omitempty"`
	Salt              string `json:"salt,omitempty"`
	PlaintextIdentity string `json:"plaintextIdentity,omitempty"`
}

// Evidence attached to an assertion.
type Evidence struct {
	URL       string `json:"url,omitempty" validate:"omitempty,url"`
	Narrative string `json:"narrative,omitempty"`
}

// Alignment links a badge class to an educational framework target.
type Alignment struct {
	TargetName        string `json:"targetName" validate:"required"`
	TargetURL         string `json:"targetUrl" validate:"required,url"`
	TargetDescription string `json:"targetDescription,omitempty"`
	TargetFramework   string `json:"targetFramework,omitempty"`
	TargetCode        string `json:"targetCode,omitempty"`
}

// Expiration is the relative lifetime of assertions of a badge class.
type Expiration struct {
	Amount   int    `json:"amount" validate:"gt=0"`
	Duration string `json:"duration" validate:"oneof=days weeks months years"`
}

// StaffMember is an entry of an issuer's staff list.
type StaffMember struct {
	Role        string          `json:"role"`
	UserProfile json.RawMessage `json:"userProfile,omitempty"`
}

// RevocationResult is the per-assertion outcome of a bulk revoke.
type RevocationResult struct {
	EntityID string `json:"entityId"`
	Revoked  bool   `json:"revoked"`
	Reason   string `json:"reason,omitempty"`
}

// ============================================================================
// User Types
// ============================================================================

// UserRequest contains the data needed to register a new user account.
type UserRequest struct {
	FirstName          string `json:"first_name" validate:"required"`
	LastName           string `json:"last_name" validate:"required"`
	Email              string `json:"email" validate:"required,email"`
	Password           string `json:"password" validate:"required"`
	MarketingOptIn     bool   `json:"marketing_opt_in"`
	AgreedTermsService bool   `json:"agreed_terms_service"`
}

// User is the profile returned after registration.
type User struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Slug      string `json:"slug,omitempty"`
}
