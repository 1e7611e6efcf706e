package badgr

import (
	"context"
	"net/http"
	"time"
)

const assertionsPath = "/v2/assertions"

// Assertion is a BadgeClass awarded to a recipient.
type Assertion struct {
	Entity

	BadgeClass            string     `json:"badgeclass,omitempty"`
	BadgeClassOpenBadgeID string     `json:"badgeclassOpenBadgeId,omitempty"`
	Issuer                string     `json:"issuer,omitempty"`
	Image                 string     `json:"image,omitempty"`
	Recipient             *Recipient `json:"recipient,omitempty"`
	IssuedOn              string     `json:"issuedOn,omitempty"`
	Narrative             string     `json:"narrative,omitempty"`
	Evidence              []Evidence `json:"evidence,omitempty"`
	Revoked               bool       `json:"revoked,omitempty"`
	RevocationReason      string     `json:"revocationReason,omitempty"`
	Acceptance            string     `json:"acceptance,omitempty"`
	Expires               string     `json:"expires,omitempty"`

	backend backend
}

// AssertionRequest describes an assertion to issue. The badge class is
// either BadgeClass, or IssuerID plus BadgeName when the client tracks
// unique badge names.
type AssertionRequest struct {
	BadgeClass string
	IssuerID   string
	BadgeName  string

	RecipientEmail string

	Narrative string
	Evidence  []Evidence

	// Expires and IssuedOn are ISO8601 datetimes; IssuedOn defaults to now
	Expires  string
	IssuedOn string

	Notify bool
}

// assertionPayload is the body of POST /v2/badgeclasses/{id}/assertions.
type assertionPayload struct {
	Recipient Recipient  `json:"recipient"`
	Narrative string     `json:"narrative,omitempty"`
	Evidence  []Evidence `json:"evidence" validate:"dive"`
	Notify    bool       `json:"notify"`
	Expires   string     `json:"expires,omitempty"`
	IssuedOn  string     `json:"issuedOn"`
}

// IssueOption configures BadgeClass.Issue.
type IssueOption func(*AssertionRequest)

// WithNarrative describes how the badge was earned.
func WithNarrative(narrative string) IssueOption {
	return func(r *AssertionRequest) { r.Narrative = narrative }
}

// WithEvidence attaches evidence to the assertion.
func WithEvidence(evidence ...Evidence) IssueOption {
	return func(r *AssertionRequest) { r.Evidence = append(r.Evidence, evidence...) }
}

// WithExpires sets the expiry date of the assertion.
func WithExpires(t time.Time) IssueOption {
	return func(r *AssertionRequest) { r.Expires = t.UTC().Format(time.RFC3339) }
}

// WithIssuedOn overrides the issue date.
func WithIssuedOn(t time.Time) IssueOption {
	return func(r *AssertionRequest) { r.IssuedOn = t.UTC().Format(time.RFC3339) }
}

// WithNotify sets whether the recipient is emailed. Defaults to true.
func WithNotify(notify bool) IssueOption {
	return func(r *AssertionRequest) { r.Notify = notify }
}

// NewAssertion returns an Assertion bound to c with only its id set.
func NewAssertion(c *Client, id string) *Assertion {
	return &Assertion{Entity: Entity{EntityID: id, EntityType: KindAssertion}, backend: bind(c)}
}

func (a *Assertion) kind() string { return KindAssertion }

func (a *Assertion) attach(b backend) { a.backend = b }

func (a *Assertion) path() string { return assertionsPath + "/" + a.EntityID }

func (a *Assertion) requireClient() error { return requireBackend(a.backend) }

func (a *Assertion) requireID() error { return requireEntity(a.backend, a.EntityID) }

func (a *Assertion) String() string { return "Assertion(" + a.EntityID + ")" }

type assertionWire Assertion

// UnmarshalJSON replaces the snapshot, keeping the client reference.
func (a *Assertion) UnmarshalJSON(data []byte) error {
	var w assertionWire
	extra, err := unmarshalWithExtra(data, &w)
	if err != nil {
		return err
	}
	b := a.backend
	*a = Assertion(w)
	a.backend = b
	a.Extra = extra
	return nil
}

// MarshalJSON encodes known attributes and the preserved unknown ones.
func (a Assertion) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(assertionWire(a), a.Extra)
}

// Fetch replaces the snapshot with the server's current state.
func (a *Assertion) Fetch(ctx context.Context) error {
	if err := a.requireID(); err != nil {
		return err
	}
	return fetchInto(ctx, a.backend, a.path(), a)
}

// Update sends the snapshot to the server and re-fetches it.
func (a *Assertion) Update(ctx context.Context) error {
	if err := a.requireID(); err != nil {
		return err
	}
	return updateFrom(ctx, a.backend, a.path(), a)
}

// Delete removes the assertion on the server. Use Revoke to keep a record
// of why it was withdrawn.
func (a *Assertion) Delete(ctx context.Context) error {
	if err := a.requireID(); err != nil {
		return err
	}
	return deleteAt(ctx, a.backend, a.path())
}

// Create issues a new assertion and populates a with the result.
func (a *Assertion) Create(ctx context.Context, req AssertionRequest) error {
	if err := a.requireClient(); err != nil {
		return err
	}
	badgeID, err := a.resolveBadgeClass(req)
	if err != nil {
		return err
	}
	if err := validateEmail("recipient.identity", req.RecipientEmail); err != nil {
		return err
	}

	payload := assertionPayload{
		Recipient: Recipient{Identity: req.RecipientEmail, Type: "email"},
		Narrative: req.Narrative,
		Evidence:  req.Evidence,
		Notify:    req.Notify,
		Expires:   req.Expires,
		IssuedOn:  req.IssuedOn,
	}
	if payload.Evidence == nil {
		payload.Evidence = []Evidence{}
	}
	if payload.IssuedOn == "" {
		payload.IssuedOn = time.Now().UTC().Format(time.RFC3339)
	}
	if err := validateStruct(payload); err != nil {
		return err
	}

	path := sprintfPath(badgeClassesPath+"/%s/assertions", badgeID)
	return createInto(ctx, a.backend, path, payload, a)
}

// resolveBadgeClass returns the badge class id of req, looking it up by name
// when only the issuer and badge name are given.
func (a *Assertion) resolveBadgeClass(req AssertionRequest) (string, error) {
	if req.BadgeClass != "" {
		return req.BadgeClass, validateEntityID(req.BadgeClass)
	}

	if idx := a.backend.badgeNames(); idx != nil && req.BadgeName != "" {
		if id, ok := idx.lookup(req.IssuerID, req.BadgeName); ok {
			return id, nil
		}
		a.backend.logger().Warn("badge name not indexed, load the issuer's badge names first",
			"issuer", req.IssuerID,
			"badge_name", req.BadgeName,
		)
	}

	return "", invalid("badgeclass", "badge class id is required, or issuer and badge name of an indexed badge class")
}

type revokeRequest struct {
	RevocationReason string `json:"revocation_reason"`
}

// Revoke revokes the assertion with the given reason and marks the snapshot
// revoked. It sends DELETE /v2/assertions/{id} with a revocation_reason
// body; use Client.RevokeAssertions to revoke several with one POST. An
// assertion that no longer exists returns an *APIError with status 404.
func (a *Assertion) Revoke(ctx context.Context, reason string) error {
	if err := a.requireID(); err != nil {
		return err
	}
	if reason == "" {
		return invalid("revocation_reason", "a revocation reason is required")
	}

	_, err := a.backend.call(ctx, request{
		method: http.MethodDelete,
		path:   a.path(),
		body:   revokeRequest{RevocationReason: reason},
	})
	if err != nil {
		return err
	}

	a.Revoked = true
	a.RevocationReason = reason
	return nil
}
