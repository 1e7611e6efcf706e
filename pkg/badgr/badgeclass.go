package badgr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const badgeClassesPath = "/v2/badgeclasses"

// BadgeClass is a template describing an earnable credential.
type BadgeClass struct {
	Entity

	Issuer            string      `json:"issuer,omitempty"`
	IssuerOpenBadgeID string      `json:"issuerOpenBadgeId,omitempty"`
	Name              string      `json:"name,omitempty"`
	Image             string      `json:"image,omitempty"`
	Description       string      `json:"description,omitempty"`
	CriteriaURL       string      `json:"criteriaUrl,omitempty"`
	CriteriaNarrative string      `json:"criteriaNarrative,omitempty"`
	Alignments        []Alignment `json:"alignments,omitempty"`
	Tags              []string    `json:"tags,omitempty"`
	Expires           *Expiration `json:"expires,omitempty"`

	backend backend
}

// BadgeClassRequest contains the data needed to create a badge class.
// At least one of CriteriaURL and CriteriaNarrative is required.
type BadgeClassRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Issuer      string `json:"issuer" validate:"required"`

	// Image is a base64 png or svg data URI, see EncodeImage
	Image string `json:"image" validate:"required"`

	CriteriaURL       string      `json:"criteriaUrl,omitempty" validate:"omitempty,url"`
	CriteriaNarrative string      `json:"criteriaNarrative,omitempty"`
	Alignments        []Alignment `json:"alignments" validate:"dive"`
	Tags              []string    `json:"tags"`
	Expires           *Expiration `json:"expires,omitempty"`
}

// AssertionFilter narrows BadgeClass.FetchAssertions. Zero values are not sent.
type AssertionFilter struct {
	Recipient string
	Num       int
}

func (f AssertionFilter) query() url.Values {
	q := url.Values{}
	if f.Recipient != "" {
		q.Set("recipient", f.Recipient)
	}
	if f.Num > 0 {
		q.Set("num", strconv.Itoa(f.Num))
	}
	return q
}

// NewBadgeClass returns a BadgeClass bound to c with only its id set.
func NewBadgeClass(c *Client, id string) *BadgeClass {
	return &BadgeClass{Entity: Entity{EntityID: id, EntityType: KindBadgeClass}, backend: bind(c)}
}

// NewBadgeClassByName returns a BadgeClass bound to c whose id is resolved
// from the badge name index. The client must track unique badge names and
// the issuer's names must be loaded, see Client.LoadBadgeNames.
func NewBadgeClassByName(c *Client, issuerID, name string) (*BadgeClass, error) {
	if c == nil {
		return nil, requireBackend(nil)
	}
	if c.names == nil {
		return nil, invalid("uniqueBadgeNames", "badge name index is disabled")
	}

	id, ok := c.names.lookup(issuerID, name)
	if !ok {
		return nil, invalid("name", fmt.Sprintf("no badge class named %q is indexed for issuer %s", name, issuerID))
	}
	return NewBadgeClass(c, id), nil
}

func (bc *BadgeClass) kind() string { return KindBadgeClass }

func (bc *BadgeClass) attach(b backend) { bc.backend = b }

func (bc *BadgeClass) path() string { return badgeClassesPath + "/" + bc.EntityID }

func (bc *BadgeClass) requireClient() error { return requireBackend(bc.backend) }

func (bc *BadgeClass) requireID() error { return requireEntity(bc.backend, bc.EntityID) }

func (bc *BadgeClass) String() string { return "BadgeClass(" + bc.EntityID + ")" }

type badgeClassWire BadgeClass

// UnmarshalJSON replaces the snapshot, keeping the client reference.
func (bc *BadgeClass) UnmarshalJSON(data []byte) error {
	var w badgeClassWire
	extra, err := unmarshalWithExtra(data, &w)
	if err != nil {
		return err
	}
	b := bc.backend
	*bc = BadgeClass(w)
	bc.backend = b
	bc.Extra = extra
	return nil
}

// MarshalJSON encodes known attributes and the preserved unknown ones.
func (bc BadgeClass) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(badgeClassWire(bc), bc.Extra)
}

// Fetch replaces the snapshot with the server's current state.
func (bc *BadgeClass) Fetch(ctx context.Context) error {
	if err := bc.requireID(); err != nil {
		return err
	}
	return fetchInto(ctx, bc.backend, bc.path(), bc)
}

// Update sends the snapshot to the server and re-fetches it.
func (bc *BadgeClass) Update(ctx context.Context) error {
	if err := bc.requireID(); err != nil {
		return err
	}
	return updateFrom(ctx, bc.backend, bc.path(), bc)
}

// Delete removes the badge class on the server.
func (bc *BadgeClass) Delete(ctx context.Context) error {
	if err := bc.requireID(); err != nil {
		return err
	}
	return deleteAt(ctx, bc.backend, bc.path())
}

// Create creates a new badge class and populates bc with the result. When
// the client tracks unique badge names, a name already used by the issuer is
// rejected before the request and the new name is indexed afterwards.
func (bc *BadgeClass) Create(ctx context.Context, req BadgeClassRequest) error {
	if err := bc.requireClient(); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.CriteriaURL == "" && req.CriteriaNarrative == "" {
		return invalid("criteriaNarrative", "at least one of criteriaUrl and criteriaNarrative is required")
	}
	if req.Alignments == nil {
		req.Alignments = []Alignment{}
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}

	idx := bc.backend.badgeNames()
	if idx != nil {
		if existing, ok := idx.lookup(req.Issuer, req.Name); ok {
			return invalid("name", fmt.Sprintf("badge class name %q is already used by %s", req.Name, existing))
		}
	}

	if err := createInto(ctx, bc.backend, badgeClassesPath, req, bc); err != nil {
		return err
	}

	if idx != nil {
		idx.save(bc.backend.logger(), bc)
	}
	return nil
}

// FetchAssertions lists the assertions issued from this badge class.
// Fetch replaces the snapshot with the server's current state.
func (bc *BadgeClass) FetchAssertions(ctx context.Context, filter AssertionFilter) ([]*Assertion, error) {
	if err := bc.requireID(); err != nil {
		return nil, err
	}

	env, err := bc.backend.call(ctx, request{
		method: http.MethodGet,
		path:   bc.path() + "/assertions",
		query:  filter.query(),
	})
	if err != nil {
		return nil, err
	}
	return decodeResults[Assertion](bc.backend, env.Result)
}

// Issue awards this badge class to recipientEmail and returns the new
// assertion.
//
// Example:
//
//	a, err := bc.Issue(ctx, "jane@example.com",
//		badgr.WithNarrative("Completed the course"),
//		badgr.WithNotify(false),
//	)
func (bc *BadgeClass) Issue(ctx context.Context, recipientEmail string, opts ...IssueOption) (*Assertion, error) {
	if err := bc.requireID(); err != nil {
		return nil, err
	}

	req := AssertionRequest{BadgeClass: bc.EntityID, RecipientEmail: recipientEmail, Notify: true}
	for _, opt := range opts {
		opt(&req)
	}

	a := &Assertion{backend: bc.backend}
	if err := a.Create(ctx, req); err != nil {
		return nil, err
	}
	return a, nil
}
