package badgr

import (
	"context"
	"net/http"
)

const (
	issuersPath    = "/v2/issuers"
	issuerStaffFmt = "/v1/issuer/issuers/%s/staff"
)

// Issuer is an organisation that defines badge classes.
type Issuer struct {
	Entity

	Name        string        `json:"name,omitempty"`
	Image       string        `json:"image,omitempty"`
	Email       string        `json:"email,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Staff       []StaffMember `json:"staff,omitempty"`

	backend backend
}

// IssuerRequest contains the data needed to create an issuer.
type IssuerRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`

	// Email must be one of the authenticated user's verified addresses
	Email string `json:"email" validate:"required,email"`
	URL   string `json:"url" validate:"required,url"`

	// Image is a data URI, see EncodeImage
	Image string `json:"image,omitempty"`
}

// Staff edit actions and roles accepted by EditStaff.
const (
	StaffAdd    = "add"
	StaffModify = "modify"
	StaffRemove = "remove"

	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleStaff  = "staff"
)

type staffEditRequest struct {
	Action string `json:"action" validate:"required,oneof=add modify remove"`
	Email  string `json:"email" validate:"required,email"`
	Role   string `json:"role" validate:"required,oneof=owner editor staff"`
}

// NewIssuer returns an Issuer bound to c with only its id set. Attributes
// stay empty until Fetch. With a nil c every action returns a
// *ValidationError.
func NewIssuer(c *Client, id string) *Issuer {
	return &Issuer{Entity: Entity{EntityID: id, EntityType: KindIssuer}, backend: bind(c)}
}

func (i *Issuer) kind() string { return KindIssuer }

func (i *Issuer) attach(b backend) { i.backend = b }

func (i *Issuer) path() string { return issuersPath + "/" + i.EntityID }

func (i *Issuer) requireClient() error { return requireBackend(i.backend) }

func (i *Issuer) requireID() error { return requireEntity(i.backend, i.EntityID) }

func (i *Issuer) String() string { return "Issuer(" + i.EntityID + ")" }

type issuerWire Issuer

// UnmarshalJSON replaces the snapshot, keeping the client reference.
func (i *Issuer) UnmarshalJSON(data []byte) error {
	var w issuerWire
	extra, err := unmarshalWithExtra(data, &w)
	if err != nil {
		return err
	}
	b := i.backend
	*i = Issuer(w)
	i.backend = b
	i.Extra = extra
	return nil
}

// MarshalJSON encodes known attributes and the preserved unknown ones.
func (i Issuer) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(issuerWire(i), i.Extra)
}

// Fetch replaces the snapshot with the server's current state.
func (i *Issuer) Fetch(ctx context.Context) error {
	if err := i.requireID(); err != nil {
		return err
	}
	return fetchInto(ctx, i.backend, i.path(), i)
}

// Update sends the snapshot to the server and re-fetches it.
func (i *Issuer) Update(ctx context.Context) error {
	if err := i.requireID(); err != nil {
		return err
	}
	return updateFrom(ctx, i.backend, i.path(), i)
}

// Delete removes the issuer on the server.
func (i *Issuer) Delete(ctx context.Context) error {
	if err := i.requireID(); err != nil {
		return err
	}
	return deleteAt(ctx, i.backend, i.path())
}

// Create creates a new issuer and populates i with the result.
func (i *Issuer) Create(ctx context.Context, req IssuerRequest) error {
	if err := i.requireClient(); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	return createInto(ctx, i.backend, issuersPath, req, i)
}

// FetchBadgeClasses lists the badge classes of this issuer. When the client
// tracks unique badge names, the index is refreshed from the result.
func (i *Issuer) FetchBadgeClasses(ctx context.Context) ([]*BadgeClass, error) {
	badges, err := i.fetchBadgeClasses(ctx)
	if err != nil {
		return nil, err
	}

	if idx := i.backend.badgeNames(); idx != nil {
		for _, b := range badges {
			idx.save(i.backend.logger(), b)
		}
	}
	return badges, nil
}

func (i *Issuer) fetchBadgeClasses(ctx context.Context) ([]*BadgeClass, error) {
	if err := i.requireID(); err != nil {
		return nil, err
	}

	env, err := i.backend.call(ctx, request{method: http.MethodGet, path: i.path() + "/badgeclasses"})
	if err != nil {
		return nil, err
	}
	return decodeResults[BadgeClass](i.backend, env.Result)
}

// FetchAssertions lists assertions issued by this issuer.
func (i *Issuer) FetchAssertions(ctx context.Context) ([]*Assertion, error) {
	if err := i.requireID(); err != nil {
		return nil, err
	}

	env, err := i.backend.call(ctx, request{method: http.MethodGet, path: i.path() + "/assertions"})
	if err != nil {
		return nil, err
	}
	return decodeResults[Assertion](i.backend, env.Result)
}

// CreateBadgeClass creates a badge class owned by this issuer. The Issuer
// field of req is overwritten with i's id.
func (i *Issuer) CreateBadgeClass(ctx context.Context, req BadgeClassRequest) (*BadgeClass, error) {
	if err := i.requireID(); err != nil {
		return nil, err
	}

	req.Issuer = i.EntityID
	bc := &BadgeClass{backend: i.backend}
	if err := bc.Create(ctx, req); err != nil {
		return nil, err
	}
	return bc, nil
}

// EditStaff adds, modifies or removes a staff member and re-fetches the
// issuer so Staff reflects the change.
func (i *Issuer) EditStaff(ctx context.Context, action, email, role string) error {
	if err := i.requireID(); err != nil {
		return err
	}

	req := staffEditRequest{Action: action, Email: email, Role: role}
	if err := validateStruct(req); err != nil {
		return err
	}

	_, err := i.backend.call(ctx, request{
		method: http.MethodPost,
		path:   sprintfPath(issuerStaffFmt, i.EntityID),
		body:   req,
		plain:  true,
	})
	if err != nil {
		return err
	}

	return i.Fetch(ctx)
}
