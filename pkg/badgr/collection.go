package badgr

import "context"

const collectionsPath = "/v2/backpack/collections"

// Collection is a named group of assertions in the user's backpack.
type Collection struct {
	Entity

	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	ShareURL    string   `json:"shareUrl,omitempty"`
	Published   bool     `json:"published,omitempty"`
	Assertions  []string `json:"assertions,omitempty"`

	backend backend
}

// NewCollection returns a Collection bound to c with only its id set.
func NewCollection(c *Client, id string) *Collection {
	return &Collection{Entity: Entity{EntityID: id, EntityType: KindCollection}, backend: bind(c)}
}

func (col *Collection) kind() string { return KindCollection }

func (col *Collection) attach(b backend) { col.backend = b }

func (col *Collection) path() string { return collectionsPath + "/" + col.EntityID }

func (col *Collection) requireID() error { return requireEntity(col.backend, col.EntityID) }

func (col *Collection) String() string { return "Collection(" + col.EntityID + ")" }

type collectionWire Collection

// UnmarshalJSON replaces the snapshot, keeping the client reference.
func (col *Collection) UnmarshalJSON(data []byte) error {
	var w collectionWire
	extra, err := unmarshalWithExtra(data, &w)
	if err != nil {
		return err
	}
	b := col.backend
	*col = Collection(w)
	col.backend = b
	col.Extra = extra
	return nil
}

// MarshalJSON encodes known attributes and the preserved unknown ones.
func (col Collection) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(collectionWire(col), col.Extra)
}

// Fetch replaces the snapshot with the server's current state.
func (col *Collection) Fetch(ctx context.Context) error {
	if err := col.requireID(); err != nil {
		return err
	}
	return fetchInto(ctx, col.backend, col.path(), col)
}

// Update sends the snapshot to the server and re-fetches it.
func (col *Collection) Update(ctx context.Context) error {
	if err := col.requireID(); err != nil {
		return err
	}
	return updateFrom(ctx, col.backend, col.path(), col)
}

// Delete removes the collection from the backpack.
func (col *Collection) Delete(ctx context.Context) error {
	if err := col.requireID(); err != nil {
		return err
	}
	return deleteAt(ctx, col.backend, col.path())
}
