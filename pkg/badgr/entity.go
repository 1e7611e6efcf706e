package badgr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
)

// Entity types as reported in the entityType field.
const (
	KindIssuer     = "Issuer"
	KindBadgeClass = "BadgeClass"
	KindAssertion  = "Assertion"
	KindCollection = "BackpackCollection"
)

// backend is the entity's non-owning reference to the client that created
// it. Entities use it to issue further calls; the client must outlive them.
type backend interface {
	call(ctx context.Context, r request) (*envelope, error)
	logger() *slog.Logger
	badgeNames() *badgeNameIndex
}

// Entity holds the attributes shared by every remote resource.
type Entity struct {
	EntityType  string `json:"entityType,omitempty"`
	EntityID    string `json:"entityId,omitempty"`
	OpenBadgeID string `json:"openBadgeId,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty"`

	// Extra preserves attributes this package does not model, so that an
	// Update sends back everything the server returned.
	Extra map[string]json.RawMessage `json:"-"`
}

// ID returns the entity id, empty until the entity was fetched or created.
func (e *Entity) ID() string { return e.EntityID }

func (e *Entity) kindOf() string { return e.EntityType }

// snapshot is implemented by pointers to the concrete entity types.
type snapshot interface {
	kind() string
	kindOf() string
	attach(b backend)
}

// ============================================================================
// Shared Actions
// ============================================================================

// fetchInto GETs the item endpoint and replaces dst with the first result.
func fetchInto(ctx context.Context, b backend, path string, dst snapshot) error {
	env, err := b.call(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return err
	}
	return decodeFirst(env, http.MethodGet, path, dst)
}

// updateFrom PUTs src and re-fetches it so the snapshot reflects the server.
func updateFrom(ctx context.Context, b backend, path string, src snapshot) error {
	if _, err := b.call(ctx, request{method: http.MethodPut, path: path, body: src}); err != nil {
		return err
	}
	return fetchInto(ctx, b, path, src)
}

func deleteAt(ctx context.Context, b backend, path string) error {
	_, err := b.call(ctx, request{method: http.MethodDelete, path: path})
	return err
}

// createInto POSTs body and replaces dst with the created resource.
func createInto(ctx context.Context, b backend, path string, body any, dst snapshot) error {
	env, err := b.call(ctx, request{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return err
	}
	return decodeFirst(env, http.MethodPost, path, dst)
}

// bind converts c to a backend, keeping a nil client nil so that actions
// on the entity fail with a *ValidationError instead of panicking.
func bind(c *Client) backend {
	if c == nil {
		return nil
	}
	return c
}

// requireBackend rejects entities that are not bound to a client.
func requireBackend(b backend) error {
	if b == nil {
		return invalid("client", "entity is not bound to a client")
	}
	return nil
}

// requireEntity rejects entities that cannot address a remote resource.
func requireEntity(b backend, id string) error {
	if err := requireBackend(b); err != nil {
		return err
	}
	return validateEntityID(id)
}

// sprintfPath formats an API path with an escaped entity id.
func sprintfPath(format, id string) string {
	return fmt.Sprintf(format, url.PathEscape(id))
}

// ============================================================================
// Result Decoding
// ============================================================================

// decodeFirst decodes result[0] into dst. An empty result is reported as a
// 404 since the server found nothing to return.
func decodeFirst(env *envelope, method, path string, dst snapshot) error {
	if len(env.Result) == 0 {
		return &APIError{
			StatusCode: http.StatusNotFound,
			Method:     method,
			Path:       path,
			Message:    "response contained no result",
			Body:       env.raw,
		}
	}
	if err := json.Unmarshal(env.Result[0], dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", dst.kind(), err)
	}
	return nil
}

// decodeResults decodes each result into a T attached to b. Items whose
// entityType names another kind are skipped.
func decodeResults[T any, P interface {
	*T
	snapshot
}](b backend, raws []json.RawMessage) ([]*T, error) {
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		v := new(T)
		p := P(v)
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", p.kind(), err)
		}
		if got := p.kindOf(); got != "" && got != p.kind() {
			b.logger().Debug("skipping result of unexpected type", "want", p.kind(), "got", got)
			continue
		}
		p.attach(b)
		out = append(out, v)
	}
	return out, nil
}

// ============================================================================
// JSON With Unknown Fields
// ============================================================================

// unmarshalWithExtra decodes data into v (a pointer to a struct) and returns
// the top-level keys v does not declare.
func unmarshalWithExtra(data []byte, v any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	known := jsonFieldNames(reflect.TypeOf(v).Elem())
	for k, raw := range all {
		if _, ok := known[k]; ok {
			delete(all, k)
			continue
		}
		// stored compact so a marshal round trip yields identical bytes
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		all[k] = buf.Bytes()
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra encodes v and merges extra keys that v does not set.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}

var fieldNameCache sync.Map // map[reflect.Type]map[string]struct{}

// jsonFieldNames lists the JSON keys of a struct type, including promoted
// fields of embedded structs.
func jsonFieldNames(t reflect.Type) map[string]struct{} {
	if cached, ok := fieldNameCache.Load(t); ok {
		return cached.(map[string]struct{})
	}

	names := make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		name := strings.SplitN(tag, ",", 2)[0]

		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			for n := range jsonFieldNames(f.Type) {
				names[n] = struct{}{}
			}
			continue
		}
		if !f.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names[name] = struct{}{}
	}

	fieldNameCache.Store(t, names)
	return names
}
