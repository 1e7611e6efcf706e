package badgr

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntityJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"entityType": "Issuer",
		"entityId": "iss-1",
		"name": "Example Org",
		"badgrDomain": "badgr.io",
		"extensions": {"extensions:ContactExtension": {"email": "a@example.com"}}
	}`)

	t.Run("unknown fields are preserved", func(t *testing.T) {
		var issuer Issuer
		require.NoError(t, json.Unmarshal(data, &issuer))

		require.Equal(t, "iss-1", issuer.ID())
		require.Equal(t, "Example Org", issuer.Name)
		require.Len(t, issuer.Extra, 2)
		require.JSONEq(t, `"badgr.io"`, string(issuer.Extra["badgrDomain"]))
		require.NotContains(t, issuer.Extra, "entityId")
	})

	t.Run("marshal keeps id and unknown fields", func(t *testing.T) {
		var issuer Issuer
		require.NoError(t, json.Unmarshal(data, &issuer))

		out, err := json.Marshal(&issuer)
		require.NoError(t, err)

		var roundTrip Issuer
		require.NoError(t, json.Unmarshal(out, &roundTrip))
		require.Equal(t, issuer.ID(), roundTrip.ID())
		require.Equal(t, issuer.Extra, roundTrip.Extra)
		require.Equal(t,
			`{"extensions:ContactExtension":{"email":"a@example.com"}}`,
			string(roundTrip.Extra["extensions"]),
		)
	})

	t.Run("known fields win over extra", func(t *testing.T) {
		issuer := Issuer{
			Entity: Entity{
				EntityID: "iss-1",
				Extra:    map[string]json.RawMessage{"name": json.RawMessage(`"stale"`)},
			},
			Name: "Fresh",
		}

		out, err := json.Marshal(issuer)
		require.NoError(t, err)
		require.JSONEq(t, `{"entityId": "iss-1", "name": "Fresh"}`, string(out))
	})

	t.Run("unmarshal keeps backend", func(t *testing.T) {
		c := &Client{}
		bc := NewBadgeClass(c, "bc-1")
		require.NoError(t, json.Unmarshal([]byte(`{"entityId": "bc-2", "name": "Gold"}`), bc))
		require.Equal(t, "bc-2", bc.ID())
		require.Same(t, c, bc.backend)
	})
}

func TestEntityRequiresID(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t)
	c := fs.client(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"issuer fetch", func() error { return NewIssuer(c, "").Fetch(ctx) }},
		{"issuer update", func() error { return NewIssuer(c, "").Update(ctx) }},
		{"issuer delete", func() error { return NewIssuer(c, "").Delete(ctx) }},
		{"issuer badge classes", func() error { _, err := NewIssuer(c, "").FetchBadgeClasses(ctx); return err }},
		{"issuer assertions", func() error { _, err := NewIssuer(c, "").FetchAssertions(ctx); return err }},
		{"issuer staff", func() error { return NewIssuer(c, "").EditStaff(ctx, StaffAdd, "a@example.com", RoleStaff) }},
		{"badge class fetch", func() error { return NewBadgeClass(c, "").Fetch(ctx) }},
		{"badge class issue", func() error { _, err := NewBadgeClass(c, "").Issue(ctx, "jane@example.com"); return err }},
		{"badge class assertions", func() error {
			_, err := NewBadgeClass(c, "").FetchAssertions(ctx, AssertionFilter{})
			return err
		}},
		{"assertion revoke", func() error { return NewAssertion(c, "").Revoke(ctx, "reason") }},
		{"assertion fetch", func() error { return NewAssertion(c, "").Fetch(ctx) }},
		{"collection fetch", func() error { return NewCollection(c, "").Fetch(ctx) }},
		{"client fetch issuer", func() error { _, err := c.FetchIssuer(ctx, ""); return err }},
		{"malformed id", func() error { return NewIssuer(c, "../admin").Fetch(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireValidationError(t, tt.call(), "entityId")
		})
	}

	require.Zero(t, fs.tokenCalls.Load())
	require.Zero(t, fs.apiCalls.Load())
}

func TestEntityWithoutClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var decoded Assertion
	require.NoError(t, json.Unmarshal([]byte(`{"entityId": "a-1"}`), &decoded))

	literal := &BadgeClass{Entity: Entity{EntityID: "bc-1"}}

	tests := []struct {
		name string
		call func() error
	}{
		{"decoded assertion revoke", func() error { return decoded.Revoke(ctx, "reason") }},
		{"decoded assertion fetch", func() error { return decoded.Fetch(ctx) }},
		{"literal badge class issue", func() error { _, err := literal.Issue(ctx, "jane@example.com"); return err }},
		{"literal badge class create", func() error {
			return literal.Create(ctx, BadgeClassRequest{
				Name:              "Gold",
				Description:       "Gold badge",
				Issuer:            "iss-1",
				Image:             "data:image/png;base64,AAAA",
				CriteriaNarrative: "Win",
			})
		}},
		{"literal badge class assertions", func() error {
			_, err := literal.FetchAssertions(ctx, AssertionFilter{})
			return err
		}},
		{"nil client issuer fetch", func() error { return NewIssuer(nil, "iss-1").Fetch(ctx) }},
		{"nil client issuer create", func() error {
			return NewIssuer(nil, "").Create(ctx, IssuerRequest{
				Name:        "Example Org",
				Description: "Issues badges",
				Email:       "issuer@example.com",
				URL:         "https://example.com",
			})
		}},
		{"nil client issuer badge classes", func() error { _, err := NewIssuer(nil, "iss-1").FetchBadgeClasses(ctx); return err }},
		{"nil client assertion create", func() error {
			return NewAssertion(nil, "").Create(ctx, AssertionRequest{BadgeClass: "bc-1", RecipientEmail: "jane@example.com"})
		}},
		{"nil client collection delete", func() error { return NewCollection(nil, "col-1").Delete(ctx) }},
		{"nil client badge class by name", func() error { _, err := NewBadgeClassByName(nil, "iss-1", "Gold"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { err = tt.call() })
			requireValidationError(t, err, "client")
		})
	}

	require.False(t, decoded.Revoked)
}

func TestEntityUpdate(t *testing.T) {
	t.Parallel()

	var put map[string]any
	fs := newFakeServer(t)
	fs.handle("PUT /v2/badgeclasses/bc-1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeBody(r, &put))
		writeEnvelope(w, put)
	})
	fs.handle("GET /v2/badgeclasses/bc-1", func(w http.ResponseWriter, r *http.Request) {
		updated := badgeClassJSON("bc-1", "iss-1", "Silver")
		updated["customField"] = "kept"
		writeEnvelope(w, updated)
	})
	c := fs.client(t)

	bc := NewBadgeClass(c, "bc-1")
	bc.Name = "Silver"
	bc.Extra = map[string]json.RawMessage{"customField": json.RawMessage(`"kept"`)}

	require.NoError(t, bc.Update(context.Background()))
	require.Equal(t, "Silver", put["name"])
	require.Equal(t, "kept", put["customField"])
	require.Equal(t, "Do the thing", bc.CriteriaNarrative)
	require.EqualValues(t, 2, fs.apiCalls.Load())
}

func TestEntityDelete(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t)
	fs.handle("DELETE /v2/issuers/iss-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := fs.client(t)

	require.NoError(t, NewIssuer(c, "iss-1").Delete(context.Background()))
}

func TestIssuerCreate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	fs := newFakeServer(t)
	fs.handle("POST /v2/issuers", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeBody(r, &body))
		writeEnvelope(w, issuerJSON("iss-new", body["name"].(string)))
	})
	c := fs.client(t)

	t.Run("valid request", func(t *testing.T) {
		issuer := NewIssuer(c, "")
		err := issuer.Create(context.Background(), IssuerRequest{
			Name:        "Example Org",
			Description: "Issues badges",
			Email:       "issuer@example.com",
			URL:         "https://example.com",
		})
		require.NoError(t, err)
		require.Equal(t, "iss-new", issuer.ID())
		require.Equal(t, "issuer@example.com", body["email"])
		require.NotContains(t, body, "image")
	})

	t.Run("invalid fields", func(t *testing.T) {
		err := NewIssuer(c, "").Create(context.Background(), IssuerRequest{
			Name: "Example Org",
			URL:  "example",
		})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.Fields, "description")
		require.Contains(t, vErr.Fields, "email")
		require.Contains(t, vErr.Fields, "url")
	})
}

func TestIssuerEditStaff(t *testing.T) {
	t.Parallel()

	var body staffEditRequest
	fs := newFakeServer(t)
	fs.handle("POST /v1/issuer/issuers/iss-1/staff", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeBody(r, &body))
		writeJSON(w, http.StatusOK, []map[string]any{{"role": body.Role}})
	})
	fs.handle("GET /v2/issuers/iss-1", func(w http.ResponseWriter, r *http.Request) {
		issuer := issuerJSON("iss-1", "Example Org")
		issuer["staff"] = []map[string]any{{"role": "editor"}}
		writeEnvelope(w, issuer)
	})
	c := fs.client(t)
	issuer := NewIssuer(c, "iss-1")

	t.Run("adds staff and refetches", func(t *testing.T) {
		require.NoError(t, issuer.EditStaff(context.Background(), StaffAdd, "staff@example.com", RoleEditor))
		require.Equal(t, staffEditRequest{Action: "add", Email: "staff@example.com", Role: "editor"}, body)
		require.Len(t, issuer.Staff, 1)
		require.Equal(t, RoleEditor, issuer.Staff[0].Role)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		err := issuer.EditStaff(context.Background(), "promote", "staff@example.com", RoleEditor)
		requireValidationError(t, err, "action")
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		err := issuer.EditStaff(context.Background(), StaffModify, "staff@example.com", "admin")
		requireValidationError(t, err, "role")
	})
}

func TestIssuerFetchChildren(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t)
	fs.handle("GET /v2/issuers/iss-1/badgeclasses", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, badgeClassJSON("bc-1", "iss-1", "Gold"), badgeClassJSON("bc-2", "iss-1", "Silver"))
	})
	fs.handle("GET /v2/issuers/iss-1/assertions", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, assertionJSON("a-1", "bc-1", "jane@example.com"))
	})
	c := fs.client(t)
	issuer := NewIssuer(c, "iss-1")

	badges, err := issuer.FetchBadgeClasses(context.Background())
	require.NoError(t, err)
	require.Len(t, badges, 2)
	require.Equal(t, "Silver", badges[1].Name)

	assertions, err := issuer.FetchAssertions(context.Background())
	require.NoError(t, err)
	require.Len(t, assertions, 1)
	require.Equal(t, "bc-1", assertions[0].BadgeClass)
}

func TestBadgeClassCreate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	fs := newFakeServer(t)
	fs.handle("POST /v2/badgeclasses", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeBody(r, &body))
		writeEnvelope(w, badgeClassJSON("bc-new", body["issuer"].(string), body["name"].(string)))
	})
	c := fs.client(t)

	req := BadgeClassRequest{
		Name:              "Gold",
		Description:       "Top marks",
		Image:             "data:image/png;base64,AAAA",
		CriteriaNarrative: "Score 100%",
	}

	t.Run("from issuer", func(t *testing.T) {
		bc, err := NewIssuer(c, "iss-1").CreateBadgeClass(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, "bc-new", bc.ID())
		require.Equal(t, "iss-1", body["issuer"])
		require.Equal(t, []any{}, body["alignments"])
		require.Equal(t, []any{}, body["tags"])
	})

	t.Run("requires criteria", func(t *testing.T) {
		noCriteria := req
		noCriteria.Issuer = "iss-1"
		noCriteria.CriteriaNarrative = ""

		err := NewBadgeClass(c, "").Create(context.Background(), noCriteria)
		requireValidationError(t, err, "criteriaNarrative")
	})

	t.Run("validates alignments", func(t *testing.T) {
		withAlignment := req
		withAlignment.Issuer = "iss-1"
		withAlignment.Alignments = []Alignment{{TargetName: "Maths"}}

		err := NewBadgeClass(c, "").Create(context.Background(), withAlignment)
		requireValidationError(t, err, "alignments[0].targetUrl")
	})
}

func TestBadgeClassFetchAssertions(t *testing.T) {
	t.Parallel()

	var query map[string]string
	fs := newFakeServer(t)
	fs.handle("GET /v2/badgeclasses/bc-1/assertions", func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		writeEnvelope(w, assertionJSON("a-1", "bc-1", "jane@example.com"))
	})
	c := fs.client(t)
	bc := NewBadgeClass(c, "bc-1")

	t.Run("no filter", func(t *testing.T) {
		assertions, err := bc.FetchAssertions(context.Background(), AssertionFilter{})
		require.NoError(t, err)
		require.Len(t, assertions, 1)
		require.Empty(t, query)
	})

	t.Run("recipient and num", func(t *testing.T) {
		_, err := bc.FetchAssertions(context.Background(), AssertionFilter{Recipient: "jane@example.com", Num: 5})
		require.NoError(t, err)
		require.Equal(t, map[string]string{"recipient": "jane@example.com", "num": "5"}, query)
	})
}

func TestAssertionRevoke(t *testing.T) {
	t.Parallel()

	var body revokeRequest
	fs := newFakeServer(t)
	fs.handle("DELETE /v2/assertions/a-1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeBody(r, &body))
		writeEnvelope(w)
	})
	fs.handle("DELETE /v2/assertions/a-gone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status": map[string]any{"success": false, "description": "Assertion is already revoked."},
		})
	})
	c := fs.client(t)

	t.Run("success marks revoked", func(t *testing.T) {
		a := NewAssertion(c, "a-1")
		require.NoError(t, a.Revoke(context.Background(), "Issued in error"))
		require.True(t, a.Revoked)
		require.Equal(t, "Issued in error", a.RevocationReason)
		require.Equal(t, "Issued in error", body.RevocationReason)
	})

	t.Run("already revoked", func(t *testing.T) {
		a := NewAssertion(c, "a-gone")
		err := a.Revoke(context.Background(), "Issued in error")
		apiErr := requireAPIError(t, err, http.StatusNotFound)
		require.Equal(t, "Assertion is already revoked.", apiErr.Message)
		require.False(t, a.Revoked)
	})

	t.Run("reason required", func(t *testing.T) {
		err := NewAssertion(c, "a-1").Revoke(context.Background(), "")
		requireValidationError(t, err, "revocation_reason")
	})
}
