/*
Package badgr provides a client for the Badgr credential issuing REST API.

# Overview

A Client holds the credentials and bearer token of one Badgr account. It
fetches Issuers, BadgeClasses, Assertions and backpack Collections, and every
entity it returns keeps a reference to the Client so that actions such as
issuing or revoking can be called on the entity itself:

	client, err := badgr.NewClient(badgr.Config{
		Username: "admin@example.com",
		Password: "secret",
		ClientID: "public",
		BaseURL:  "https://api.badgr.io",
	})

	issuers, err := client.FetchIssuers(ctx)

	bc, err := client.FetchBadgeClass(ctx, "k3bFPbC6Qpiv6xpTClVFBQ")
	assertion, err := bc.Issue(ctx, "jane@example.com", badgr.WithNarrative("Completed the course"))

	err = assertion.Revoke(ctx, "Issued in error")

Entities can also be built from an id and populated later:

	issuer := badgr.NewIssuer(client, "uD8ztRqAS-yyJGvy9PLWoA")
	err := issuer.Fetch(ctx)

# Configuration

Config can be filled directly, or read from the environment with LoadConfig
(BADGR_USERNAME, BADGR_PASSWORD, BADGR_CLIENT_ID, BADGR_SCOPE, BADGR_BASE_URL,
BADGR_ACCESS_TOKEN, BADGR_REFRESH_TOKEN, BADGR_UNIQUE_BADGE_NAMES,
BADGR_TIMEOUT, BADGR_LOG_LEVEL, BADGR_LOG_FORMAT). LoadConfigFile loads a .env
file first.

# Authentication

The token is obtained with the OAuth2 password grant on first use, or with
the refresh_token grant when no password is configured. It is refreshed 30
seconds before it expires. Expiry is taken from expires_in, or from the exp
claim when the server issues JWTs.

When the server answers 401, the token is refreshed once and the request
retried once. A second 401 is returned as an *APIError.

# Errors

  - *AuthenticationError: the token endpoint rejected the credentials
  - *APIError: any other non-2xx response, or an envelope with success=false
  - *ConnectionError: the request never got a response
  - *ValidationError: a missing entity id or invalid parameter, before any request

Use errors.As to inspect them, or IsNotFound and IsUnauthorized.

# Unique Badge Names

With Config.UniqueBadgeNames set, the client indexes badge class names per
issuer. Creating a badge class with a name the issuer already uses is
rejected, and assertions can be created by issuer and badge name:

	err := client.LoadBadgeNames(ctx, issuerID)

	a := badgr.NewAssertion(client, "")
	err = a.Create(ctx, badgr.AssertionRequest{
		IssuerID:       issuerID,
		BadgeName:      "Gold Star",
		RecipientEmail: "jane@example.com",
		Notify:         true,
	})

	gold, err := badgr.NewBadgeClassByName(client, issuerID, "Gold Star")
*/
package badgr
