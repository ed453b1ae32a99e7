package auth

import (
	"encoding/base64"
	"encoding/json"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

// HeaderClaims is the header the authorization gate writes verified claims
// into for downstream consumers that read claims from headers rather than
// the request context. The gate removes any client-supplied value before
// writing its own, so the header is trustworthy inside the service only.
const HeaderClaims = "X-Jwt-Claims"

// ClaimSet holds the identity and capabilities established by verifying a
// token. Handlers receive a ClaimSet via the request context; they never
// re-parse the token themselves.
type ClaimSet struct {
	// Subject is the owner identity all data access is scoped to.
	// Verification guarantees it is non-empty.
	Subject string

	// Permissions are the recognized capabilities from the token's
	// "permissions" claim. May be empty.
	Permissions PermissionSet

	claims map[string]any
}

// Claims returns a copy of the raw token claims. Mutating the returned
// map does not affect the ClaimSet.
func (c *ClaimSet) Claims() map[string]any {
	out := make(map[string]any, len(c.claims))
	for k, v := range c.claims {
		out[k] = v
	}
	return out
}

// serializedClaims is the wire form used for the claims header.
type serializedClaims struct {
	Subject     string         `json:"sub"`
	Permissions []string       `json:"permissions"`
	Claims      map[string]any `json:"claims,omitempty"`
}

// SerializeClaims encodes a ClaimSet as base64url JSON for transport in
// the claims header.
func SerializeClaims(c *ClaimSet) (string, error) {
	if c == nil {
		return "", werr.New(werr.CodeAuthenticationInvalid, "auth: cannot serialize nil claim set")
	}
	payload, err := json.Marshal(serializedClaims{
		Subject:     c.Subject,
		Permissions: c.Permissions.Strings(),
		Claims:      c.claims,
	})
	if err != nil {
		return "", werr.Wrap(err, werr.CodeInternal, "auth: failed to marshal claims")
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DeserializeClaims decodes a claims header value produced by
// SerializeClaims.
func DeserializeClaims(encoded string) (*ClaimSet, error) {
	if encoded == "" {
		return nil, werr.New(werr.CodeAuthenticationInvalid, "auth: empty claims header")
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: failed to decode claims header")
	}
	var sc serializedClaims
	if err := json.Unmarshal(payload, &sc); err != nil {
		return nil, werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: failed to unmarshal claims header")
	}
	if sc.Subject == "" {
		return nil, werr.New(werr.CodeAuthenticationInvalid, "auth: claims header missing subject")
	}

	perms := make(PermissionSet, len(sc.Permissions))
	for _, s := range sc.Permissions {
		if p, ok := scopePermissions[s]; ok {
			perms[p] = struct{}{}
		}
	}
	return &ClaimSet{
		Subject:     sc.Subject,
		Permissions: perms,
		claims:      sc.Claims,
	}, nil
}
