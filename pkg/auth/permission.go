package auth

// Permission is an internal capability granted to a caller. Handlers gate
// operations on Permission values, never on raw token scope strings.
type Permission string

const (
	// ReadWeights grants listing of the caller's own weight records.
	ReadWeights Permission = "read:weights"
	// AddWeights grants creation and update of the caller's own weight
	// records.
	AddWeights Permission = "add:weights"
	// DeleteWeights grants deletion of the caller's own weight records.
	DeleteWeights Permission = "delete:weights"
)

// scopePermissions maps token scope strings to internal permissions.
// Scopes without an entry are silently dropped during extraction.
var scopePermissions = map[string]Permission{
	"read:weights":   ReadWeights,
	"add:weights":    AddWeights,
	"delete:weights": DeleteWeights,
}

// PermissionSet is the set of permissions granted by a verified token.
// The zero value (nil) is a valid, empty set.
type PermissionSet map[Permission]struct{}

// Has reports whether the set contains the given permission. A token
// carrying no recognized scopes yields an empty set, so Has returns
// false for every permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Strings returns the contained permissions as scope strings. The order
// is unspecified.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	return out
}

// ExtractPermissions reads the "permissions" claim from a decoded claim
// map and maps each recognized scope string to its internal permission.
// Unknown scopes and non-string entries are dropped without error; a
// missing or malformed claim yields an empty set. Extraction never fails:
// an insufficient set surfaces later as an authorization denial.
func ExtractPermissions(claims map[string]any) PermissionSet {
	set := make(PermissionSet)

	raw, ok := claims["permissions"]
	if !ok {
		return set
	}

	switch values := raw.(type) {
	case []any:
		for _, v := range values {
			scope, ok := v.(string)
			if !ok {
				continue
			}
			if p, ok := scopePermissions[scope]; ok {
				set[p] = struct{}{}
			}
		}
	case []string:
		for _, scope := range values {
			if p, ok := scopePermissions[scope]; ok {
				set[p] = struct{}{}
			}
		}
	}
	return set
}
