package errors

// Code is a machine-readable error code. Codes follow the pattern
// CATEGORY_XXX, where the category prefix selects the HTTP response class
// and XXX distinguishes conditions within a category. Codes are stable:
// once assigned they do not change meaning.
type Code string

// Error code categories:
//
//	VAL_xxx     - request validation failures
//	AUTH_xxx    - token verification failures
//	AUTHZ_xxx   - permission and ownership failures
//	NF_xxx      - resource not found
//	INT_xxx     - internal failures
//	UNAVAIL_xxx - a dependency is unavailable
//	TIMEOUT_xxx - an operation exceeded its deadline
const (
	// CodeValidation indicates a malformed request payload or parameter.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationRange indicates a value outside its permitted range
	// (e.g., a weight with more than two fractional digits).
	CodeValidationRange Code = "VAL_003"

	// CodeAuthentication indicates a general token verification failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token's exp claim has elapsed.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates a malformed token, a bad
	// signature, or claims that fail issuer/audience/subject checks.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationKey indicates the signing key referenced by the
	// token could not be resolved from the key set. Callers treat this as
	// a verification failure, never as a fatal condition.
	CodeAuthenticationKey Code = "AUTH_004"

	// CodeAuthorization indicates the caller lacks a required permission.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationOwnership indicates the caller attempted to touch
	// a record owned by a different identity.
	CodeAuthorizationOwnership Code = "AUTHZ_002"

	// CodeNotFound indicates a requested record does not exist.
	CodeNotFound Code = "NF_001"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates invalid or unloadable configuration.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable indicates the database or another dependency is
	// unreachable. This is the one class clients may retry.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeTimeout indicates an operation exceeded its deadline.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the code (e.g., "VAL", "AUTHZ").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
