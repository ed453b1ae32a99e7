package auth

import (
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// middlewareTestSetup builds a verifier with a live JWKS server and a
// signing key for producing valid tokens.
func middlewareTestSetup(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	privKey, pubKey := jwtTestGenerateRSAKeyPair(t)
	srv := jwtTestServeJWKS(t, map[string]*rsa.PublicKey{testKid: pubKey}, nil)
	return newTestVerifier(t, srv.URL), privKey
}

func TestHTTPMiddleware_MissingHeaderRejectedWithEmptyBody(t *testing.T) {
	t.Parallel()
	verifier, _ := middlewareTestSetup(t)

	handler := HTTPMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/weights", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String(), "rejection body must be empty")
}

func TestHTTPMiddleware_InvalidTokenRejectedWithEmptyBody(t *testing.T) {
	t.Parallel()
	verifier, _ := middlewareTestSetup(t)

	handler := HTTPMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/weights", nil)
	req.Header.Set(HeaderAuthorization, "Bearer not-a-valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHTTPMiddleware_ValidTokenReachesHandlerWithClaims(t *testing.T) {
	t.Parallel()
	verifier, privKey := middlewareTestSetup(t)
	token := jwtTestGenerateRSAToken(t, privKey, testKid, validClaims())

	var observed *ClaimSet
	handler := HTTPMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok, "claims must be present in the handler context")
		observed = claims
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/weights", nil)
	req.Header.Set(HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, observed)
	assert.Equal(t, "user-1", observed.Subject)
	assert.True(t, observed.Permissions.Has(ReadWeights))
}

func TestHTTPMiddleware_ClientSuppliedClaimsHeaderIsReplaced(t *testing.T) {
	t.Parallel()
	verifier, privKey := middlewareTestSetup(t)
	token := jwtTestGenerateRSAToken(t, privKey, testKid, validClaims())

	forged, err := SerializeClaims(&ClaimSet{
		Subject:     "attacker",
		Permissions: PermissionSet{DeleteWeights: {}},
	})
	require.NoError(t, err)

	handler := HTTPMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The header must reflect the verified token, never client input.
		claims, desErr := DeserializeClaims(r.Header.Get(HeaderClaims))
		require.NoError(t, desErr)
		assert.Equal(t, "user-1", claims.Subject)
		assert.False(t, claims.Permissions.Has(DeleteWeights))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/weights", nil)
	req.Header.Set(HeaderAuthorization, "Bearer "+token)
	req.Header.Set(HeaderClaims, forged)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPMiddleware_ForgedClaimsHeaderWithoutTokenRejected(t *testing.T) {
	t.Parallel()
	verifier, _ := middlewareTestSetup(t)

	forged, err := SerializeClaims(&ClaimSet{
		Subject:     "attacker",
		Permissions: PermissionSet{ReadWeights: {}, AddWeights: {}, DeleteWeights: {}},
	})
	require.NoError(t, err)

	handler := HTTPMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("a claims header alone must never authenticate a request")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/weights", nil)
	req.Header.Set(HeaderClaims, forged)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestSerializeClaims_RoundTrip(t *testing.T) {
	t.Parallel()
	original := &ClaimSet{
		Subject:     "user-42",
		Permissions: PermissionSet{ReadWeights: {}, AddWeights: {}},
		claims:      map[string]any{"sub": "user-42", "custom": "value"},
	}

	encoded, err := SerializeClaims(original)
	require.NoError(t, err)

	decoded, err := DeserializeClaims(encoded)
	require.NoError(t, err)
	assert.Equal(t, original.Subject, decoded.Subject)
	assert.Equal(t, original.Permissions, decoded.Permissions)
	assert.Equal(t, "value", decoded.Claims()["custom"])
}

func TestDeserializeClaims_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not base64", "!!!"},
		{"not json", "bm90LWpzb24"},
		{"missing subject", "eyJwZXJtaXNzaW9ucyI6W119"}, // {"permissions":[]}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DeserializeClaims(tt.encoded)
			assert.Error(t, err)
		})
	}
}

func TestClaimSet_ClaimsReturnsCopy(t *testing.T) {
	t.Parallel()
	cs := &ClaimSet{Subject: "user-1", claims: map[string]any{"sub": "user-1"}}

	copied := cs.Claims()
	copied["sub"] = "tampered"

	assert.Equal(t, "user-1", cs.claims["sub"], "mutating the copy must not affect the claim set")
}
