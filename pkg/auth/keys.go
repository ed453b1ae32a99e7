package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

// HTTPClient abstracts the HTTP client used for fetching the JSON Web Key
// Set. This allows callers to provide clients with custom timeouts or
// transport settings. The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxJWKSResponseSize caps the JWKS response body at 1 MB to prevent
// resource exhaustion from a misbehaving endpoint.
const maxJWKSResponseSize = 1 << 20

// KeyResolver fetches public verification keys from a JWKS endpoint and
// caches them in memory. Keys are cached for a configurable TTL; a lookup
// for an unknown key id forces a refetch so that key rotation at the
// provider is picked up without a restart.
//
// KeyResolver is safe for concurrent use by multiple goroutines. Concurrent
// refreshes may race to store the cache entry; the entry is replaced as a
// whole under the write lock, so readers never observe a torn key set.
type KeyResolver struct {
	jwksURL string
	ttl     time.Duration
	client  HTTPClient

	mu        sync.RWMutex
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

// NewKeyResolver creates a KeyResolver for the given JWKS URL. If client
// is nil, a default [http.Client] with a 10-second timeout is used.
func NewKeyResolver(jwksURL string, ttl time.Duration, client HTTPClient) *KeyResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeyResolver{
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  client,
	}
}

// ResolveKey returns the public key for the given key id, fetching the
// JWKS if the cache is cold, expired, or does not contain the kid.
//
// Failures return a *[werr.Error] with code [werr.CodeAuthenticationKey].
// Callers treat key resolution failure as a verification failure, never
// as a fatal process error.
func (r *KeyResolver) ResolveKey(ctx context.Context, kid string) (any, error) {
	r.mu.RLock()
	if r.keys != nil && time.Since(r.fetchedAt) < r.ttl {
		key, ok := r.keys[kid]
		r.mu.RUnlock()
		if ok {
			return key, nil
		}
		// Unknown kid in a fresh cache; may be a rotated key. Refetch.
	} else {
		r.mu.RUnlock()
	}

	keys, err := r.fetchKeySet(ctx)
	if err != nil {
		return nil, werr.Wrapf(err, werr.CodeAuthenticationKey,
			"auth: failed to fetch key set from %s", r.jwksURL)
	}

	r.mu.Lock()
	r.keys = keys
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, werr.Newf(werr.CodeAuthenticationKey,
			"auth: key id %q not found in key set", kid)
	}
	return key, nil
}

// jwksDocument is the JSON structure of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry is a single key in a JWKS response. Only the fields needed for
// RSA and EC public key reconstruction are included.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetchKeySet performs an HTTP GET against the JWKS URL and builds a map
// of key id to public key. Malformed individual keys are skipped; a
// document yielding no usable keys is not an error here (the kid lookup
// fails instead).
func (r *KeyResolver) fetchKeySet(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create JWKS request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: JWKS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read JWKS response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("auth: failed to parse JWKS JSON: %w", err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pubKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue
			}
			keys[k.Kid] = pubKey
		case "EC":
			pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue
			}
			keys[k.Kid] = pubKey
		}
	}
	return keys, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
