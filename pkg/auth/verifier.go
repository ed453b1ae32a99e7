// Package auth implements token-based authentication and authorization
// for the weights service: JWKS key resolution, JWT verification,
// permission extraction, and the HTTP gate that ties them together.
//
// Verification is all-or-nothing. A token is either fully verified
// (signature, algorithm, expiry, subject, issuer, audience) or the
// request is rejected; there is no partially-trusted state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

const (
	// maxTokenSize caps the accepted token length. Real tokens are well
	// under this; larger inputs are rejected before any parsing work.
	maxTokenSize = 8192

	// DefaultClockSkew is the leeway applied to time-based claims.
	DefaultClockSkew = 30 * time.Second

	// DefaultKeyTTL is how long fetched JWKS keys are cached.
	DefaultKeyTTL = 15 * time.Minute

	tracerName = "github.com/weightworks/weights-service/pkg/auth"
)

// allowedAlgorithms is the closed set of accepted signing algorithms.
// Symmetric algorithms and "none" are never accepted.
var allowedAlgorithms = []string{"RS256", "ES256"}

// Config holds the settings for token verification.
type Config struct {
	// JWKSURL is the endpoint public verification keys are fetched from.
	JWKSURL string `yaml:"jwks_url" json:"jwks_url" env:"AUTH_JWKS_URL" required:"true"`

	// Issuer is the exact issuer value tokens must carry.
	Issuer string `yaml:"issuer" json:"issuer" env:"AUTH_ISSUER" required:"true"`

	// Audience must be contained in the token's audience list.
	Audience string `yaml:"audience" json:"audience" env:"AUTH_AUDIENCE" required:"true"`

	// ClockSkew is the leeway applied when validating expiry. Defaults
	// to DefaultClockSkew.
	ClockSkew time.Duration `yaml:"clock_skew" json:"clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// KeyTTL is how long resolved keys are cached before a refetch.
	// Defaults to DefaultKeyTTL.
	KeyTTL time.Duration `yaml:"key_ttl" json:"key_ttl" env:"AUTH_KEY_TTL" envDefault:"15m"`

	// HTTPClient optionally overrides the client used for JWKS fetches.
	HTTPClient HTTPClient `yaml:"-" json:"-"`
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.JWKSURL == "" {
		return werr.New(werr.CodeValidationRequired, "auth: JWKS URL is required")
	}
	if c.Issuer == "" {
		return werr.New(werr.CodeValidationRequired, "auth: issuer is required")
	}
	if c.Audience == "" {
		return werr.New(werr.CodeValidationRequired, "auth: audience is required")
	}
	if c.ClockSkew < 0 {
		return werr.New(werr.CodeValidationRange, "auth: clock skew must not be negative")
	}
	return nil
}

// Verifier validates bearer tokens against a JWKS-backed key set. It is
// safe for concurrent use; the only shared mutable state is the key
// resolver's cache.
type Verifier struct {
	config   Config
	resolver *KeyResolver
	tracer   trace.Tracer
}

// NewVerifier creates a Verifier from the given configuration.
func NewVerifier(config Config) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ClockSkew == 0 {
		config.ClockSkew = DefaultClockSkew
	}
	if config.KeyTTL == 0 {
		config.KeyTTL = DefaultKeyTTL
	}
	return &Verifier{
		config:   config,
		resolver: NewKeyResolver(config.JWKSURL, config.KeyTTL, config.HTTPClient),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// StripBearerScheme removes a leading "Bearer " scheme from an
// Authorization header value, if present. The comparison is
// case-insensitive. Values without the scheme are returned trimmed of
// surrounding whitespace, so callers may pass either a full header value
// or a bare token.
func StripBearerScheme(value string) string {
	value = strings.TrimSpace(value)
	const prefix = "bearer "
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return value
}

// Verify validates a raw token and returns the claim set it establishes.
// The raw value may carry a "Bearer " scheme prefix.
//
// All failures return a *[werr.Error] in the AUTH category; callers map
// these uniformly to an empty 401 response without distinguishing the
// cause to the client.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*ClaimSet, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Verify")
	defer span.End()

	rawToken = StripBearerScheme(rawToken)
	if rawToken == "" {
		return nil, v.failSpan(span, werr.New(werr.CodeAuthentication, "auth: empty token"))
	}
	if len(rawToken) > maxTokenSize {
		return nil, v.failSpan(span, werr.Newf(werr.CodeAuthenticationInvalid,
			"auth: token exceeds maximum size of %d bytes", maxTokenSize))
	}

	// Reject unsigned tokens before any key resolution happens. The
	// allow-list below would also refuse "none", but an explicit check
	// keeps the rejection independent of parser behavior.
	if err := rejectUnsignedToken(rawToken); err != nil {
		return nil, v.failSpan(span, err)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.keyFunc(ctx),
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.config.ClockSkew),
	)
	if err != nil {
		return nil, v.failSpan(span, classifyError(err))
	}
	if !token.Valid {
		return nil, v.failSpan(span, werr.New(werr.CodeAuthenticationInvalid, "auth: token is not valid"))
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, v.failSpan(span, werr.New(werr.CodeAuthenticationInvalid,
			"auth: token has no subject"))
	}

	claimSet := &ClaimSet{
		Subject:     subject,
		Permissions: ExtractPermissions(claims),
		claims:      claims,
	}
	span.SetAttributes(attribute.Int("auth.permission_count", len(claimSet.Permissions)))
	return claimSet, nil
}

// keyFunc returns the jwt key lookup function backed by the resolver.
func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, werr.New(werr.CodeAuthenticationKey, "auth: token header has no key id")
		}
		return v.resolver.ResolveKey(ctx, kid)
	}
}

// rejectUnsignedToken inspects the token header without verifying the
// signature and refuses tokens declaring the "none" algorithm.
func rejectUnsignedToken(rawToken string) error {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: malformed token")
	}
	if alg, _ := token.Header["alg"].(string); strings.EqualFold(alg, "none") {
		return werr.New(werr.CodeAuthenticationInvalid, "auth: unsigned tokens are not accepted")
	}
	return nil
}

// classifyError maps jwt parse failures to authentication error codes.
// The distinctions are for logs and metrics only; clients see a uniform
// rejection regardless of code.
func classifyError(err error) error {
	var authErr *werr.Error
	if errors.As(err, &authErr) {
		return authErr
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return werr.Wrap(err, werr.CodeAuthenticationExpired, "auth: token has expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: malformed token")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: invalid token signature")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: invalid token issuer")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: invalid token audience")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return werr.Wrap(err, werr.CodeAuthenticationInvalid, "auth: token is missing a required claim")
	default:
		return werr.Wrap(err, werr.CodeAuthentication, "auth: token verification failed")
	}
}

// failSpan records an error on the span and returns it unchanged.
func (v *Verifier) failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprintf("%v", err))
	return err
}
