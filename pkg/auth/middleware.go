package auth

import (
	"log/slog"
	"net/http"
)

// HeaderAuthorization is the request header the bearer token is read from.
const HeaderAuthorization = "Authorization"

// HTTPMiddleware returns an HTTP middleware that authenticates incoming
// requests before they reach resource handlers.
//
// The middleware performs the following steps:
//  1. Extracts the "Authorization" header (bearer token)
//  2. Verifies the token using the provided [Verifier]
//  3. Stores the resulting [ClaimSet] in the request context
//  4. Replaces any client-supplied claims header with the verified claims
//  5. Passes the enriched request to the next handler
//
// A missing header and a failed verification are indistinguishable to the
// client: both produce a 401 response with an empty body. The reason is
// logged server-side only.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /api/weights", handleList)
//	handler := auth.HTTPMiddleware(verifier)(mux)
//	http.ListenAndServe(":8080", handler)
func HTTPMiddleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Clients must never be able to inject claims directly.
			r.Header.Del(HeaderClaims)

			authHeader := r.Header.Get(HeaderAuthorization)
			if authHeader == "" {
				slog.DebugContext(ctx, "auth: request without authorization header",
					"path", r.URL.Path,
				)
				reject(w)
				return
			}

			claims, err := verifier.Verify(ctx, authHeader)
			if err != nil {
				slog.InfoContext(ctx, "auth: token verification failed",
					"error", err,
					"path", r.URL.Path,
				)
				reject(w)
				return
			}

			// Store the verified claims in the request context.
			ctx = ContextWithClaims(ctx, claims)

			// Rewrite the claims header for downstream header-based
			// consumers. Serialization failure is not fatal: the context
			// value remains the source of truth.
			if encoded, err := SerializeClaims(claims); err == nil {
				r.Header.Set(HeaderClaims, encoded)
			} else {
				slog.WarnContext(ctx, "auth: failed to serialize claims for header propagation",
					"error", err,
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// reject writes a 401 response with an empty body. The body stays empty
// so the response carries no hint about why the request was refused.
func reject(w http.ResponseWriter) {
	w.WriteHeader(http.StatusUnauthorized)
}
