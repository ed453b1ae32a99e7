// Package errors provides the structured error type used throughout the
// weights service. Every error that crosses a package boundary carries a
// machine-readable [Code] that determines how the transport layer responds
// to the client and whether upstream callers may retry.
//
// The taxonomy is deliberately small. One property matters more than the
// rest: authentication failures, missing permissions, and ownership
// violations all map to the same client-visible response, so that a caller
// probing the API cannot distinguish "bad token" from "valid token, not
// your record". See [Error.HTTPStatus].
package errors
