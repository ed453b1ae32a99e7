// Package testutil provides shared test helpers for the weights service.
//
// All helpers accept [testing.TB] for compatibility with both tests and
// benchmarks. Functions that halt the test on failure use [require] from
// testify; functions that record failures without stopping use [assert].
//
// Every helper calls t.Helper() so that test failure messages report the
// caller's file and line number rather than this package's.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not a *werr.Error,
// or does not carry the expected error code. This is the primary helper
// for validating service error results.
//
// Example:
//
//	err := repo.Upsert(ctx, "u2", 1, save)
//	testutil.RequireErrorCode(t, err, werr.CodeAuthorizationOwnership)
func RequireErrorCode(t testing.TB, err error, code werr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	appErr, ok := werr.AsError(err)
	require.True(t, ok, "expected *werr.Error, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		appErr.Code, code, appErr.Message)
}

// AssertErrorCode records a test failure (without halting) if err is nil,
// is not a *werr.Error, or does not carry the expected error code.
// Use this in table-driven tests where you want to check all rows.
func AssertErrorCode(t testing.TB, err error, code werr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	appErr, ok := werr.AsError(err)
	if !assert.True(t, ok, "expected *werr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, appErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		appErr.Code, code, appErr.Message)
}

// TempConfigFile creates a temporary file with the given content and
// extension (e.g., ".yaml", ".json") inside t.TempDir(). The file is
// automatically cleaned up when the test finishes.
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config"+ext)
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err, "failed to write temp config file %s", path)
	return path
}

// SetEnv sets an environment variable and registers a cleanup function
// that restores the original value (or unsets it if it was not set)
// when the test completes.
//
// Safe for parallel tests only when each test sets a unique variable.
func SetEnv(t testing.TB, key, value string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	err := os.Setenv(key, value)
	require.NoError(t, err, "failed to set env var %s", key)
	t.Cleanup(func() {
		if existed {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

// AssertJSONContains marshals v to JSON and asserts that the resulting
// JSON string contains the expected substring.
func AssertJSONContains(t testing.TB, v any, expected string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	assert.Contains(t, string(data), expected,
		"expected JSON to contain %q, got: %s", expected, string(data))
}

// AssertJSONNotContains marshals v to JSON and asserts that the
// resulting JSON string does not contain the unexpected substring.
// Useful for verifying that sensitive fields are redacted.
func AssertJSONNotContains(t testing.TB, v any, unexpected string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	assert.NotContains(t, string(data), unexpected,
		"expected JSON to NOT contain %q, got: %s", unexpected, string(data))
}
