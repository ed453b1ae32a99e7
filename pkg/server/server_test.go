package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/weightworks/weights-service/internal/testutil"
	werr "github.com/weightworks/weights-service/pkg/errors"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		errCode werr.Code
	}{
		{
			name:   "zero config gets defaults",
			config: Config{},
		},
		{
			name: "valid custom ports",
			config: Config{
				ServicePort:    9090,
				ManagementPort: 9091,
			},
		},
		{
			name:    "service port out of range",
			config:  Config{ServicePort: 70000, ManagementPort: 8081},
			errCode: werr.CodeValidationRange,
		},
		{
			name:    "negative management port",
			config:  Config{ServicePort: 8080, ManagementPort: -1},
			errCode: werr.CodeValidationRange,
		},
		{
			name:    "ports must differ",
			config:  Config{ServicePort: 8080, ManagementPort: 8080},
			errCode: werr.CodeValidation,
		},
		{
			name:    "negative rate limit",
			config:  Config{RateLimitRequests: -1},
			errCode: werr.CodeValidationRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errCode != "" {
				testutil.RequireErrorCode(t, err, tt.errCode)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_Validate_AppliesDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultServicePort, cfg.ServicePort)
	assert.Equal(t, DefaultManagementPort, cfg.ManagementPort)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultRateLimitWindow, cfg.RateLimitWindow)
}

func TestConfig_Validate_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		ServicePort:     9090,
		ManagementPort:  9091,
		ReadTimeout:     time.Second,
		RateLimitWindow: time.Minute,
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.ServicePort)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

// ----------------------------------------------------------------------------
// Middleware
// ----------------------------------------------------------------------------

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen, "a request id must be generated when none is supplied")
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID),
		"the generated id must be echoed in the response header")
}

func TestRequestIDMiddleware_HonorsSuppliedID(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-trace-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-trace-42", seen)
	assert.Equal(t, "upstream-trace-42", rec.Header().Get(HeaderRequestID))
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRateLimitMiddleware_AllowsWithinBudget(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Second), 3)
	handler := rateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/weights", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, "request %d should pass", i+1)
	}
}

func TestRateLimitMiddleware_DeniesOverBudget(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	handler := rateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/weights", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/weights", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Empty(t, second.Body.String(), "rate limit responses carry no body")
}

// ----------------------------------------------------------------------------
// Management endpoints
// ----------------------------------------------------------------------------

func TestManagementHandler_Liveness(t *testing.T) {
	handler := newManagementHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestManagementHandler_ReadinessHealthy(t *testing.T) {
	handler := newManagementHandler(func(ctx context.Context) error {
		return nil
	}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestManagementHandler_ReadinessDependencyDown(t *testing.T) {
	handler := newManagementHandler(func(ctx context.Context) error {
		return errors.New("connection refused")
	}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"DOWN"}`, rec.Body.String())
}

func TestManagementHandler_ReadinessNilCheckerIsUp(t *testing.T) {
	handler := newManagementHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestManagementHandler_MetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# HELP\n"))
	})
	handler := newManagementHandler(nil, metrics)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}
