package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

// ===========================================================================
// NewFromPool Tests
// ===========================================================================

func TestNewFromPool_WithConfig(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	cfg := &Config{Database: "weights"}
	client := NewFromPool(mock, cfg)

	if client.pool == nil {
		t.Error("pool is nil, want non-nil")
	}
	if client.config != cfg {
		t.Error("config not set correctly")
	}
	if client.databaseName != "weights" {
		t.Errorf("databaseName = %q, want %q", client.databaseName, "weights")
	}
}

func TestNewFromPool_NilConfig(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	client := NewFromPool(mock, nil)
	if client.config == nil {
		t.Error("config is nil, want non-nil zero-value Config")
	}
}

// ===========================================================================
// Query / Exec Tests
// ===========================================================================

func TestClient_Query_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	expectedRows := pgxmock.NewRows([]string{"id", "user_id"}).
		AddRow(int64(1), "user-1").
		AddRow(int64(2), "user-1")
	mock.ExpectQuery("SELECT id, user_id FROM weights").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(expectedRows)

	client := NewFromPool(mock, &Config{Database: "weights"})
	rows, err := client.Query(context.Background(), "SELECT id, user_id FROM weights WHERE user_id = $1", "user-1")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var id int64
		var userID string
		if scanErr := rows.Scan(&id, &userID); scanErr != nil {
			t.Fatalf("Scan() error: %v", scanErr)
		}
		count++
	}
	if count != 2 {
		t.Errorf("row count = %d, want 2", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestClient_Query_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WillReturnError(errors.New("connection refused"))

	client := NewFromPool(mock, nil)
	_, err = client.Query(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("Query() error = nil, want error")
	}
	if got := werr.GetCode(err); got != werr.CodeInternalDatabase {
		t.Errorf("error code = %q, want %q", got, werr.CodeInternalDatabase)
	}
}

func TestClient_Query_Timeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WillReturnError(context.DeadlineExceeded)

	client := NewFromPool(mock, nil)
	_, err = client.Query(context.Background(), "SELECT 1")
	if got := werr.GetCode(err); got != werr.CodeTimeoutDatabase {
		t.Errorf("error code = %q, want %q", got, werr.CodeTimeoutDatabase)
	}
	if !werr.IsRetryable(err) {
		t.Error("timeout errors must be retryable")
	}
}

func TestClient_Exec_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("DELETE FROM weights").
		WithArgs(int64(1), "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	client := NewFromPool(mock, nil)
	tag, err := client.Exec(context.Background(), "DELETE FROM weights WHERE id = $1 AND user_id = $2", int64(1), "user-1")
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Errorf("RowsAffected() = %d, want 1", tag.RowsAffected())
	}
}

// ===========================================================================
// Health Tests
// ===========================================================================

func TestClient_Health_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectPing()

	client := NewFromPool(mock, nil)
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() error: %v", err)
	}
}

func TestClient_Health_Failure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))

	client := NewFromPool(mock, nil)
	err = client.Health(context.Background())
	if err == nil {
		t.Fatal("Health() error = nil, want error")
	}
	if got := werr.GetCode(err); got != werr.CodeUnavailable {
		t.Errorf("error code = %q, want %q", got, werr.CodeUnavailable)
	}
	if !werr.IsRetryable(err) {
		t.Error("unavailability must be retryable")
	}
}

// ===========================================================================
// Secret Tests
// ===========================================================================

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")
	if s.String() != redacted {
		t.Errorf("String() = %q, want %q", s.String(), redacted)
	}
	if s.GoString() != redacted {
		t.Errorf("GoString() = %q, want %q", s.GoString(), redacted)
	}
	text, err := s.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	if string(text) != redacted {
		t.Errorf("MarshalText() = %q, want %q", text, redacted)
	}
	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q, want the original secret", s.Value())
	}
}

// ===========================================================================
// Config Tests
// ===========================================================================

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := Config{Database: "weights", User: "postgres"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want default %q", cfg.Host, DefaultHost)
	}
	if cfg.MaxConns != DefaultMaxConns {
		t.Errorf("MaxConns = %d, want default %d", cfg.MaxConns, DefaultMaxConns)
	}
	if cfg.SSLMode != SSLModePrefer {
		t.Errorf("SSLMode = %q, want default %q", cfg.SSLMode, SSLModePrefer)
	}
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing database", Config{User: "postgres"}},
		{"missing user", Config{Database: "weights"}},
		{"bad port", Config{Database: "weights", User: "postgres", Port: 70000}},
		{"bad ssl mode", Config{Database: "weights", User: "postgres", SSLMode: "sometimes"}},
		{"max below min", Config{Database: "weights", User: "postgres", MaxConns: 1, MinConns: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestConfig_ConnectionString(t *testing.T) {
	cfg := Config{
		Host:           "db.internal",
		Port:           5433,
		Database:       "weights",
		User:           "svc",
		Password:       Secret("p@ss"),
		SSLMode:        SSLModeRequire,
		ConnectTimeout: 10 * time.Second,
	}
	got := cfg.ConnectionString()
	for _, want := range []string{"postgres://", "db.internal:5433", "/weights", "sslmode=require", "connect_timeout=10"} {
		if !strings.Contains(got, want) {
			t.Errorf("ConnectionString() = %q, missing %q", got, want)
		}
	}
}

func TestConfig_ConnectionString_URIPrecedence(t *testing.T) {
	cfg := Config{
		URI:  "postgres://u:p@remote:5432/other",
		Host: "ignored",
	}
	if got := cfg.ConnectionString(); got != cfg.URI {
		t.Errorf("ConnectionString() = %q, want the URI unchanged", got)
	}
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	if truncateSQL(short) != short {
		t.Error("short statements must pass through unchanged")
	}
	long := strings.Repeat("x", maxSQLTruncateLen+50)
	got := truncateSQL(long)
	if len(got) != maxSQLTruncateLen+3 {
		t.Errorf("truncated length = %d, want %d", len(got), maxSQLTruncateLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated statements must end with ellipsis")
	}
}
