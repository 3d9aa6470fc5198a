package sqlstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/listening-monitor/internal/persistence"
)

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"":           DialectSQLite,
		"sqlite3":    DialectSQLite,
		"Postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"pgx":        DialectPostgres,
	}
	for input, want := range cases {
		got, err := ParseDialect(input)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Errorf("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT id FROM sessions WHERE user_id = ? AND status IN (?, ?)`
	if got := DialectSQLite.Rebind(query); got != query {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
	want := `SELECT id FROM sessions WHERE user_id = $1 AND status IN ($2, $3)`
	if got := DialectPostgres.Rebind(query); got != want {
		t.Fatalf("Rebind = %q, want %q", got, want)
	}
}

func TestDataSourceName(t *testing.T) {
	cfg := DefaultConfig(DialectSQLite, "monitor.db")
	dsn := cfg.dataSourceName()
	for _, want := range []string{"file:monitor.db?", "busy_timeout%285000%29", "journal_mode%28WAL%29", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("expected %q in %q", want, dsn)
		}
	}

	withQuery := DefaultConfig(DialectSQLite, "file:monitor.db?cache=shared").dataSourceName()
	if !strings.HasPrefix(withQuery, "file:monitor.db?cache=shared&") {
		t.Errorf("expected parameters to be appended, got %q", withQuery)
	}

	pg := DefaultConfig(DialectPostgres, "postgres://localhost/monitor").dataSourceName()
	if pg != "postgres://localhost/monitor" {
		t.Errorf("postgres DSN should pass through, got %q", pg)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Dialect: DialectSQLite}).validate(); err == nil {
		t.Errorf("expected empty DSN to be rejected")
	}
	if err := (Config{Dialect: "oracle", DSN: "x"}).validate(); err == nil {
		t.Errorf("expected unknown dialect to be rejected")
	}
	bad := DefaultConfig(DialectSQLite, "x")
	bad.BusyTimeout = -time.Second
	if err := bad.validate(); err == nil {
		t.Errorf("expected negative busy timeout to be rejected")
	}
}

func TestMapErrorPostgresCodes(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"23505", persistence.ErrDuplicate},
		{"23503", persistence.ErrForeignKeyViolation},
		{"23514", persistence.ErrConstraintViolation},
		{"23502", persistence.ErrConstraintViolation},
	}
	for _, tc := range cases {
		err := mapError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code}))
		if !errors.Is(err, tc.want) {
			t.Errorf("code %s mapped to %v, want %v", tc.code, err, tc.want)
		}
	}
	if mapError(nil) != nil {
		t.Errorf("expected nil to stay nil")
	}
	plain := errors.New("connection reset")
	if got := mapError(plain); got != plain {
		t.Errorf("expected unrelated error to pass through, got %v", got)
	}
}

func TestTimeEncodingSortsChronologically(t *testing.T) {
	early := time.Date(2024, time.June, 12, 9, 59, 59, 999_000, time.FixedZone("WAT", 3600))
	late := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)

	a, b := formatTime(early), formatTime(late)
	if len(a) != len(b) || !(a < b) {
		t.Fatalf("expected fixed width ordered encoding, got %q and %q", a, b)
	}
	parsed, err := parseTime(a)
	if err != nil || !parsed.Equal(early) {
		t.Fatalf("round trip failed: %v, %v", parsed, err)
	}
	if _, err := parseTime("yesterday"); err == nil {
		t.Fatalf("expected invalid timestamp to fail")
	}
}
