package db

import (
	"context"
	"strings"
	"testing"
)

func TestInit_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		driver     string
		dsn        string
		wantSubstr string
	}{
		{"unsupported driver", "mysql", "root@/asr", "unsupported driver"},
		{"unreachable postgres", "postgres", "host=127.0.0.1 port=1 sslmode=disable connect_timeout=1", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Init(context.Background(), tc.driver, tc.dsn)
			if err == nil {
				t.Fatalf("Init(%q, %q) did not return error", tc.driver, tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("Init(%q) error = %q; want substring %q", tc.driver, err.Error(), tc.wantSubstr)
			}
		})
	}
}

func TestInit_SQLiteMigrates(t *testing.T) {
	ctx := context.Background()
	conn, err := Init(ctx, "sqlite", "file:initmigrates?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Init sqlite: %v", err)
	}
	defer conn.Close()

	for _, table := range []string{"users", "audio_samples"} {
		var name string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Re-running migrations on an up-to-date schema is a no-op.
	if err := Migrate(ctx, conn, "sqlite3"); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

func TestWithSQLitePragmas(t *testing.T) {
	cases := map[string]string{
		"asr_data.db":                  "asr_data.db?" + sqlitePragmas,
		"file:x?mode=memory":           "file:x?mode=memory&" + sqlitePragmas,
		"a.db?_pragma=foreign_keys(0)": "a.db?_pragma=foreign_keys(0)",
	}
	for in, want := range cases {
		if got := withSQLitePragmas(in); got != want {
			t.Errorf("withSQLitePragmas(%q) = %q; want %q", in, got, want)
		}
	}
}
