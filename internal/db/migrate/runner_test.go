package migrate

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"trustcore/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	if err := Run("", Up); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("err = %v, want ErrNoDSN", err)
	}
	if _, _, err := Version(""); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("Version err = %v, want ErrNoDSN", err)
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "invalid", "UP", "Down", "both"} {
		t.Run(dir, func(t *testing.T) {
			err := Run("postgres://localhost/test", dir)
			if err == nil || !strings.Contains(err.Error(), "direction") {
				t.Errorf("Run(%q) err = %v, want direction error", dir, err)
			}
		})
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://localhost with spaces/test"} {
		if err := Run(dsn, Up); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
	}
}

func TestMigrations_Paired(t *testing.T) {
	names, err := fs.Glob(db.MigrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("%s is neither up nor down", n)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for base := range ups {
		if !downs[base] {
			t.Errorf("%s has no down migration", base)
		}
	}
	if len(ups) != len(downs) {
		t.Errorf("%d up vs %d down migrations", len(ups), len(downs))
	}
}
