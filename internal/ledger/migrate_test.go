package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateSQLiteReportsAppliedSteps(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	applied, err := Migrate(ctx, db, DialectSQLite)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !reflect.DeepEqual(applied, []string{"0001", "0002"}) {
		t.Fatalf("unexpected applied steps: %v", applied)
	}
	version, err := SchemaVersion(ctx, db, DialectSQLite)
	if err != nil || version != "0002" {
		t.Fatalf("schema version: %q err=%v", version, err)
	}

	applied, err = Migrate(ctx, db, DialectSQLite)
	if err != nil || len(applied) != 0 {
		t.Fatalf("second migrate must be a no-op: applied=%v err=%v", applied, err)
	}

	var idx string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_consumed_nonces_retain_until'`).Scan(&idx); err != nil {
		t.Fatalf("expected retention index: %v", err)
	}
}

func TestMigrateDetectsMissingLedgerTable(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	if _, err := Migrate(ctx, db, DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(`DROP TABLE consumed_nonces`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := Migrate(ctx, db, DialectSQLite)
	if !errors.Is(err, ErrSchemaIncomplete) {
		t.Fatalf("expected ErrSchemaIncomplete, got %v", err)
	}
}

func TestMigrateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	if _, err := Migrate(ctx, nil, DialectSQLite); err == nil {
		t.Fatalf("expected error for nil db")
	}
	if _, err := Migrate(ctx, openSQLite(t), Dialect("oracle")); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
	if _, err := SchemaVersion(ctx, openSQLite(t), Dialect("oracle")); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestSchemaStepsOrderedPerDialect(t *testing.T) {
	for _, d := range []Dialect{DialectSQLite, DialectPostgres} {
		steps, err := schemaSteps(d)
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if len(steps) < 2 || steps[0].version != "0001" {
			t.Fatalf("%s: unexpected step order: %+v", d, steps)
		}
		for i := 1; i < len(steps); i++ {
			if steps[i-1].version >= steps[i].version {
				t.Fatalf("%s: steps out of order at %d", d, i)
			}
		}
	}
	if ds, _ := lookupDialect(DialectPostgres); ds.ph(2) != "$2" {
		t.Fatalf("postgres placeholders must be positional")
	}
}
