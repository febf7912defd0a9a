package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*/*.sql
var schemaFS embed.FS

// Dialect selects the SQL flavour of the ledger schema.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ErrSchemaIncomplete is returned when a migrated database still lacks one of
// the ledger tables the stores read and write.
var ErrSchemaIncomplete = errors.New("ledger schema incomplete")

const sqliteHistoryDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TEXT NOT NULL
)`

const postgresHistoryDDL = `CREATE TABLE IF NOT EXISTS pdogate_schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL
)`

// dialectSchema describes where a dialect's steps live and how to query it.
// ph renders the n-th (1-based) bind parameter.
type dialectSchema struct {
	dir         string
	history     string
	tables      []string
	ph          func(n int) string
	historyDDL  string
	tableExists string
}

var dialects = map[Dialect]dialectSchema{
	DialectSQLite: {
		dir:         "migrations/sqlite",
		history:     "schema_migrations",
		tables:      []string{"trusted_keys", "consumed_nonces"},
		ph:          func(int) string { return "?" },
		historyDDL:  sqliteHistoryDDL,
		tableExists: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	},
	DialectPostgres: {
		dir:         "migrations/postgres",
		history:     "pdogate_schema_migrations",
		tables:      []string{"pdogate_trusted_keys", "pdogate_consumed_nonces"},
		ph:          func(n int) string { return fmt.Sprintf("$%d", n) },
		historyDDL:  postgresHistoryDDL,
		tableExists: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`,
	},
}

func lookupDialect(d Dialect) (dialectSchema, error) {
	ds, ok := dialects[d]
	if !ok {
		return dialectSchema{}, fmt.Errorf("unsupported ledger dialect %q", d)
	}
	return ds, nil
}

type schemaStep struct {
	version string
	body    string
}

// schemaSteps returns the embedded steps for a dialect ordered by version.
// File names must start with a numeric version, e.g. 0002_nonce_index.sql.
func schemaSteps(d Dialect) ([]schemaStep, error) {
	ds, err := lookupDialect(d)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(schemaFS, ds.dir)
	if err != nil {
		return nil, err
	}
	steps := make([]schemaStep, 0, len(entries))
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		version, _, _ := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		if version == "" || strings.Trim(version, "0123456789") != "" {
			return nil, fmt.Errorf("schema step %s: name must start with a numeric version", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("schema steps %s and %s share version %s", prev, name, version)
		}
		seen[version] = name
		body, err := schemaFS.ReadFile(path.Join(ds.dir, name))
		if err != nil {
			return nil, err
		}
		steps = append(steps, schemaStep{version: version, body: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// Migrate brings the ledger schema for d up to date and returns the versions
// applied by this call. Every step runs in its own transaction together with
// its history row, and the ledger tables are checked before returning.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) ([]string, error) {
	if db == nil {
		return nil, errors.New("migrate: nil db")
	}
	ds, err := lookupDialect(d)
	if err != nil {
		return nil, err
	}
	steps, err := schemaSteps(d)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, ds.historyDDL); err != nil {
		return nil, fmt.Errorf("create %s: %w", ds.history, err)
	}

	var applied []string
	for _, step := range steps {
		ran, err := applyStep(ctx, db, ds, step)
		if err != nil {
			return applied, fmt.Errorf("schema step %s: %w", step.version, err)
		}
		if ran {
			applied = append(applied, step.version)
		}
	}
	if err := verifyTables(ctx, db, ds); err != nil {
		return applied, err
	}
	return applied, nil
}

func applyStep(ctx context.Context, db *sql.DB, ds dialectSchema, step schemaStep) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE version = %s`, ds.history, ds.ph(1))
	if err := tx.QueryRowContext(ctx, q, step.version).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, step.body); err != nil {
		return false, err
	}
	ins := fmt.Sprintf(`INSERT INTO %s(version, applied_at) VALUES(%s, %s) ON CONFLICT(version) DO NOTHING`, ds.history, ds.ph(1), ds.ph(2))
	if _, err := tx.ExecContext(ctx, ins, step.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func verifyTables(ctx context.Context, db *sql.DB, ds dialectSchema) error {
	var missing []string
	for _, table := range ds.tables {
		var n int
		if err := db.QueryRowContext(ctx, ds.tableExists, table).Scan(&n); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if n == 0 {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSchemaIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// SchemaVersion reports the newest applied version, or "" when the history
// table is empty.
func SchemaVersion(ctx context.Context, db *sql.DB, d Dialect) (string, error) {
	ds, err := lookupDialect(d)
	if err != nil {
		return "", err
	}
	var version sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM `+ds.history).Scan(&version); err != nil {
		return "", err
	}
	return version.String, nil
}
