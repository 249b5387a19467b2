package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/tagrules/migrations"
)

/*
 * Schema migrations.
 *
 * Files under migrations/<driver>/ are applied in name order, each in its
 * own transaction together with its row in the migrations table. The row
 * stores the SHA256 of the file; MigrateUp refuses to run when an applied
 * file no longer matches, or when the database knows a migration the
 * binary does not.
 */

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string // of the embedded file
	Applied     bool
	Modified    bool // applied with a different checksum
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migration struct {
	ID       string
	Checksum string
	SQL      string
}

type appliedRow struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   any    `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// MigrateUp applies pending migrations and returns how many ran.
func MigrateUp(ctx context.Context, db *sqlx.DB) (int, error) {
	files, applied, err := loadMigrations(ctx, db)
	if err != nil {
		return 0, err
	}
	if err := verifyApplied(files, applied); err != nil {
		return 0, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	n := 0
	for _, m := range files {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// MigrateStatus returns every embedded migration with its applied state.
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	files, applied, err := loadMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, m := range files {
		s := MigrationStatus{ID: m.ID, Checksum: m.Checksum}
		if row, ok := applied[m.ID]; ok {
			s.Applied = true
			s.Modified = row.Checksum != m.Checksum
			s.AppliedAt = parseAppliedAt(row.AppliedAt)
			s.ExecutionMs = row.ExecutionMs
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// loadMigrations reads the embedded files for the driver and the rows of
// the migrations table, creating the table on first use.
func loadMigrations(ctx context.Context, db *sqlx.DB) ([]migration, map[string]appliedRow, error) {
	fsys, err := embeddedmigrations.For(db.DriverName())
	if err != nil {
		return nil, nil, err
	}
	files, err := parseMigrationFiles(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse migrations: %w", err)
	}

	if _, err := db.ExecContext(ctx, migrationsTableSQL(db.DriverName())); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var rows []appliedRow
	if err := db.SelectContext(ctx, &rows, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]appliedRow, len(rows))
	for _, r := range rows {
		applied[r.ID] = r
	}
	return files, applied, nil
}

func verifyApplied(files []migration, applied map[string]appliedRow) error {
	known := make(map[string]string, len(files))
	for _, m := range files {
		known[m.ID] = m.Checksum
	}
	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		want, ok := known[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if got := applied[id].Checksum; got != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, got)
		}
	}
	return nil
}

// applyMigration runs one file and records it in a single transaction.
func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	start := time.Now()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	// lib/pq does not accept several statements in one Exec
	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
	}

	var appliedAt any = time.Now().UTC()
	if db.DriverName() == "sqlite3" {
		appliedAt = time.Now().UTC().Format(timeFormat)
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		m.ID, m.Checksum, appliedAt, time.Since(start).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
	}
	return nil
}

// migrationsTableSQL must match the migrations table in 001_initial_schema.sql.
func migrationsTableSQL(driver string) string {
	if driver == "sqlite3" {
		return `CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms INTEGER NOT NULL,
			CHECK (applied_at LIKE '____-__-__T__:__:__Z')
		)`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`
}

// parseAppliedAt accepts both driver representations: time.Time from
// postgres and RFC3339 text from sqlite.
func parseAppliedAt(v any) *time.Time {
	var text string
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseMigrationFiles reads every .sql file of fsys, sorted by name.
func parseMigrationFiles(fsys fs.FS) ([]migration, error) {
	var out []migration
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{
			ID:       path.Base(p),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// splitStatements drops "--" comment lines and splits the rest on semicolons.
// Statements must not contain literal semicolons.
func splitStatements(sql string) []string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
