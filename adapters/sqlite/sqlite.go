// Package sqlite persists host registrations and signal deliveries.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrJournalTooNew is returned when the database carries journal
	// migrations this build does not know.
	ErrJournalTooNew = errors.New("journal schema is newer than this build")

	// ErrJournalSchema is returned when a journal table is missing.
	ErrJournalSchema = errors.New("journal schema incomplete")
)

// journalTables are the tables every journal version provides.
var journalTables = []string{"singletons", "operations", "signals", "deliveries", "modules"}

// DB is a journal database connection.
type DB struct {
	*sql.DB
	path string
}

// Open opens the journal database at path, creating the file if needed.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// deliveries are append-heavy; a lost tail on power loss is acceptable
	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open journal %s: %w", path, err)
		}
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the file the journal was opened from.
func (db *DB) Path() string {
	return db.path
}

// Migrate brings the journal schema up to date. Each migration runs in its
// own transaction. A database migrated by a newer build is rejected with
// ErrJournalTooNew rather than written to.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create journal_migrations: %w", err)
	}

	known, err := migrationVersions()
	if err != nil {
		return err
	}
	applied, err := db.appliedVersions()
	if err != nil {
		return err
	}

	knownSet := make(map[string]bool, len(known))
	for _, v := range known {
		knownSet[v] = true
	}
	for _, v := range applied {
		if !knownSet[v] {
			return fmt.Errorf("%w: unknown migration %s in %s", ErrJournalTooNew, v, db.path)
		}
	}

	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	for _, v := range known {
		if done[v] {
			continue
		}
		if err := db.apply(v); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the latest applied journal migration, or "" for a
// database that was never migrated.
func (db *DB) SchemaVersion() (string, error) {
	applied, err := db.appliedVersions()
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	return applied[len(applied)-1], nil
}

// CheckSchema verifies that every journal table exists without changing
// the database.
func (db *DB) CheckSchema() error {
	var missing []string
	for _, table := range journalTables {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect journal: %w", err)
		}
		if n == 0 {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrJournalSchema, strings.Join(missing, ", "))
	}
	return nil
}

// appliedVersions lists recorded migrations in version order. A database
// without the bookkeeping table has none.
func (db *DB) appliedVersions() ([]string, error) {
	rows, err := db.Query(`SELECT version FROM journal_migrations ORDER BY version`)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, fmt.Errorf("query journal_migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan journal_migrations: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (db *DB) apply(version string) error {
	content, err := migrationsFS.ReadFile("migrations/" + version + ".sql")
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %s: %w", version, err)
	}
	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.Exec(`INSERT INTO journal_migrations (version) VALUES (?)`, version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// migrationVersions lists the embedded migrations in apply order.
func migrationVersions() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			versions = append(versions, strings.TrimSuffix(e.Name(), ".sql"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
