package sqlite_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/artpar/crossbridge/adapters/sqlite"
)

func openUnmigrated(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM journal_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("applied migrations = %d, want 1", n)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := openUnmigrated(t)

	v, err := db.SchemaVersion()
	if err != nil || v != "" {
		t.Fatalf("SchemaVersion() before Migrate = %q, %v; want empty", v, err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	v, err = db.SchemaVersion()
	if err != nil || v != "001_journal" {
		t.Errorf("SchemaVersion() = %q, %v; want 001_journal", v, err)
	}
}

func TestCheckSchema(t *testing.T) {
	db := openUnmigrated(t)

	err := db.CheckSchema()
	if !errors.Is(err, sqlite.ErrJournalSchema) {
		t.Fatalf("CheckSchema() on empty database = %v, want ErrJournalSchema", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := db.CheckSchema(); err != nil {
		t.Errorf("CheckSchema() after Migrate = %v", err)
	}

	if _, err := db.Exec("DROP TABLE deliveries"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if err := db.CheckSchema(); !errors.Is(err, sqlite.ErrJournalSchema) {
		t.Errorf("CheckSchema() without deliveries = %v, want ErrJournalSchema", err)
	}
}

func TestMigrate_RejectsNewerJournal(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := db.Exec("INSERT INTO journal_migrations (version) VALUES ('999_future')"); err != nil {
		t.Fatalf("insert version: %v", err)
	}

	if err := db.Migrate(); !errors.Is(err, sqlite.ErrJournalTooNew) {
		t.Errorf("Migrate() = %v, want ErrJournalTooNew", err)
	}
}

func TestPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}
