package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"athletes", "uploads", "goose_db_version"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
	if database.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want sqlite", database.Driver())
	}
}

func TestNew_WALEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var version int64
	err = db2.Conn().QueryRow("SELECT MAX(version_id) FROM goose_db_version WHERE is_applied = 1").Scan(&version)
	if err != nil {
		t.Fatalf("query version error = %v", err)
	}

	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestMarkInterruptedUploads(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = db1.Conn().Exec(`
		INSERT INTO athletes (id, student_id, name, created_at, updated_at)
		VALUES ('ath-1', '6501', 'Somchai', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatalf("insert athlete error = %v", err)
	}
	_, err = db1.Conn().Exec(`
		INSERT INTO uploads (id, athlete_id, storage_key, phase, progress, created_at, updated_at)
		VALUES ('up-1', 'ath-1', 'athlete-images/ath-1-1.jpg', 'uploading', 40, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z'),
		       ('up-2', 'ath-1', 'athlete-images/ath-1-2.jpg', 'succeeded', 100, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatalf("insert upload error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var phase, msg string
	err = db2.Conn().QueryRow("SELECT phase, message FROM uploads WHERE id = 'up-1'").Scan(&phase, &msg)
	if err != nil {
		t.Fatalf("query upload error = %v", err)
	}
	if phase != "failed" {
		t.Errorf("upload phase = %s, want failed", phase)
	}
	if msg != "interrupted by restart" {
		t.Errorf("upload message = %s, want 'interrupted by restart'", msg)
	}

	err = db2.Conn().QueryRow("SELECT phase FROM uploads WHERE id = 'up-2'").Scan(&phase)
	if err != nil {
		t.Fatalf("query upload error = %v", err)
	}
	if phase != "succeeded" {
		t.Errorf("finished upload phase = %s, want succeeded", phase)
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE athletes SET status = ?, updated_at = ? WHERE id = ?"

	sqlite := &DB{driver: DriverSQLite}
	if got := sqlite.Rebind(q); got != q {
		t.Errorf("sqlite Rebind changed query: %q", got)
	}

	pg := &DB{driver: DriverPostgres}
	want := "UPDATE athletes SET status = $1, updated_at = $2 WHERE id = $3"
	if got := pg.Rebind(q); got != want {
		t.Errorf("postgres Rebind = %q, want %q", got, want)
	}
}

func TestNew_MigrationFailure(t *testing.T) {
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	_, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err == nil {
		t.Fatal("expected migration error")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x", nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
