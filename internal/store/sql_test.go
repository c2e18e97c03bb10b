package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// createTestSQL opens a sqlite backend in a temporary directory.
func createTestSQL(t *testing.T) *SQL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQL("sqlite3", path)
	if err != nil {
		t.Fatalf("OpenSQL() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSQL_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := OpenSQL("sqlite3", path)
	if err != nil {
		t.Fatalf("OpenSQL() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenSQL_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := OpenSQL("sqlite3", path)
		if err != nil {
			t.Fatalf("OpenSQL() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := OpenSQL("sqlite3", path)
	if err != nil {
		t.Fatalf("final OpenSQL() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"records", "record_refs"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpenSQL_InvalidPath(t *testing.T) {
	_, err := OpenSQL("sqlite3", "/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpenSQL_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "")
	if err == nil {
		t.Error("expected error for unsupported driver, got nil")
	}
}

func TestCloseSQL_NilDB(t *testing.T) {
	s := &SQL{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestSQL(t)

	tests := []struct {
		name, expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"}, // ON
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

// Schema tests

func TestSchema_Tables(t *testing.T) {
	s := createTestSQL(t)

	for table, expected := range map[string][]string{
		"records":     {"id", "data"},
		"record_refs": {"id", "foreign_id"},
	} {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !slices.Contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}

	if !slices.Contains(getTableIndexes(t, s.db, "record_refs"), "idx_record_refs_foreign") {
		t.Error("record_refs table missing index idx_record_refs_foreign")
	}
}

func TestMigration_FromVersionZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQL("sqlite3", path)
	if err != nil {
		t.Fatalf("OpenSQL() failed: %v", err)
	}
	if _, err := s.db.Exec("DROP INDEX idx_record_refs_foreign"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	s.Close()

	s, err = OpenSQL("sqlite3", path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	if !slices.Contains(getTableIndexes(t, s.db, "record_refs"), "idx_record_refs_foreign") {
		t.Error("migration did not restore idx_record_refs_foreign")
	}
}

// Constraint tests

func TestConstraint_RefsCascadeOnDelete(t *testing.T) {
	s := createTestSQL(t)
	ctx := context.Background()

	if err := s.Set(ctx, "child", Record{Data: []byte("v"), ForeignKeys: []string{"a", "b"}}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if n := countRows(t, s.db, "record_refs"); n != 2 {
		t.Fatalf("record_refs has %d rows, want 2", n)
	}

	// Delete through SQL directly: the cascade, not Delete, must clean up.
	if _, err := s.db.Exec("DELETE FROM records WHERE id = 'child'"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if n := countRows(t, s.db, "record_refs"); n != 0 {
		t.Errorf("record_refs has %d rows after cascade, want 0", n)
	}
}

func TestConstraint_RefsRequireRecord(t *testing.T) {
	s := createTestSQL(t)

	_, err := s.db.Exec("INSERT INTO record_refs (id, foreign_id) VALUES ('ghost', 'a')")
	if err == nil {
		t.Error("expected foreign key violation, got nil")
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
