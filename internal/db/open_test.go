package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenDefaultsToSqliteFile(t *testing.T) {
	dir := t.TempDir()
	gdb, err := Open("", dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := gdb.Exec("CREATE TABLE t (id INTEGER)").Error; err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultFile)); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestIsPostgres(t *testing.T) {
	if !IsPostgres("postgres://u@h/db") || IsPostgres("file:x.db") {
		t.Fatalf("IsPostgres mismatch")
	}
}
