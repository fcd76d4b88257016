package db

import (
	"testing"
	"testing/fstest"

	"reviewflow/migrations"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_platform.sql": {Data: []byte("SELECT 2")},
		"0001_init.sql":     {Data: []byte("SELECT 1")},
		"README.md":         {Data: []byte("docs")},
		"old/0000_x.sql":    {Data: []byte("SELECT 0")},
	}

	files, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0] != "0001_init.sql" || files[1] != "0002_platform.sql" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(migrations.Files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected embedded migrations, got %v", files)
	}
}
