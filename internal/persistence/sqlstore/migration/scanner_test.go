package migration

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{"migrations": &fstest.MapFile{Mode: fs.ModeDir | 0o755}}
	for name, content := range files {
		fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		expectedErr   error
		errorContains string
	}{
		{
			name: "orders files numerically",
			files: map[string]string{
				"010_add_indexes.sql":  "CREATE INDEX idx_users_status ON users(status);",
				"002_add_sessions.sql": "CREATE TABLE sessions (id INTEGER PRIMARY KEY);",
				"001_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-sql files",
			files: map[string]string{
				"001_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
				"README.md":            "# notes",
			},
			expectedOrder: []string{"001"},
		},
		{
			name:          "empty directory",
			files:         map[string]string{},
			expectedOrder: nil,
		},
		{
			name: "invalid filename",
			files: map[string]string{
				"create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
			},
			expectedErr:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate version",
			files: map[string]string{
				"001_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
				"1_create_more.sql":    "CREATE TABLE more (id INTEGER PRIMARY KEY);",
			},
			expectedErr: ErrDuplicateVersion,
		},
		{
			name: "comment only file",
			files: map[string]string{
				"001_nothing.sql": "-- nothing to see here\n",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: map[string]string{
				"001_broken.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY;",
			},
			expectedErr:   ErrInvalidMigrationFile,
			errorContains: "parenthesis",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := NewScanner(mapFS(tt.files)).ScanMigrations("migrations")
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error to contain %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
			}
		})
	}
}

func TestScanner_MissingDirectory(t *testing.T) {
	_, err := NewScanner(fstest.MapFS{}).ScanMigrations("migrations")
	var fsErr *FileSystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("expected FileSystemError, got %v", err)
	}
}

func TestScanner_DescriptionAndChecksum(t *testing.T) {
	body := "-- Description: Create the users table\nCREATE TABLE users (id INTEGER PRIMARY KEY);\n"
	migrations, err := NewScanner(mapFS(map[string]string{
		"001_create_users.sql": body,
		"002_add_index.sql":    "CREATE INDEX idx ON users(id);",
	})).ScanMigrations("migrations")
	if err != nil {
		t.Fatalf("ScanMigrations returned error: %v", err)
	}

	if migrations[0].Description != "Create the users table" {
		t.Fatalf("unexpected description %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description derived from filename, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum != Checksum(body) {
		t.Fatalf("checksum mismatch")
	}
	if len(migrations[0].Checksum) != 64 {
		t.Fatalf("expected 32 byte hex checksum, got %q", migrations[0].Checksum)
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Fatalf("distinct files must have distinct checksums")
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- Description: two tables
CREATE TABLE a (id INTEGER);

-- second
CREATE TABLE b (id INTEGER);
`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE TABLE b (id INTEGER)" {
		t.Fatalf("unexpected statement %q", statements[1])
	}
}
