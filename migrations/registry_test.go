package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	websub "github.com/goliatone/go-websub"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_SourceLabelAndRequiredFunc(t *testing.T) {
	var labels []string
	reg, err := Register(context.Background(), func(_ context.Context, _ string, label string, _ fs.FS) error {
		labels = append(labels, label)
		return nil
	}, WithDialectSourceLabel(" websub-callbacks "))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "websub-callbacks" {
		t.Fatalf("expected trimmed source label, got %q", reg.SourceLabel)
	}
	if len(labels) != 2 {
		t.Fatalf("expected both dialects registered by default, got %d", len(labels))
	}

	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error without register function")
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite3":   DialectSQLite,
		"sqlite":    DialectSQLite,
		" Postgres": DialectPostgres,
		"pgx":       DialectPostgres,
	}
	for driver, want := range cases {
		got, err := DialectForDriver(driver)
		if err != nil {
			t.Fatalf("dialect for %q: %v", driver, err)
		}
		if got != want {
			t.Fatalf("expected %q for %q, got %q", want, driver, got)
		}
	}
	if _, err := DialectForDriver("mysql"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestRegisterDialect_RegistersSingleTree(t *testing.T) {
	var trees []fs.FS
	reg, err := RegisterDialect(context.Background(), " SQLite ", func(fsys fs.FS) {
		trees = append(trees, fsys)
	})
	if err != nil {
		t.Fatalf("register dialect: %v", err)
	}
	if len(trees) != 1 {
		t.Fatalf("expected one tree, got %d", len(trees))
	}
	if len(reg.ValidationTargets) != 1 || reg.ValidationTargets[0] != DialectSQLite {
		t.Fatalf("expected sqlite target only, got %#v", reg.ValidationTargets)
	}
	if _, err := fs.Stat(trees[0], "20261017000001_create_push_subscriptions.up.sql"); err != nil {
		t.Fatalf("expected sqlite migration in tree: %v", err)
	}

	if _, err := RegisterDialect(context.Background(), "oracle", func(fs.FS) {}); err == nil {
		t.Fatalf("expected error for dialect without migrations")
	}
	if _, err := RegisterDialect(context.Background(), DialectSQLite, nil); err == nil {
		t.Fatalf("expected error without add func")
	}
}

func TestFilesystems_RejectsTreeWithoutMigrations(t *testing.T) {
	empty := fstest.MapFS{
		"data/sql/migrations/readme.txt":        {Data: []byte("x")},
		"data/sql/migrations/sqlite/readme.txt": {Data: []byte("x")},
	}
	if _, err := Filesystems(empty); err == nil {
		t.Fatalf("expected error for tree without *.up.sql files")
	}
}

func TestPushSubscriptionsMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := websub.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/20261017000001_create_push_subscriptions.up.sql",
		"data/sql/migrations/20261017000001_create_push_subscriptions.down.sql",
		"data/sql/migrations/sqlite/20261017000001_create_push_subscriptions.up.sql",
		"data/sql/migrations/sqlite/20261017000001_create_push_subscriptions.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLitePushSubscriptionsMigration_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-push-subscriptions?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	sqliteMigrations, err := fs.Sub(websub.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "20261017000001_create_push_subscriptions.up.sql"); err != nil {
		t.Fatalf("apply up migration: %v", err)
	}

	insert := `INSERT INTO push_subscriptions (id, topic, secret, expires, confirmed, unsubscribe) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "sub-1", "topic1", nil, nil, false, false); err != nil {
		t.Fatalf("insert first row: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "sub-2", "topic1", nil, nil, false, false); err == nil {
		t.Fatalf("expected unique topic violation")
	}

	var confirmed bool
	if err := db.QueryRowContext(ctx, `SELECT confirmed FROM push_subscriptions WHERE id = ?`, "sub-1").Scan(&confirmed); err != nil {
		t.Fatalf("select row: %v", err)
	}
	if confirmed {
		t.Fatalf("expected confirmed to default to false")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "20261017000001_create_push_subscriptions.down.sql"); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}
	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'push_subscriptions'`).Scan(&name)
	if err != sql.ErrNoRows {
		t.Fatalf("expected push_subscriptions to be dropped, got name=%q err=%v", name, err)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
