package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/quadapp/internal/core/plan"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteLedger
// =============================================================================

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sqlx.DB
}

// NewSQLiteLedger opens the ledger database and runs migrations.
func NewSQLiteLedger(dsn string) (*SQLiteLedger, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteLedger", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteLedger", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteLedger", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteLedger{db: db}, nil
}

// runMigrations runs schema migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// =============================================================================
// Rows
// =============================================================================

type applicationRow struct {
	Name           string `db:"name"`
	LastRunID      string `db:"last_run_id"`
	LastDeployedAt string `db:"last_deployed_at"`
}

type fileRow struct {
	AppName    string `db:"app_name"`
	Path       string `db:"path"`
	Digest     string `db:"digest"`
	Mode       uint32 `db:"mode"`
	DeployedAt string `db:"deployed_at"`
}

// =============================================================================
// Diff
// =============================================================================

func (l *SQLiteLedger) Diff(ctx context.Context, app string, artifacts []plan.Artifact, force bool) (*Changes, error) {
	firstDeploy := false
	var appRow applicationRow
	err := l.db.GetContext(ctx, &appRow, `SELECT name, last_run_id, last_deployed_at FROM applications WHERE name = ?`, app)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		firstDeploy = true
	case err != nil:
		return nil, NewStoreError("Diff", app, "failed to load application record", ErrQueryFailed)
	}

	var rows []fileRow
	if err := l.db.SelectContext(ctx, &rows, `SELECT app_name, path, digest, mode, deployed_at FROM deployed_files WHERE app_name = ?`, app); err != nil {
		return nil, NewStoreError("Diff", app, "failed to load file records", ErrQueryFailed)
	}
	recorded := make(map[string]fileRow, len(rows))
	for _, r := range rows {
		recorded[r.Path] = r
	}

	changes := &Changes{
		Changed:     make(map[string]bool, len(artifacts)),
		FirstDeploy: firstDeploy,
	}
	for _, a := range artifacts {
		rec, ok := recorded[a.Path]
		changed := force || !ok || rec.Digest != a.Digest() || rec.Mode != uint32(a.Mode)
		changes.Changed[a.Path] = changed
		if changed {
			changes.AnyChanged = true
		}
	}
	return changes, nil
}

// =============================================================================
// Commit
// =============================================================================

func (l *SQLiteLedger) Commit(ctx context.Context, app, runID string, artifacts []plan.Artifact) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("Commit", app, "failed to begin transaction", ErrTxFailed)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applications (name, last_run_id, last_deployed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_run_id = excluded.last_run_id,
			last_deployed_at = excluded.last_deployed_at`,
		app, runID, now)
	if err != nil {
		return NewStoreError("Commit", app, "failed to upsert application record", ErrTxFailed)
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO deployed_files (app_name, path, digest, mode, deployed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(app_name, path) DO UPDATE SET
				digest = excluded.digest,
				mode = excluded.mode,
				deployed_at = excluded.deployed_at`,
			app, a.Path, a.Digest(), uint32(a.Mode), now)
		if err != nil {
			return NewStoreError("Commit", app, "failed to upsert file record", ErrTxFailed)
		}
	}

	// Prune records for paths the application no longer produces.
	if len(paths) == 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM deployed_files WHERE app_name = ?`, app)
	} else {
		var query string
		var args []interface{}
		query, args, err = sqlx.In(`DELETE FROM deployed_files WHERE app_name = ? AND path NOT IN (?)`, app, paths)
		if err == nil {
			_, err = tx.ExecContext(ctx, query, args...)
		}
	}
	if err != nil {
		return NewStoreError("Commit", app, "failed to prune stale file records", ErrTxFailed)
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("Commit", app, "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// =============================================================================
// Application Record
// =============================================================================

func (l *SQLiteLedger) Application(ctx context.Context, app string) (*Record, error) {
	var row applicationRow
	err := l.db.GetContext(ctx, &row, `SELECT name, last_run_id, last_deployed_at FROM applications WHERE name = ?`, app)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("Application", app, "no deployment record", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("Application", app, "failed to load application record", ErrQueryFailed)
	}

	deployedAt, err := time.Parse(time.RFC3339, row.LastDeployedAt)
	if err != nil {
		return nil, NewStoreError("Application", app, "malformed deployment timestamp", err)
	}
	return &Record{App: row.Name, LastRunID: row.LastRunID, DeployedAt: deployedAt}, nil
}
