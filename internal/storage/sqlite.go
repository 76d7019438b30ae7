package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/bayan/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_builds (
		id TEXT PRIMARY KEY,
		text_dir TEXT NOT NULL,
		documents INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON index_builds(started_at);

	CREATE TABLE IF NOT EXISTS build_documents (
		build_id TEXT NOT NULL,
		source TEXT NOT NULL,
		path TEXT NOT NULL,
		characters INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		indexed_at TIMESTAMP NOT NULL,
		FOREIGN KEY (build_id) REFERENCES index_builds(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_build_documents_build_id ON build_documents(build_id);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordBuild inserts the build and its documents in one transaction.
func (s *SQLiteCatalog) RecordBuild(ctx context.Context, build *models.IndexBuild, docs []models.DocumentRecord) error {
	if build.ID == "" {
		build.ID = uuid.New().String()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_builds (id, text_dir, documents, chunks, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		build.ID, build.TextDir, build.Documents, build.Chunks, build.Status, build.Error, build.StartedAt, build.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO build_documents (build_id, source, path, characters, chunks, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, build.ID, d.Source, d.Path, d.Characters, d.Chunks, d.IndexedAt); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", d.Source, err)
		}
	}
	return tx.Commit()
}

const buildColumns = `id, text_dir, documents, chunks, status, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (*models.IndexBuild, error) {
	var b models.IndexBuild
	err := row.Scan(&b.ID, &b.TextDir, &b.Documents, &b.Chunks, &b.Status, &b.Error, &b.StartedAt, &b.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBuild returns a build by ID.
func (s *SQLiteCatalog) GetBuild(ctx context.Context, id string) (*models.IndexBuild, error) {
	b, err := scanBuild(s.db.QueryRowContext(ctx,
		`SELECT `+buildColumns+` FROM index_builds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %s: %w", id, ErrNotFound)
	}
	return b, err
}

// LatestBuild returns the most recently started build.
func (s *SQLiteCatalog) LatestBuild(ctx context.Context) (*models.IndexBuild, error) {
	b, err := scanBuild(s.db.QueryRowContext(ctx,
		`SELECT `+buildColumns+` FROM index_builds ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest build: %w", ErrNotFound)
	}
	return b, err
}

// ListBuilds returns builds newest first.
func (s *SQLiteCatalog) ListBuilds(ctx context.Context, offset, limit int) ([]*models.IndexBuild, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM index_builds ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*models.IndexBuild
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// ListDocuments returns the documents recorded for a build in insertion order.
func (s *SQLiteCatalog) ListDocuments(ctx context.Context, buildID string) ([]*models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, source, path, characters, chunks, indexed_at
		 FROM build_documents WHERE build_id = ? ORDER BY rowid`, buildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.DocumentRecord
	for rows.Next() {
		var d models.DocumentRecord
		if err := rows.Scan(&d.BuildID, &d.Source, &d.Path, &d.Characters, &d.Chunks, &d.IndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// CountBuilds returns the number of recorded builds.
func (s *SQLiteCatalog) CountBuilds(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_builds`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
