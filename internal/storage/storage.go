// Package storage keeps a catalog of index builds and the documents that went
// into them.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/bayan/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Catalog records index builds.
type Catalog interface {
	// RecordBuild stores build and its documents. An empty build.ID is
	// replaced with a new UUID.
	RecordBuild(ctx context.Context, build *models.IndexBuild, docs []models.DocumentRecord) error
	GetBuild(ctx context.Context, id string) (*models.IndexBuild, error)
	LatestBuild(ctx context.Context) (*models.IndexBuild, error)
	ListBuilds(ctx context.Context, offset, limit int) ([]*models.IndexBuild, error)
	ListDocuments(ctx context.Context, buildID string) ([]*models.DocumentRecord, error)
	CountBuilds(ctx context.Context) (int64, error)

	Close() error
}
