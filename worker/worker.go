// Package worker drives the phases of a collection run: collection,
// engagement refresh and enrichment.
package worker

import (
	"context"
	"iter"

	"github.com/brettboylen/social-listener/models"
)

// StatusStore holds the externally observable status of each run
type StatusStore interface {
	Get(ctx context.Context, collectionID string) (*models.CollectionStatus, error)
	Update(ctx context.Context, collectionID string, upd models.StatusUpdate) error
}

// RowStore is the row store the collection worker reads configs from and
// appends rows to
type RowStore interface {
	CollectionConfig(ctx context.Context, collectionID string) (models.CollectionConfig, string, error)
	InsertRows(ctx context.Context, table string, rows []map[string]any) error
	SeenKeys(ctx context.Context, collectionID string) (posts map[string]bool, channels map[string]bool, err error)
}

// Source produces the merged batch stream of a run
type Source interface {
	CollectAll(ctx context.Context, cfg models.CollectionConfig) iter.Seq[models.Batch]
}

// MediaStore re-hosts the media of a post and returns the stored references
type MediaStore interface {
	Download(ctx context.Context, post models.Post, collectionID string) []models.MediaRef
}
