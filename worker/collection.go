package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/normalizer"
)

// CollectionWorker runs one collection from its stored configuration to a
// terminal state
type CollectionWorker struct {
	rows   RowStore
	status StatusStore
	source Source
	media  MediaStore
	log    *logrus.Logger
}

// NewCollectionWorker creates a collection worker. media may be nil, in
// which case posts keep their raw media URLs only.
func NewCollectionWorker(rows RowStore, status StatusStore, source Source, media MediaStore, log *logrus.Logger) *CollectionWorker {
	return &CollectionWorker{
		rows:   rows,
		status: status,
		source: source,
		media:  media,
		log:    log,
	}
}

// Run collects, deduplicates and persists every batch of a run. Cancellation
// is checked before each batch. Configuration and persistence errors mark
// the run failed and are returned.
func (w *CollectionWorker) Run(ctx context.Context, collectionID string) error {
	logger := w.log.WithField("collection_id", collectionID)

	if cancelled, err := w.cancelled(ctx, collectionID); err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	} else if cancelled {
		logger.Info("Collection cancelled before start, skipping")
		return nil
	}

	cfg, _, err := w.rows.CollectionConfig(ctx, collectionID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidConfig) {
			w.fail(ctx, collectionID, err)
		}
		return fmt.Errorf("failed to load collection config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		w.fail(ctx, collectionID, err)
		return err
	}

	if err := w.status.Update(ctx, collectionID, models.SetState(models.StateCollecting)); err != nil {
		return fmt.Errorf("failed to mark collection started: %w", err)
	}

	seenPosts, seenChannels, err := w.rows.SeenKeys(ctx, collectionID)
	if err != nil {
		w.fail(ctx, collectionID, err)
		return fmt.Errorf("failed to load persisted keys: %w", err)
	}
	dedup := NewDeduper(seenPosts, seenChannels)
	total := int64(dedup.Posts())

	logger.WithFields(logrus.Fields{
		"platforms":  cfg.Platforms,
		"keywords":   len(cfg.Keywords),
		"cap_mode":   cfg.CapMode(),
		"page_limit": cfg.PageLimit(),
		"resumed":    total,
	}).Info("Starting collection")

	for batch := range w.source.CollectAll(ctx, cfg) {
		cancelled, err := w.cancelled(ctx, collectionID)
		if err != nil {
			w.fail(ctx, collectionID, err)
			return fmt.Errorf("failed to read status: %w", err)
		}
		if cancelled {
			logger.WithField("posts_collected", total).Info("Collection cancelled by user")
			return nil
		}

		posts, channels := dedup.Filter(batch)
		if len(posts) == 0 && len(channels) == 0 {
			continue
		}

		if err := w.persist(ctx, collectionID, posts, channels); err != nil {
			w.fail(ctx, collectionID, err)
			return err
		}

		total += int64(len(posts))
		if err := w.status.Update(ctx, collectionID, models.StatusUpdate{PostsCollected: &total}); err != nil {
			w.fail(ctx, collectionID, err)
			return fmt.Errorf("failed to update progress: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"new_posts":       len(posts),
			"new_channels":    len(channels),
			"dupes_skipped":   len(batch.Posts) - len(posts),
			"posts_collected": total,
		}).Info("Batch persisted")
	}

	if err := ctx.Err(); err != nil {
		w.fail(ctx, collectionID, fmt.Errorf("collection interrupted: %w", err))
		return err
	}

	// a cancel after the last batch must not be overwritten
	cancelled, err := w.cancelled(ctx, collectionID)
	if err != nil {
		w.fail(ctx, collectionID, err)
		return fmt.Errorf("failed to read status: %w", err)
	}
	if cancelled {
		logger.WithField("posts_collected", total).Info("Collection cancelled by user")
		return nil
	}

	if err := w.status.Update(ctx, collectionID, models.SetState(models.StateCompleted)); err != nil {
		return fmt.Errorf("failed to mark collection completed: %w", err)
	}
	logger.WithField("posts_collected", total).Info("Collection completed")
	return nil
}

func (w *CollectionWorker) cancelled(ctx context.Context, collectionID string) (bool, error) {
	status, err := w.status.Get(ctx, collectionID)
	if err != nil {
		return false, err
	}
	return status.Status == models.StateCancelled, nil
}

// persist uploads media, then writes posts, initial engagements and
// channels as three separate inserts
func (w *CollectionWorker) persist(ctx context.Context, collectionID string, posts []models.Post, channels []models.Channel) error {
	postRows := make([]map[string]any, 0, len(posts))
	engagementRows := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		if w.media != nil && len(post.MediaURLs) > 0 {
			post.MediaRefs = w.media.Download(ctx, post, collectionID)
		}
		postRows = append(postRows, normalizer.PostRow(post, collectionID))
		engagementRows = append(engagementRows, normalizer.EngagementRow(post))
	}

	channelRows := make([]map[string]any, 0, len(channels))
	for _, channel := range channels {
		channelRows = append(channelRows, normalizer.ChannelRow(channel, collectionID))
	}

	if err := w.rows.InsertRows(ctx, normalizer.TablePosts, postRows); err != nil {
		return fmt.Errorf("failed to persist posts: %w", err)
	}
	if err := w.rows.InsertRows(ctx, normalizer.TableEngagements, engagementRows); err != nil {
		return fmt.Errorf("failed to persist engagements: %w", err)
	}
	if err := w.rows.InsertRows(ctx, normalizer.TableChannels, channelRows); err != nil {
		return fmt.Errorf("failed to persist channels: %w", err)
	}
	return nil
}

// fail records err on the run. The update outlives ctx so shutdowns still
// leave a terminal state behind.
func (w *CollectionWorker) fail(ctx context.Context, collectionID string, err error) {
	w.log.WithField("collection_id", collectionID).WithError(err).Error("Collection failed")
	if updErr := w.status.Update(context.WithoutCancel(ctx), collectionID, models.Failed(err.Error())); updErr != nil {
		w.log.WithField("collection_id", collectionID).WithError(updErr).Error("Failed to record collection failure")
	}
}
