package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
)

// Script names looked up in the enrichment SQL directory
const (
	EnrichScript = "batch_enrich.sql"
	EmbedScript  = "batch_embed.sql"
)

// ErrNoScripts is returned when the enrichment SQL directory lacks the
// enrich script. No status is touched in that case.
var ErrNoScripts = errors.New("enrichment scripts not found")

// EnrichmentStore runs the enrichment transforms and counts their output
type EnrichmentStore interface {
	RunScript(ctx context.Context, path string, params map[string]any) error
	CountEnriched(ctx context.Context, collectionID string) (int, error)
	CountEmbedded(ctx context.Context, collectionID string) (int, error)
}

// Enricher runs the enrich and embed transforms over a run's posts
type Enricher struct {
	rows   EnrichmentStore
	status StatusStore
	sqlDir string
	log    *logrus.Logger
}

func NewEnricher(rows EnrichmentStore, status StatusStore, sqlDir string, log *logrus.Logger) *Enricher {
	return &Enricher{rows: rows, status: status, sqlDir: sqlDir, log: log}
}

// Run enriches every post of a run and tracks progress on its status
func (e *Enricher) Run(ctx context.Context, collectionID string) error {
	return e.run(ctx, collectionID, nil)
}

// RunForPosts enriches specific posts. No status is updated.
func (e *Enricher) RunForPosts(ctx context.Context, postIDs []string) error {
	return e.run(ctx, "", postIDs)
}

func (e *Enricher) run(ctx context.Context, collectionID string, postIDs []string) error {
	logger := e.log.WithFields(logrus.Fields{"collection_id": collectionID, "post_ids": len(postIDs)})

	if _, err := os.Stat(filepath.Join(e.sqlDir, EnrichScript)); err != nil {
		return fmt.Errorf("%w in %s: %v", ErrNoScripts, e.sqlDir, err)
	}

	if postIDs == nil {
		postIDs = []string{}
	}
	ids, err := json.Marshal(postIDs)
	if err != nil {
		return fmt.Errorf("failed to encode post ids: %w", err)
	}
	params := map[string]any{"collection_id": collectionID, "post_ids": string(ids)}

	if collectionID != "" {
		if err := e.status.Update(ctx, collectionID, models.SetState(models.StateEnriching)); err != nil {
			return fmt.Errorf("failed to mark enrichment started: %w", err)
		}
	}

	if err := e.steps(ctx, collectionID, params, logger); err != nil {
		logger.WithError(err).Error("Enrichment failed")
		if collectionID != "" {
			upd := models.Failed("Enrichment error: " + err.Error())
			if updErr := e.status.Update(context.WithoutCancel(ctx), collectionID, upd); updErr != nil {
				logger.WithError(updErr).Error("Failed to record enrichment failure")
			}
		}
		return err
	}
	return nil
}

func (e *Enricher) steps(ctx context.Context, collectionID string, params map[string]any, logger *logrus.Entry) error {
	logger.Info("Running batch enrichment")
	if err := e.rows.RunScript(ctx, filepath.Join(e.sqlDir, EnrichScript), params); err != nil {
		return err
	}

	if collectionID != "" {
		enriched, err := e.rows.CountEnriched(ctx, collectionID)
		if err != nil {
			return err
		}
		n := int64(enriched)
		if err := e.status.Update(ctx, collectionID, models.StatusUpdate{PostsEnriched: &n}); err != nil {
			return err
		}
		logger.WithField("posts_enriched", n).Info("Posts enriched")

		status, err := e.status.Get(ctx, collectionID)
		if err != nil {
			return err
		}
		if status.Status == models.StateCancelled {
			logger.Info("Enrichment cancelled before embedding")
			return nil
		}
	}

	logger.Info("Running batch embedding")
	if err := e.rows.RunScript(ctx, filepath.Join(e.sqlDir, EmbedScript), params); err != nil {
		return err
	}

	if collectionID != "" {
		embedded, err := e.rows.CountEmbedded(ctx, collectionID)
		if err != nil {
			return err
		}
		n := int64(embedded)
		state := models.StateCompleted
		if err := e.status.Update(ctx, collectionID, models.StatusUpdate{PostsEmbedded: &n, Status: &state}); err != nil {
			return err
		}
		logger.WithField("posts_embedded", n).Info("Embeddings generated")
	}
	return nil
}
