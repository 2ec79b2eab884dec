package worker

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
)

// Pipeline runs collection and, when it completes, enrichment
type Pipeline struct {
	collector *CollectionWorker
	enricher  *Enricher
	status    StatusStore
	log       *logrus.Logger
}

func NewPipeline(collector *CollectionWorker, enricher *Enricher, status StatusStore, log *logrus.Logger) *Pipeline {
	return &Pipeline{collector: collector, enricher: enricher, status: status, log: log}
}

// Run returns the collection error, if any. Enrichment failures are
// recorded on the run status and logged.
func (p *Pipeline) Run(ctx context.Context, collectionID string) error {
	logger := p.log.WithField("collection_id", collectionID)

	if err := p.collector.Run(ctx, collectionID); err != nil {
		logger.WithError(err).Error("Collection pipeline failed")
		return err
	}

	status, err := p.status.Get(ctx, collectionID)
	if err != nil {
		logger.WithError(err).Error("Failed to read status after collection")
		return nil
	}
	if status.Status != models.StateCompleted {
		logger.WithField("status", status.Status).Info("Skipping enrichment")
		return nil
	}

	err = p.enricher.Run(ctx, collectionID)
	switch {
	case errors.Is(err, ErrNoScripts):
		logger.WithError(err).Warn("Skipping enrichment")
	case err != nil:
		logger.WithError(err).Error("Enrichment pipeline failed")
	}
	return nil
}
