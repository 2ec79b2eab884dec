// Package jobs hands collection, refresh and enrichment work to the workers,
// either in-process or through the event bus
package jobs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/eventbus"
	"github.com/brettboylen/social-listener/worker"
)

// CollectionJob requests the collect-then-enrich pipeline for one run
type CollectionJob struct {
	CollectionID string `json:"collection_id"`
}

// EnrichmentJob requests enrichment for a run or for an explicit set of posts
type EnrichmentJob struct {
	CollectionID string   `json:"collection_id,omitempty"`
	PostIDs      []string `json:"post_ids,omitempty"`
}

// Dispatcher schedules work without waiting for it
type Dispatcher interface {
	DispatchCollection(ctx context.Context, collectionID string) error
	DispatchRefresh(ctx context.Context, req worker.RefreshRequest) error
	DispatchEnrichment(ctx context.Context, job EnrichmentJob) error
}

type CollectionRunner interface {
	Run(ctx context.Context, collectionID string) error
}

type RefreshRunner interface {
	Run(ctx context.Context, req worker.RefreshRequest) (int, error)
}

type EnrichmentRunner interface {
	Run(ctx context.Context, collectionID string) error
	RunForPosts(ctx context.Context, postIDs []string) error
}

// Handlers executes job events against the workers
type Handlers struct {
	Collect CollectionRunner
	Refresh RefreshRunner
	Enrich  EnrichmentRunner
	log     *logrus.Logger
}

func NewHandlers(collect CollectionRunner, refresh RefreshRunner, enrich EnrichmentRunner, log *logrus.Logger) *Handlers {
	return &Handlers{Collect: collect, Refresh: refresh, Enrich: enrich, log: log}
}

// Handle runs the job carried by evt to completion
func (h *Handlers) Handle(ctx context.Context, evt eventbus.Event) error {
	logger := h.log.WithFields(logrus.Fields{"event_id": evt.ID, "type": evt.Type})

	switch evt.Type {
	case eventbus.CollectionRequested:
		job, err := eventbus.DecodeJSON[CollectionJob](evt)
		if err != nil {
			return err
		}
		return h.Collect.Run(ctx, job.CollectionID)

	case eventbus.RefreshRequested:
		req, err := eventbus.DecodeJSON[worker.RefreshRequest](evt)
		if err != nil {
			return err
		}
		n, err := h.Refresh.Run(ctx, req)
		if err != nil {
			return err
		}
		logger.WithField("snapshots", n).Info("Engagement refresh finished")
		return nil

	case eventbus.EnrichmentRequested:
		job, err := eventbus.DecodeJSON[EnrichmentJob](evt)
		if err != nil {
			return err
		}
		if len(job.PostIDs) > 0 {
			return h.Enrich.RunForPosts(ctx, job.PostIDs)
		}
		if job.CollectionID == "" {
			return fmt.Errorf("enrichment job needs a collection_id or post_ids")
		}
		return h.Enrich.Run(ctx, job.CollectionID)
	}

	return fmt.Errorf("%w: %s", eventbus.ErrUnknownEvent, evt.Type)
}
