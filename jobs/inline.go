package jobs

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/eventbus"
	"github.com/brettboylen/social-listener/worker"
)

// InlineDispatcher runs each job on its own goroutine in this process. Jobs
// outlive the request that dispatched them and stop with the base context.
type InlineDispatcher struct {
	base     context.Context
	handlers *Handlers
	wg       sync.WaitGroup
	log      *logrus.Logger
}

func NewInlineDispatcher(base context.Context, handlers *Handlers, log *logrus.Logger) *InlineDispatcher {
	return &InlineDispatcher{base: base, handlers: handlers, log: log}
}

func (d *InlineDispatcher) DispatchCollection(_ context.Context, collectionID string) error {
	return d.dispatch(eventbus.CollectionRequested, CollectionJob{CollectionID: collectionID})
}

func (d *InlineDispatcher) DispatchRefresh(_ context.Context, req worker.RefreshRequest) error {
	return d.dispatch(eventbus.RefreshRequested, req)
}

func (d *InlineDispatcher) DispatchEnrichment(_ context.Context, job EnrichmentJob) error {
	return d.dispatch(eventbus.EnrichmentRequested, job)
}

func (d *InlineDispatcher) dispatch(eventType eventbus.EventType, payload any) error {
	evt, err := eventbus.NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.handlers.Handle(d.base, evt); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"event_id": evt.ID,
				"type":     evt.Type,
			}).Error("Inline job failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has returned
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
