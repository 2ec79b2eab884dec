package jobs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/eventbus"
	"github.com/brettboylen/social-listener/worker"
)

// Publisher is the publishing half of eventbus.EventBus
type Publisher interface {
	Publish(ctx context.Context, topic string, event eventbus.Event) error
}

// KafkaDispatcher publishes jobs for the worker processes to consume
type KafkaDispatcher struct {
	bus   Publisher
	topic eventbus.Topic
	log   *logrus.Logger
}

func NewKafkaDispatcher(bus Publisher, topic eventbus.Topic, log *logrus.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{bus: bus, topic: topic, log: log}
}

func (d *KafkaDispatcher) DispatchCollection(ctx context.Context, collectionID string) error {
	return d.publish(ctx, eventbus.CollectionRequested, CollectionJob{CollectionID: collectionID})
}

func (d *KafkaDispatcher) DispatchRefresh(ctx context.Context, req worker.RefreshRequest) error {
	return d.publish(ctx, eventbus.RefreshRequested, req)
}

func (d *KafkaDispatcher) DispatchEnrichment(ctx context.Context, job EnrichmentJob) error {
	return d.publish(ctx, eventbus.EnrichmentRequested, job)
}

func (d *KafkaDispatcher) publish(ctx context.Context, eventType eventbus.EventType, payload any) error {
	evt, err := eventbus.NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := d.bus.Publish(ctx, d.topic.Base(), evt); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", eventType, err)
	}
	d.log.WithFields(logrus.Fields{"event_id": evt.ID, "type": eventType}).Info("Job dispatched")
	return nil
}

// Consume blocks handling jobs from the topic until ctx is done
func Consume(ctx context.Context, bus eventbus.EventBus, groupID string, topic eventbus.Topic, handlers *Handlers) error {
	return bus.Subscribe(ctx, groupID, topic, handlers.Handle)
}
