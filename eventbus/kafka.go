package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// KafkaBus is the EventBus on confluent-kafka-go
type KafkaBus struct {
	producer *kafka.Producer
	brokers  string
	log      *logrus.Logger
}

// NewKafkaBus creates the producer and drains its delivery reports
func NewKafkaBus(brokers string, log *logrus.Logger) (*KafkaBus, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					log.WithError(ev.TopicPartition.Error).Error("Kafka delivery failed")
				}
			case kafka.Error:
				log.WithError(ev).Error("Kafka error")
			}
		}
	}()

	return &KafkaBus{producer: p, brokers: brokers, log: log}, nil
}

// Close flushes pending messages for up to five seconds
func (k *KafkaBus) Close() {
	if k.producer == nil {
		return
	}
	if remaining := k.producer.Flush(5000); remaining > 0 {
		k.log.WithField("remaining", remaining).Warn("Kafka messages left unflushed")
	}
	k.producer.Close()
	k.log.Info("Kafka producer closed")
}

// Publish sends event to topic and waits for its delivery report
func (k *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          data,
		Key:            []byte(event.ID),
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("failed to deliver event: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	k.log.WithFields(logrus.Fields{"topic": topic, "event_id": event.ID, "type": event.Type}).Debug("Event published")
	return nil
}

// Subscribe handles events of the base topic with manual commits. A failed
// event is republished for another attempt or parked on the DLQ before its
// offset is committed.
func (k *KafkaBus) Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":             k.brokers,
		"group.id":                      groupID,
		"auto.offset.reset":             "earliest",
		"enable.auto.commit":            false,
		"partition.assignment.strategy": "range",
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	defer c.Close()

	if err := c.SubscribeTopics([]string{topic.Base()}, nil); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic.Base(), err)
	}

	logger := k.log.WithFields(logrus.Fields{"group_id": groupID, "topic": topic.Base()})
	logger.Info("Consumer started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Consumer stopping")
			return ctx.Err()
		default:
		}

		msg, err := c.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("fatal consumer error: %w", err)
				}
			}
			logger.WithError(err).Warn("Failed to read message")
			continue
		}

		var evt Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.WithError(err).Error("Malformed event, skipping")
			c.CommitMessage(msg)
			continue
		}

		evtLog := logger.WithFields(logrus.Fields{"event_id": evt.ID, "type": evt.Type, "attempt": evt.Attempt})
		evtLog.Info("Handling event")

		if err := handler(ctx, evt); err != nil {
			next, retried := redeliver(topic, evt, err)
			evtLog.WithError(err).WithField("next_topic", next).Warn("Event failed")
			if pubErr := k.Publish(ctx, next, retried); pubErr != nil {
				evtLog.WithError(pubErr).Error("Failed to republish event, offset not committed")
				continue
			}
		}

		if _, err := c.CommitMessage(msg); err != nil {
			evtLog.WithError(err).Error("Failed to commit offset")
		}
	}
}

// EnsureTopics creates the base and dead-letter topics. Existing topics
// count as success.
func EnsureTopics(ctx context.Context, brokers string, topic Topic, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	specs := []kafka.TopicSpecification{
		{Topic: topic.Base(), NumPartitions: partitions, ReplicationFactor: 1},
		{Topic: topic.DLQ(), NumPartitions: 1, ReplicationFactor: 1},
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, r := range results {
		code := r.Error.Code()
		if code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", r.Topic, r.Error)
		}
	}
	return nil
}
