package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink mirrors bus events to a Kafka topic so other instances see them.
type KafkaSink struct {
	writer *kafka.Writer
	origin string
}

// NewKafkaSink creates a sink writing to topic. origin tags messages so the
// instance can skip its own events when reading them back.
func NewKafkaSink(brokers []string, topic, origin string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Error("failed to write events to kafka", "count", len(messages), "error", err)
				}
			},
		},
		origin: origin,
	}
}

// Publish implements Publisher.
func (s *KafkaSink) Publish(ev Event) {
	msg, err := encodeMessage(ev, s.origin)
	if err != nil {
		slog.Error("failed to encode event", "event", ev.Name, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to publish event to kafka", "event", ev.Name, "error", err)
	}
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func encodeMessage(ev Event, origin string) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	key := ev.OrderID
	if key == "" {
		key = ev.Name
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event-name", Value: []byte(ev.Name)},
			{Key: "origin", Value: []byte(origin)},
		},
	}, nil
}

// decodeMessage returns the event in msg and whether it came from origin.
func decodeMessage(msg kafka.Message, origin string) (Event, bool, error) {
	own := false
	for _, h := range msg.Headers {
		if h.Key == "origin" && string(h.Value) == origin {
			own = true
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return Event{}, own, fmt.Errorf("decoding event: %w", err)
	}
	name, _ := raw["name"].(string)
	ev, err := Normalize(name, raw)
	if err != nil {
		return Event{}, own, err
	}
	if ts, ok := raw["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.At = t
		}
	}
	return ev, own, nil
}

// KafkaSource reads a topic and republishes foreign events on a local bus.
type KafkaSource struct {
	reader *kafka.Reader
	origin string
}

// NewKafkaSource creates a consumer for one instance. Every instance must see
// every event, so each joins its own group derived from groupPrefix and
// origin, starting at the newest offset.
func NewKafkaSource(brokers []string, topic, groupPrefix, origin string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(readerConfig(brokers, topic, groupPrefix, origin)),
		origin: origin,
	}
}

// ConsumerGroup returns the consumer group of the instance tagged origin.
func ConsumerGroup(prefix, origin string) string {
	if prefix == "" {
		return origin
	}
	return prefix + "-" + origin
}

func readerConfig(brokers []string, topic, groupPrefix, origin string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     ConsumerGroup(groupPrefix, origin),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Malformed messages are logged and skipped.
func (s *KafkaSource) Run(ctx context.Context, bus *Bus) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading event: %w", err)
		}
		ev, own, err := decodeMessage(msg, s.origin)
		if err != nil {
			slog.Warn("skipping malformed event", "offset", msg.Offset, "error", err)
			continue
		}
		if own {
			continue
		}
		bus.PublishLocal(ev)
	}
}

// Close closes the reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
