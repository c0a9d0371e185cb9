package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mdhv11/cardwiz/config"
)

// IngestEvent is the message published to hand a document off for
// asynchronous analysis.
type IngestEvent struct {
	DocumentID   int64  `json:"documentId"`
	CardID       int64  `json:"cardId"`
	UserID       int64  `json:"userId"`
	S3Key        string `json:"s3Key"`
	BucketName   string `json:"bucketName"`
	DocumentType string `json:"documentType"`
}

// EventPublisher hands ingest requests to the messaging backbone. Publish
// must block until the broker acknowledges the write or the bounded wait
// elapses, so a failed handoff surfaces synchronously.
type EventPublisher interface {
	Publish(ctx context.Context, event *IngestEvent) error
	Close() error
}

// KafkaPublisher publishes ingest events to Kafka, keyed by card so events
// for the same card stay ordered within a partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaPublisher(cfg *config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.IngestTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer:  writer,
		timeout: time.Duration(cfg.PublishTimeout) * time.Second,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *IngestEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: failed to encode ingest event: %v", ErrIntegration, err)
	}

	key := "unknown"
	if event.CardID != 0 {
		key = strconv.FormatInt(event.CardID, 10)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to publish ingest event: %v", ErrIntegration, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
