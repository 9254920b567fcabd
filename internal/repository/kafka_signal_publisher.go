package repository

import (
	"context"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	pkgkafka "AnchorPull/pkg/kafka"
)

// KafkaSignalPublisher announces emitted signals on a Kafka topic, keyed by
// symbol so downstream consumers see per-symbol ordering.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) domrepo.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, sig models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(sig.Symbol), map[string]interface{}{
		"symbol":          sig.Symbol,
		"date":            sig.Date.Format("2006-01-02"),
		"kind":            string(sig.Kind),
		"reference_price": sig.ReferencePrice,
		"anchored_vwap":   sig.VWAPAtSignal,
		"zone":            string(sig.ZoneAtSignal),
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
