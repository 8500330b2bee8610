package repository

import (
	"context"
	"fmt"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
)

// MessageProducer is the subset of the Kafka producer used by publishers.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer       MessageProducer
	ordersTopic    string
	decisionsTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer MessageProducer, ordersTopic, decisionsTopic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, ordersTopic: ordersTopic, decisionsTopic: decisionsTopic}
}

// PublishOrder keys by instrument so one instrument's orders stay ordered.
func (p *KafkaPublisher) PublishOrder(ctx context.Context, spec *models.LimitOrderSpec) error {
	if spec == nil {
		return fmt.Errorf("order spec is nil")
	}
	return p.producer.Publish(ctx, p.ordersTopic, []byte(spec.InstrumentID), spec)
}

func (p *KafkaPublisher) PublishDecision(ctx context.Context, d *models.ExecutionDecision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	return p.producer.Publish(ctx, p.decisionsTopic, []byte(d.Engine), d)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// AlertPublisher adapts the producer to the logger collector.
type AlertPublisher struct {
	producer MessageProducer
}

func NewAlertPublisher(producer MessageProducer) *AlertPublisher {
	return &AlertPublisher{producer: producer}
}

func (a *AlertPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return a.producer.Publish(ctx, topic, nil, payload)
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOrder(context.Context, *models.LimitOrderSpec) error       { return nil }
func (NopPublisher) PublishDecision(context.Context, *models.ExecutionDecision) error { return nil }
func (NopPublisher) Close() error                                                     { return nil }
