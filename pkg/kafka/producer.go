package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Message is one record handed to the broker. Key selects the partition, so
// events of the same order stay ordered.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

type Producer interface {
	ProduceMessage(ctx context.Context, msg Message) error
	Close() error
}

type producer struct {
	syncProducer sarama.SyncProducer
	logger       *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}

	return NewProducerFromSync(p, logger), nil
}

// NewProducerFromSync wraps an existing sarama producer, e.g. a mock in tests.
func NewProducerFromSync(sp sarama.SyncProducer, logger *zap.Logger) Producer {
	return &producer{syncProducer: sp, logger: logger}
}

func (p *producer) ProduceMessage(ctx context.Context, msg Message) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier)+len(msg.Headers))
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	for k, v := range msg.Headers {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	record := &sarama.ProducerMessage{
		Topic:   msg.Topic,
		Value:   sarama.ByteEncoder(msg.Value),
		Headers: headers,
	}
	if msg.Key != "" {
		record.Key = sarama.StringEncoder(msg.Key)
	}

	partition, offset, err := p.syncProducer.SendMessage(record)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	p.logger.Debug(
		"Message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)

	return nil
}

func (p *producer) Close() error {
	return p.syncProducer.Close()
}
