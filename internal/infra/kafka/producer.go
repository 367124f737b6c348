package kafka

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/infra/config"
)

// Producer owns a Sarama AsyncProducer and drains its delivery errors.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	failed   atomic.Int64
	drained  chan struct{}
}

// NewProducer initializes a Kafka async producer. Delivery errors are drained by a single goroutine.
// Messages are keyed by identity id, so one identity's events stay ordered within a partition.
func NewProducer(cfg config.KafkaSettings, clientID string, logger *zap.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.ClientID = clientID

	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	async, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.String("client_id", clientID),
	)

	return newProducer(async, cfg, logger), nil
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		producer: async,
		logger:   logger,
		cfg:      cfg,
		drained:  make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

// drainErrors logs failed deliveries until Sarama closes the error channel on shutdown.
// Events are best effort, so failures are counted and never retried here.
func (p *Producer) drainErrors() {
	defer close(p.drained)
	for perr := range p.producer.Errors() {
		if perr == nil {
			continue
		}
		p.failed.Add(1)
		p.logger.Error("kafka delivery failed",
			zap.Error(perr.Err),
			zap.String("topic", perr.Msg.Topic),
		)
	}
}

// FailedDeliveries returns the number of messages Sarama gave up on.
func (p *Producer) FailedDeliveries() int64 {
	return p.failed.Load()
}

// Close flushes buffered messages and waits until every delivery error has been drained.
func (p *Producer) Close() error {
	err := p.producer.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("kafka producer closed", zap.Int64("failed_deliveries", p.FailedDeliveries()))
	return nil
}

// TopicName places an event type under the configured topic prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
