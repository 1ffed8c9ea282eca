package kafka

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/IBM/sarama"

	"github.com/etherroyale/minigames-api/internal/config"
	"github.com/etherroyale/minigames-api/internal/domain"
)

// Producer publishes play-accepted events to Kafka. Publishing is fire and
// forget: delivery failures are logged and discarded, the submission that
// triggered the event has already been accepted.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProducer creates and starts a new play-event producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	// Drain delivery errors so the producer never blocks
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Warn("play event delivery failed", "topic", p.topic, "error", err.Err)
		}
	}()

	return p, nil
}

// PublishPlayEvent enqueues a play event, keyed by NFT id so per-token events
// stay ordered within a partition.
func (p *Producer) PublishPlayEvent(event domain.PlayEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal play event", "error", err)
		return
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(event.NFTID, 10)),
		Value: sarama.ByteEncoder(data),
	}
}

// Close flushes pending messages and stops the producer
func (p *Producer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
