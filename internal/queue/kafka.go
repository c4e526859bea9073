package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/config"
)

// KafkaQueue publishes synchronously and runs one consumer per subscription.
// Offsets are committed after the handler succeeds or exhausts its retries.
type KafkaQueue struct {
	producer  *kafka.Producer
	cfg       config.Queue
	log       *zap.Logger
	mu        sync.Mutex
	consumers []*kafka.Consumer
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewKafkaQueue(cfg config.Queue, log *zap.Logger) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.KafkaBrokers, ","),
		"client.id":         cfg.KafkaClientID,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &KafkaQueue{
		producer: producer,
		cfg:      cfg,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Publish waits for the broker's delivery report.
func (q *KafkaQueue) Publish(topic string, payload any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            partitionKey(body),
		Value:          body,
	}
	if err := q.producer.Produce(msg, deliveryChan); err != nil {
		return err
	}

	e := <-deliveryChan
	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event %v", e)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}
	return nil
}

// partitionKey keys messages by campaign so one campaign's events stay ordered.
func partitionKey(body []byte) []byte {
	var keyed struct {
		CampaignID string `json:"campaign_id"`
	}
	if json.Unmarshal(body, &keyed) != nil || keyed.CampaignID == "" {
		return nil
	}
	return []byte(keyed.CampaignID)
}

func (q *KafkaQueue) Subscribe(topic string, handler func(payload any) error) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(q.cfg.KafkaBrokers, ","),
		"group.id":           q.cfg.KafkaGroup + "." + topic,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		consumer.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	q.mu.Lock()
	q.consumers = append(q.consumers, consumer)
	q.mu.Unlock()

	log := q.log.With(zap.String("topic", topic))
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-q.done:
				return
			default:
			}

			msg, err := consumer.ReadMessage(200 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.IsTimeout() {
					continue
				}
				log.Warn("error reading message", zap.Error(err))
				continue
			}

			_ = deliver(log, handler, json.RawMessage(msg.Value), q.cfg.MaxRetries, 500*time.Millisecond)
			if _, err := consumer.CommitMessage(msg); err != nil {
				log.Warn("error committing message", zap.Error(err))
			}
		}
	}()
	return nil
}

func (q *KafkaQueue) Close() error {
	close(q.done)
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	var errs []error
	for _, c := range q.consumers {
		errs = append(errs, c.Close())
	}
	q.producer.Flush(5000)
	q.producer.Close()
	return errors.Join(errs...)
}

var _ Queue = (*KafkaQueue)(nil)
