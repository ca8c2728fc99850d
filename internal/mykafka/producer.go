package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ndmitriev/estore/internal/models"
)

const emitTimeout = 5 * time.Second

// Producer writes partition-keyed JSON records to the activity and
// order event streams. Emission is fire-and-forget: a broker outage is
// logged and counted, never returned to the caller.
type Producer struct {
	writer        *kafka.Writer
	logger        *slog.Logger
	activityTopic string
	ordersTopic   string
	failures      atomic.Int64
}

func NewProducer(logger *slog.Logger, brokers []string, activityTopic, ordersTopic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    1,
		WriteTimeout: emitTimeout,
	}

	return &Producer{
		writer:        writer,
		logger:        logger,
		activityTopic: activityTopic,
		ordersTopic:   ordersTopic,
	}
}

// Emit appends one record to topic, routed by key. All errors are
// swallowed here so a slow or dead broker can never fail a checkout or
// a status update.
func (p *Producer) Emit(ctx context.Context, topic, key string, record map[string]any) {
	record["event_id"] = uuid.NewString()
	record["event_ts"] = time.Now().UTC().UnixMilli()

	data, err := json.Marshal(record)
	if err != nil {
		p.fail(topic, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.fail(topic, err)
	}
}

// PublishActivity emits a user activity record. Anonymous activity is
// routed under the "anonymous" partition key.
func (p *Producer) PublishActivity(ctx context.Context, eventType string, userID *uint, payload map[string]any) {
	key, record := activityRecord(eventType, userID, payload)
	p.Emit(ctx, p.activityTopic, key, record)
}

// PublishOrderEvent emits an order lifecycle record keyed by order id,
// so all events of one order land on the same partition in order.
func (p *Producer) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	key, record := orderRecord(eventType, order)
	p.Emit(ctx, p.ordersTopic, key, record)
}

func activityRecord(eventType string, userID *uint, payload map[string]any) (string, map[string]any) {
	key := "anonymous"
	record := map[string]any{
		"event_type": eventType,
		"user_id":    nil,
		"payload":    payload,
	}
	if userID != nil {
		key = fmt.Sprint(*userID)
		record["user_id"] = *userID
	}
	return key, record
}

func orderRecord(eventType string, order *models.Order) (string, map[string]any) {
	record := map[string]any{
		"event_type":   eventType,
		"order_id":     order.ID,
		"user_id":      order.UserID,
		"status":       order.Status,
		"total_amount": order.TotalAmount.StringFixed(2),
	}
	return fmt.Sprint(order.ID), record
}

// Failures reports how many emissions have been dropped since start.
func (p *Producer) Failures() int64 {
	return p.failures.Load()
}

func (p *Producer) fail(topic string, err error) {
	p.failures.Add(1)
	p.logger.Warn("kafka emit dropped", "topic", topic, "error", err)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// EnsureTopics creates the event topics if they are absent. Creating an
// already existing topic is not an error, so concurrent startup of
// several instances is safe.
func EnsureTopics(broker string, topics ...string) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	admin, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("kafka controller dial: %w", err)
	}
	defer admin.Close()

	cfgs := make([]kafka.TopicConfig, 0, len(topics))
	for _, tp := range topics {
		cfgs = append(cfgs, kafka.TopicConfig{
			Topic:             tp,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	if err := admin.CreateTopics(cfgs...); err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("kafka create topics: %w", err)
	}
	return nil
}
