package di

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes notification intents for the delivery service.
type KafkaProducer struct {
	writer messageWriter
	topic  string
	Logger *logrus.Logger
}

func NewKafkaProducer(broker, topic string, logger *logrus.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaProducer{writer: writer, topic: topic, Logger: logger}
}

// Dispatch writes one intent keyed by appointment id, so every intent of an
// appointment lands on the same partition in order.
func (kp *KafkaProducer) Dispatch(ctx context.Context, intent domain.NotificationIntent) error {
	message, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(intent.AppointmentID.String()),
		Value: message,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(intent.Kind)},
		},
	}
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	kp.Logger.WithFields(logrus.Fields{
		"Function":      "Dispatch",
		"Topic":         kp.topic,
		"Kind":          intent.Kind,
		"AppointmentID": intent.AppointmentID,
	}).Debug("Notification intent delivered to topic")
	return nil
}

func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// EnsureTopicExists creates topic on the cluster controller if it is missing.
func EnsureTopicExists(broker, topic string) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}
