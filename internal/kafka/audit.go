package kafka

import (
	"encoding/json"
	"log/slog"
	"time"

	"chat-relay/internal/chat"

	"github.com/IBM/sarama"
)

// AuditProducer publishes every accepted chat message to a kafka topic,
// keyed by room so one room's audit trail stays on one partition. It is a
// fire-and-forget tap: delivery failures are logged and dropped, never
// surfaced to the sender. Implements chat.MessageAudit.
type AuditProducer struct {
	producer sarama.AsyncProducer
	topic    string
}

type auditRecord struct {
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

func NewAuditProducer(brokers []string, topic string) (*AuditProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = "chat-relay"

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	a := &AuditProducer{producer: producer, topic: topic}
	go a.drainErrors()
	return a, nil
}

// Record enqueues the message for publication without blocking the
// message router.
func (a *AuditProducer) Record(msg chat.Message) {
	value, err := json.Marshal(auditRecord{
		Room:      msg.Room,
		Sender:    msg.Sender,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
		Seq:       msg.Seq,
	})
	if err != nil {
		slog.Error("failed to encode audit record", "error", err)
		return
	}

	select {
	case a.producer.Input() <- &sarama.ProducerMessage{
		Topic: a.topic,
		Key:   sarama.StringEncoder(msg.Room),
		Value: sarama.ByteEncoder(value),
	}:
	default:
		slog.Warn("audit producer backed up, dropping record",
			"room", msg.Room, "seq", msg.Seq)
	}
}

func (a *AuditProducer) drainErrors() {
	for err := range a.producer.Errors() {
		slog.Error("audit publish failed", "topic", a.topic, "error", err.Err)
	}
}

func (a *AuditProducer) Close() error {
	return a.producer.Close()
}
