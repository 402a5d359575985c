// Package publisher announces created carts to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic           = "carts-submitted"
	EventTypeCartSubmitted = "cart.submitted"
)

type EventPublisher interface {
	PublishCartSubmitted(ctx context.Context, cart domain.RemoteCart) error
	Close() error
}

type CartSubmittedEvent struct {
	CartID      int64                  `json:"cart_id"`
	UserID      int64                  `json:"user_id"`
	Date        string                 `json:"date"`
	Products    []domain.RemoteProduct `json:"products"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
	logger *slog.Logger
}

func NewKafkaPublisher(topic string, logger *slog.Logger, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
	}
	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w messageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: w, now: time.Now, logger: logger}
}

// PublishCartSubmitted writes one event keyed by user id, so a user's carts
// stay ordered within a partition.
func (p *KafkaPublisher) PublishCartSubmitted(ctx context.Context, cart domain.RemoteCart) error {
	payload, err := json.Marshal(CartSubmittedEvent{
		CartID:      cart.ID,
		UserID:      cart.UserID,
		Date:        cart.Date,
		Products:    cart.Products,
		SubmittedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(cart.UserID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCartSubmitted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish cart %d: %w", cart.ID, err)
	}

	p.logger.Debug("cart event published", "cart_id", cart.ID, "user_id", cart.UserID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishCartSubmitted(context.Context, domain.RemoteCart) error { return nil }

func (NopPublisher) Close() error { return nil }
