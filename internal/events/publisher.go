package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trivia-quiz-service/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends attempt events to a RabbitMQ topic exchange.
// With an empty URL it is disabled and every publish is a no-op.
type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	enabled  bool
	now      func() time.Time
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		log.Println("amqp url is empty, event publishing is disabled")
		return &Publisher{enabled: false, now: time.Now}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange, enabled: true, now: time.Now}, nil
}

func (p *Publisher) Enabled() bool {
	return p.enabled
}

func (p *Publisher) PublishAttemptRecorded(ctx context.Context, owner domain.Owner, attempt domain.Attempt) error {
	return p.publish(ctx, RoutingAttemptRecorded, NewAttemptRecordedEvent(owner, attempt, p.now()))
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	if !p.enabled {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("close amqp channel: %v", err)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
