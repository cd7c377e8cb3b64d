package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RoutingKey is the audit message routing key consumed downstream.
const RoutingKey = "dhos.34837004"

const (
	exchangeName    = "dhos"
	publishAttempts = 3
	publishBackoff  = 250 * time.Millisecond
)

// AMQPPublisher delivers audit events to a RabbitMQ topic exchange. Publishes
// retry with bounded backoff and re-dial the connection on channel failure.
type AMQPPublisher struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log zerolog.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e.Body())
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(publishBackoff << (attempt - 1)):
			}
		}
		if lastErr = p.publishOnce(ctx, body); lastErr == nil {
			return nil
		}
		p.log.Warn().Err(lastErr).Int("attempt", attempt+1).
			Str("event_type", e.Kind).Msg("audit publish failed")
	}
	return fmt.Errorf("publish audit event after %d attempts: %w", publishAttempts, lastErr)
}

func (p *AMQPPublisher) publishOnce(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	return p.ch.PublishWithContext(ctx, exchangeName, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
