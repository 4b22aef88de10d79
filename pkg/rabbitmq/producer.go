/**
 * @description
 * This package publishes dashboard audit events (logins, logouts, expired
 * sessions, withdrawals, merchant creation, key rotation) to RabbitMQ so that
 * back-office consumers can follow what merchants do in the dashboard.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - github.com/google/uuid: Event ids.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultExchange is the topic exchange dashboard events are published to.
const DefaultExchange = "dashboard.events"

// Event types published by the dashboard.
const (
	EventLogin             = "session.login"
	EventLoginFailed       = "session.login_failed"
	EventLogout            = "session.logout"
	EventSessionExpired    = "session.expired"
	EventWithdrawal        = "withdrawal.requested"
	EventMerchantCreated   = "merchant.created"
	EventAPIKeyRegenerated = "profile.api_key_regenerated"
	EventProfileUpdated    = "profile.updated"
	EventPasswordChanged   = "profile.password_changed"
)

// DashboardEvent is the payload of every published message.
type DashboardEvent struct {
	ID         uuid.UUID         `json:"id"`
	Type       string            `json:"type"`
	MerchantID string            `json:"merchant_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType, merchantID, email string, detail map[string]string) DashboardEvent {
	return DashboardEvent{
		ID:         uuid.New(),
		Type:       eventType,
		MerchantID: merchantID,
		Email:      email,
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	}
}

// RoutingKey is "dashboard.<type>".
func (e DashboardEvent) RoutingKey() string {
	return "dashboard." + e.Type
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishDashboardEvent(ctx context.Context, event DashboardEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   zerolog.Logger
}

// EventProducerFallback is a minimal no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct {
	Logger zerolog.Logger
}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.Logger.Debug().Str("mode", "fallback").Str("exchange", exchange).Str("routing_key", routingKey).Msg("publish skipped")
	return nil
}

func (p *EventProducerFallback) PublishDashboardEvent(ctx context.Context, event DashboardEvent) error {
	p.Logger.Debug().Str("mode", "fallback").Str("event_type", event.Type).Str("merchant_id", event.MerchantID).Msg("dashboard event publish skipped")
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// Slice from the first "amqp" if stray characters precede the scheme.
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and opens a channel. An empty exchange uses DefaultExchange.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}

	return &EventProducer{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   log.Logger.With().Str("component", "rabbitmq_producer").Logger(),
	}, nil
}

// Publish sends a JSON message to exchange with routingKey, declaring the
// durable topic exchange first. A broken channel is reopened once.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		p.logger.Error().Err(err).Str("exchange", exchange).Str("routing_key", routingKey).Msg("json marshal failed")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, exchange, routingKey, jsonBody)
	if err == nil {
		return nil
	}

	p.logger.Warn().Err(err).Str("exchange", exchange).Str("routing_key", routingKey).Msg("publish failed; reopening channel")
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	return p.publishLocked(ctx, exchange, routingKey, jsonBody)
}

func (p *EventProducer) publishLocked(ctx context.Context, exchange, routingKey string, body []byte) error {
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishDashboardEvent publishes event to the configured exchange.
func (p *EventProducer) PublishDashboardEvent(ctx context.Context, event DashboardEvent) error {
	return p.Publish(ctx, p.exchange, event.RoutingKey(), event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
