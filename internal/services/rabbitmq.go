package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/models"
)

// RoutingKeyReportSubmitted is used for every persisted report
const RoutingKeyReportSubmitted = "report.submitted"

// RabbitMQPublisher publishes report events to a topic exchange
type RabbitMQPublisher struct {
	mu           sync.RWMutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	url          string
	closed       chan struct{}
	closeOnce    sync.Once
}

// NewRabbitMQPublisher connects, declares the exchange and watches the connection
func NewRabbitMQPublisher(url, exchangeName string) (*RabbitMQPublisher, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	publisher := &RabbitMQPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		url:          url,
		closed:       make(chan struct{}),
	}

	go publisher.handleReconnect()

	log.Info().
		Str("exchange", exchangeName).
		Msg("RabbitMQ publisher initialized")

	return publisher, nil
}

func dialExchange(url, exchangeName string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchange(channel, exchangeName); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, err
	}

	return conn, channel, nil
}

func declareExchange(channel *amqp.Channel, exchangeName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// PublishReportSubmitted publishes a report.submitted event
func (p *RabbitMQPublisher) PublishReportSubmitted(ctx context.Context, event models.ReportSubmittedEvent) error {
	return p.publish(ctx, RoutingKeyReportSubmitted, event)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.RLock()
	channel := p.channel
	p.mu.RUnlock()

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    fmt.Sprintf("%d", time.Now().UnixNano()),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Info().
		Str("routing_key", routingKey).
		Str("exchange", p.exchangeName).
		Int("body_size", len(body)).
		Msg("Message published to RabbitMQ")

	return nil
}

// handleReconnect restores the channel or the whole connection after the
// broker drops either one, until Close
func (p *RabbitMQPublisher) handleReconnect() {
	for {
		p.mu.RLock()
		connClosed := p.conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClosed := p.channel.NotifyClose(make(chan *amqp.Error, 1))
		p.mu.RUnlock()

		select {
		case <-p.closed:
			return
		case closeErr := <-connClosed:
			if p.isClosed() {
				return
			}
			log.Error().Err(closeErr).Msg("RabbitMQ connection closed, attempting to reconnect...")
			if !p.redial() {
				return
			}
		case closeErr := <-chanClosed:
			if p.isClosed() {
				return
			}
			log.Error().Err(closeErr).Msg("RabbitMQ channel closed, reopening...")
			if err := p.reopenChannel(); err != nil {
				log.Error().Err(err).Msg("Failed to reopen RabbitMQ channel, reconnecting...")
				if !p.redial() {
					return
				}
			}
		}
	}
}

// redial dials every 5 seconds until it succeeds. It returns false when the
// publisher was closed meanwhile.
func (p *RabbitMQPublisher) redial() bool {
	for {
		select {
		case <-p.closed:
			return false
		case <-time.After(5 * time.Second):
		}

		conn, channel, err := dialExchange(p.url, p.exchangeName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to reconnect to RabbitMQ")
			continue
		}

		p.mu.RLock()
		old := p.conn
		p.mu.RUnlock()

		if !p.install(conn, channel) {
			channel.Close()
			conn.Close()
			return false
		}
		if old != nil && !old.IsClosed() {
			old.Close()
		}

		log.Info().Msg("Successfully reconnected to RabbitMQ")
		return true
	}
}

func (p *RabbitMQPublisher) reopenChannel() error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareExchange(channel, p.exchangeName); err != nil {
		channel.Close()
		return err
	}

	p.mu.Lock()
	select {
	case <-p.closed:
		p.mu.Unlock()
		channel.Close()
		return nil
	default:
	}
	p.channel = channel
	p.mu.Unlock()

	log.Info().Msg("RabbitMQ channel reopened")
	return nil
}

// install swaps in a fresh connection unless Close already ran
func (p *RabbitMQPublisher) install(conn *amqp.Connection, channel *amqp.Channel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.closed:
		return false
	default:
	}
	p.conn = conn
	p.channel = channel
	return true
}

func (p *RabbitMQPublisher) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Close closes the RabbitMQ connection. Calls after the first are no-ops.
func (p *RabbitMQPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.channel != nil && !p.channel.IsClosed() {
			if cerr := p.channel.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("Failed to close RabbitMQ channel")
			}
		}
		if p.conn != nil && !p.conn.IsClosed() {
			if cerr := p.conn.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("Failed to close RabbitMQ connection")
				err = cerr
				return
			}
		}
		log.Info().Msg("RabbitMQ publisher closed")
	})
	return err
}

// HealthCheck verifies the RabbitMQ connection
func (p *RabbitMQPublisher) HealthCheck(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("RabbitMQ channel is closed")
	}
	return nil
}
