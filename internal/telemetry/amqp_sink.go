package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gmb-connector/internal/common/logging"

	"github.com/streadway/amqp"
)

const (
	RoutingKeyCall  = "gmb.call"
	RoutingKeyError = "gmb.error"
)

// Channel abstracts the AMQP channel for testing. *amqp.Channel satisfies it.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes records as persistent JSON messages to a topic exchange.
// Only classified errors are published unless WithCalls is set.
type AMQPSink struct {
	mu        sync.Mutex
	conn      *amqp.Connection
	ch        Channel
	exchange  string
	withCalls bool
	logger    logging.Logger
}

// DialAMQPSink connects to url and declares exchange as a durable topic exchange.
func DialAMQPSink(url, exchange string, logger logging.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	sink, err := NewAMQPSink(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sink.conn = conn
	return sink, nil
}

func NewAMQPSink(ch Channel, exchange string, logger logging.Logger) (*AMQPSink, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPSink{
		ch:       ch,
		exchange: exchange,
		logger: logger.WithFields(
			logging.String("component", "amqp_sink"),
			logging.String("exchange", exchange),
		),
	}, nil
}

// WithCalls enables publishing of call records.
func (s *AMQPSink) WithCalls() *AMQPSink {
	s.withCalls = true
	return s
}

func (s *AMQPSink) RecordCall(ctx context.Context, rec CallRecord) {
	if !s.withCalls {
		return
	}
	rec.Stamp()
	s.publish(ctx, RoutingKeyCall, rec.ID, rec)
}

func (s *AMQPSink) RecordError(ctx context.Context, rec ErrorRecord) {
	rec.Stamp()
	s.publish(ctx, RoutingKeyError, rec.ID, rec)
}

func (s *AMQPSink) publish(ctx context.Context, routingKey, id string, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to marshal telemetry record", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return
	}
	err = s.ch.Publish(s.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    id,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		s.logger.WithContext(ctx).Warn("Failed to publish telemetry record",
			logging.String("routing_key", routingKey),
			logging.Err(err),
		)
	}
}

// Close releases the channel and, for dialed sinks, the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.ch != nil {
		err = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
		s.conn = nil
	}
	return err
}
