package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gmb-connector/internal/common/logging"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable).Error(0)
}

func (m *mockChannel) Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, routingKey, msg).Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestNewAMQPSink_DeclaresTopicExchange(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "gmb.errors", "topic", true).Return(nil)

	_, err := NewAMQPSink(ch, "gmb.errors", logging.NewNopLogger())
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestNewAMQPSink_DeclareFailure(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "gmb.errors", "topic", true).Return(errors.New("access refused"))

	_, err := NewAMQPSink(ch, "gmb.errors", logging.NewNopLogger())
	assert.ErrorContains(t, err, "access refused")
}

func TestAMQPSink_PublishesErrorRecords(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "gmb.errors", "topic", true).Return(nil)

	var published amqp.Publishing
	ch.On("Publish", "gmb.errors", RoutingKeyError, mock.AnythingOfType("amqp.Publishing")).
		Run(func(args mock.Arguments) { published = args.Get(2).(amqp.Publishing) }).
		Return(nil).Once()

	s, err := NewAMQPSink(ch, "gmb.errors", logging.NewNopLogger())
	require.NoError(t, err)

	// Call records are skipped unless enabled.
	s.RecordCall(context.Background(), CallRecord{Operation: "reviews.list"})
	s.RecordError(context.Background(), ErrorRecord{Action: "reviews.list", Category: "systemError", HTTPCode: 500})

	ch.AssertExpectations(t)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.Equal(t, "application/json", published.ContentType)

	var got ErrorRecord
	require.NoError(t, json.Unmarshal(published.Body, &got))
	assert.Equal(t, "systemError", got.Category)
	assert.Equal(t, got.ID, published.MessageId)
}

func TestAMQPSink_WithCalls(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "gmb.errors", "topic", true).Return(nil)
	ch.On("Publish", "gmb.errors", RoutingKeyCall, mock.AnythingOfType("amqp.Publishing")).Return(nil).Once()

	s, err := NewAMQPSink(ch, "gmb.errors", logging.NewNopLogger())
	require.NoError(t, err)
	s.WithCalls().RecordCall(context.Background(), CallRecord{Operation: "posts.list"})

	ch.AssertExpectations(t)
}

func TestAMQPSink_PublishFailureAndClose(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "gmb.errors", "topic", true).Return(nil)
	ch.On("Publish", "gmb.errors", RoutingKeyError, mock.Anything).Return(errors.New("channel closed"))
	ch.On("Close").Return(nil).Once()

	s, err := NewAMQPSink(ch, "gmb.errors", logging.NewNopLogger())
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.RecordError(context.Background(), ErrorRecord{}) })
	require.NoError(t, s.Close())

	// Records after close are dropped without touching the channel.
	s.RecordError(context.Background(), ErrorRecord{})
	require.NoError(t, s.Close())
	ch.AssertNumberOfCalls(t, "Publish", 1)
	ch.AssertExpectations(t)
}
