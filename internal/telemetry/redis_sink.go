package telemetry

import (
	"context"

	"gmb-connector/internal/common/logging"
)

const (
	DefaultCallChannel  = "gmb:telemetry:calls"
	DefaultErrorChannel = "gmb:telemetry:errors"
)

// Publisher is the pub/sub surface RedisSink needs. *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisSink publishes records as JSON on redis pub/sub channels.
type RedisSink struct {
	publisher    Publisher
	callChannel  string
	errorChannel string
	logger       logging.Logger
}

func NewRedisSink(publisher Publisher, logger logging.Logger) *RedisSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RedisSink{
		publisher:    publisher,
		callChannel:  DefaultCallChannel,
		errorChannel: DefaultErrorChannel,
		logger:       logger,
	}
}

func (s *RedisSink) RecordCall(ctx context.Context, rec CallRecord) {
	rec.Stamp()
	if err := s.publisher.Publish(ctx, s.callChannel, rec); err != nil {
		s.logger.WithContext(ctx).Debug("Failed to publish call record", logging.Err(err))
	}
}

func (s *RedisSink) RecordError(ctx context.Context, rec ErrorRecord) {
	rec.Stamp()
	if err := s.publisher.Publish(ctx, s.errorChannel, rec); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to publish error record", logging.Err(err))
	}
}
