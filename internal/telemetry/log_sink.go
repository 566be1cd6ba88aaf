package telemetry

import (
	"context"

	"gmb-connector/internal/common/logging"
)

// LogSink writes records as structured log entries. Successful calls log at
// debug level, failures and classified errors at warn.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink logs successful calls at debug, failed calls and errors at warn.
func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogSink{logger: logger.WithFields(logging.String("component", "telemetry"))}
}

func (s *LogSink) RecordCall(ctx context.Context, rec CallRecord) {
	rec.Stamp()
	fields := []logging.Field{
		logging.String("call_id", rec.ID),
		logging.String("upstream_component", rec.Component),
		logging.String("operation", rec.Operation),
		logging.String("outcome", string(rec.Outcome)),
		logging.Int("http_status", rec.HTTPStatus),
		logging.Duration("duration", rec.Duration),
		logging.String("uid", rec.UID),
	}
	log := s.logger.WithContext(ctx)
	if rec.Outcome == OutcomeSuccess {
		log.Debug("Upstream call", fields...)
		return
	}
	log.Warn("Upstream call", fields...)
}

func (s *LogSink) RecordError(ctx context.Context, rec ErrorRecord) {
	rec.Stamp()
	s.logger.WithContext(ctx).Warn("Classified error",
		logging.String("error_id", rec.ID),
		logging.String("action", rec.Action),
		logging.String("category", rec.Category),
		logging.String("reason_code", rec.ReasonCode),
		logging.Int("http_code", rec.HTTPCode),
		logging.String("message", rec.Message),
		logging.String("uid", rec.UID),
		logging.String("external_user_id", rec.ExternalUserID),
	)
}
