package telemetry

import (
	"context"
	"fmt"

	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/storage"
)

// StoreSink persists classified errors as error logs so they can be read back
// through the admin surface. Call records are not stored.
type StoreSink struct {
	store  storage.ErrorLogStore
	logger logging.Logger
}

// NewStoreSink persists error records as error logs. Calls are dropped.
func NewStoreSink(store storage.ErrorLogStore, logger logging.Logger) *StoreSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) RecordCall(context.Context, CallRecord) {}

func (s *StoreSink) RecordError(ctx context.Context, rec ErrorRecord) {
	rec.Stamp()
	entry := &storage.ErrorLog{
		ID:        rec.ID,
		UID:       rec.UID,
		HTTPCode:  rec.HTTPCode,
		Action:    rec.Action,
		Error:     describe(rec),
		CreatedAt: rec.Time,
	}
	if err := s.store.SaveErrorLog(ctx, entry); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to persist error log",
			logging.String("error_id", rec.ID), logging.Err(err))
	}
}

func describe(rec ErrorRecord) string {
	msg := fmt.Sprintf("%s: %s", rec.Category, rec.Message)
	if rec.ReasonCode != "" {
		msg += " (reason=" + rec.ReasonCode + ")"
	}
	if rec.Raw != "" {
		msg += " upstream=" + rec.Raw
	}
	return msg
}
