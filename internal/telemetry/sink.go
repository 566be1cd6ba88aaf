// Package telemetry receives one record per upstream call attempt and one per
// classified error. Sinks never fail their callers: delivery problems are
// logged and dropped.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome of an upstream call attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// CallRecord describes one upstream call attempt.
type CallRecord struct {
	ID             string        `json:"id"`
	Component      string        `json:"component"`
	Operation      string        `json:"operation"`
	Outcome        Outcome       `json:"outcome"`
	HTTPStatus     int           `json:"http_status,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
	ExternalUserID string        `json:"external_user_id,omitempty"`
	UID            string        `json:"uid,omitempty"`
	Time           time.Time     `json:"time"`
}

// ErrorRecord describes one classified error.
type ErrorRecord struct {
	ID             string    `json:"id"`
	UID            string    `json:"uid,omitempty"`
	ExternalUserID string    `json:"external_user_id,omitempty"`
	Action         string    `json:"action"`
	HTTPCode       int       `json:"http_code"`
	Category       string    `json:"category"`
	ReasonCode     string    `json:"reason_code,omitempty"`
	Message        string    `json:"message"`
	Raw            string    `json:"raw,omitempty"`
	Time           time.Time `json:"time"`
}

// Sink receives call and error records. Implementations never fail the caller.
type Sink interface {
	RecordCall(ctx context.Context, rec CallRecord)
	RecordError(ctx context.Context, rec ErrorRecord)
}

// Stamp fills ID and Time when they are unset.
func (r *CallRecord) Stamp() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}
}

// Stamp fills ID and Time when they are unset.
func (r *ErrorRecord) Stamp() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordCall(context.Context, CallRecord)   {}
func (Nop) RecordError(context.Context, ErrorRecord) {}

// Multi fans every record out to all sinks in order.
type Multi []Sink

func (m Multi) RecordCall(ctx context.Context, rec CallRecord) {
	rec.Stamp()
	for _, s := range m {
		s.RecordCall(ctx, rec)
	}
}

func (m Multi) RecordError(ctx context.Context, rec ErrorRecord) {
	rec.Stamp()
	for _, s := range m {
		s.RecordError(ctx, rec)
	}
}
