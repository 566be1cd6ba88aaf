// Package gmb is a client for the Google Business Profile APIs bound to one
// authenticated end user.
//
// Writes and single-entity reads return a *errors.ClassifiedError on failure.
// Per-location list reads never fail: they return a Result carrying either the
// page or the classified error, so callers aggregating many locations can skip
// the ones that failed.
package gmb

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gmb-connector/internal/classifier"
	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/ratelimit"
	"gmb-connector/internal/telemetry"

	"google.golang.org/api/googleapi"
)

const component = "gmb"

// Operation names reported to telemetry and the classifier.
const (
	OpListAccounts        = "accounts.list"
	OpListLocations       = "locations.list"
	OpListPosts           = "localPosts.list"
	OpGetPost             = "localPosts.get"
	OpCreatePost          = "localPosts.create"
	OpUpdatePost          = "localPosts.patch"
	OpPostInsights        = "localPosts.reportInsights"
	OpListReviews         = "reviews.list"
	OpReplyToReview       = "reviews.updateReply"
	OpDeleteReviewReply   = "reviews.deleteReply"
	OpListQuestions       = "questions.list"
	OpReplyToQuestion     = "answers.upsert"
	OpDeleteQuestionReply = "answers.delete"
	OpStartUpload         = "media.startUpload"
	OpUploadBytes         = "media.upload"
	OpCreateMedia         = "media.create"
	OpRemoveMedia         = "media.delete"
)

// Endpoints holds the base URL of each API family. Every value ends in "/".
type Endpoints struct {
	V4                  string
	AccountManagement   string
	BusinessInformation string
	QandA               string
	Upload              string
}

// DefaultEndpoints returns the production Google endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		V4:                  "https://mybusiness.googleapis.com/v4/",
		AccountManagement:   "https://mybusinessaccountmanagement.googleapis.com/v1/",
		BusinessInformation: "https://mybusinessbusinessinformation.googleapis.com/v1/",
		QandA:               "https://mybusinessqanda.googleapis.com/v1/",
		Upload:              "https://mybusiness.googleapis.com/upload/v1/media/",
	}
}

// Handle is the authenticated end user a Client acts for.
type Handle struct {
	HTTPClient     *http.Client
	ExternalUserID string
	UID            string
}

// Classifier normalizes upstream failures. *classifier.Classifier satisfies it.
type Classifier interface {
	Classify(ctx context.Context, call classifier.Call, err error) *errors.ClassifiedError
}

// Client calls the Business Profile APIs for a single end user. Every call waits
// on the limiter, is reported to the sink and has its failure classified.
type Client struct {
	handle     Handle
	endpoints  Endpoints
	limiter    ratelimit.Limiter
	sink       telemetry.Sink
	classifier Classifier
	logger     logging.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the API base URLs, mainly for tests.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// WithLimiter bounds the request rate per external user.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithSink receives a CallRecord for every upstream call.
func WithSink(s telemetry.Sink) Option {
	return func(c *Client) { c.sink = s }
}

// WithClassifier replaces the default classifier, which has no revoker.
func WithClassifier(cl Classifier) Option {
	return func(c *Client) { c.classifier = cl }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Client acting through handle.HTTPClient.
func New(handle Handle, opts ...Option) *Client {
	c := &Client{
		handle:    handle,
		endpoints: DefaultEndpoints(),
		limiter:   ratelimit.Unlimited{},
		sink:      telemetry.Nop{},
		logger:    logging.GetGlobalLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.handle.HTTPClient == nil {
		c.handle.HTTPClient = http.DefaultClient
	}
	if c.classifier == nil {
		c.classifier = classifier.New(nil, c.sink, c.logger)
	}
	c.logger = c.logger.WithFields(
		logging.String("component", component),
		logging.String("uid", handle.UID),
	)
	return c
}

func (c *Client) Handle() Handle { return c.handle }

type request struct {
	op          string
	method      string
	base        string
	path        string
	query       url.Values
	body        interface{}
	raw         io.Reader
	contentType string
	class       ratelimit.Class
}

// call runs req and classifies any failure.
func (c *Client) call(ctx context.Context, req request, out interface{}) *errors.ClassifiedError {
	err := c.do(ctx, req, out)
	if err == nil {
		return nil
	}
	return c.classify(ctx, req.op, err)
}

func (c *Client) classify(ctx context.Context, op string, err error) *errors.ClassifiedError {
	return c.classifier.Classify(ctx, classifier.Call{
		Component:      component,
		Operation:      op,
		ExternalUserID: c.handle.ExternalUserID,
		UID:            c.handle.UID,
	}, err)
}

// do issues one rate limited attempt and records it. A non-2xx response is
// returned as *googleapi.Error with its body attached.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	class := req.class
	if class == "" {
		class = ratelimit.ClassDefault
	}
	if err := c.limiter.Wait(ctx, c.handle.ExternalUserID, class); err != nil {
		return err
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	start := c.now()
	resp, err := c.handle.HTTPClient.Do(httpReq)
	rec := telemetry.CallRecord{
		Component:      component,
		Operation:      req.op,
		Outcome:        telemetry.OutcomeFailure,
		ExternalUserID: c.handle.ExternalUserID,
		UID:            c.handle.UID,
	}
	defer func() {
		rec.Duration = c.now().Sub(start)
		c.sink.RecordCall(ctx, rec)
	}()

	if err != nil {
		return err
	}
	defer resp.Body.Close()
	rec.HTTPStatus = resp.StatusCode

	if err := googleapi.CheckResponse(resp); err != nil {
		c.logger.WithContext(ctx).Debug("Upstream call failed",
			logging.String("operation", req.op),
			logging.Int("status", resp.StatusCode),
		)
		return err
	}
	rec.Outcome = telemetry.OutcomeSuccess

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !stderrors.Is(err, io.EOF) {
		rec.Outcome = telemetry.OutcomeFailure
		return fmt.Errorf("decode %s response: %w", req.op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	u := req.base + strings.TrimPrefix(req.path, "/")
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.raw != nil:
		body = req.raw
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid %s payload: %v", req.op, err))
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, errors.InternalError("failed to build upstream request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

// pageQuery builds the common pagination parameters, omitting empty ones.
func pageQuery(pageSize int, pageToken string) url.Values {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", fmt.Sprint(pageSize))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	return q
}
