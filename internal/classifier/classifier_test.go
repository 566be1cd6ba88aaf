package classifier

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goauth2 "golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type recordingRevoker struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingRevoker) RevokeAsync(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

type recordingSink struct {
	telemetry.Nop
	mu      sync.Mutex
	records []telemetry.ErrorRecord
}

func (s *recordingSink) RecordError(_ context.Context, rec telemetry.ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func newTestClassifier() (*Classifier, *recordingRevoker, *recordingSink) {
	rev := &recordingRevoker{}
	sink := &recordingSink{}
	return New(rev, sink, logging.NewNopLogger()), rev, sink
}

func upstream(code int, body string) error {
	return &googleapi.Error{Code: code, Body: body}
}

var call = Call{Component: "gmb", Operation: "locations.list", ExternalUserID: "sub-1", UID: "uid-1"}

func TestClassify_UnverifiedLocation(t *testing.T) {
	c, rev, sink := newTestClassifier()
	body := `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED","details":[{"reason":"UNVERIFIED_LOCATION"}]}}`

	ce := c.Classify(context.Background(), call, upstream(403, body))

	require.NotNil(t, ce)
	assert.Equal(t, errors.CategoryUnverifiedLocation, ce.Category)
	assert.Equal(t, http.StatusForbidden, ce.HTTPStatus)
	assert.Equal(t, "UNVERIFIED_LOCATION", ce.ReasonCode)
	assert.Contains(t, ce.Message, "UNVERIFIED_LOCATION")
	assert.Equal(t, "https://support.google.com/business/answer/4669139?hl=en&sjid=7410568640173031358-AP", ce.RemediationLink)
	assert.Equal(t, "Verify your location first to make changes.", ce.Detail)
	assert.Contains(t, ce.Formatted(), ce.RemediationLink)
	assert.Empty(t, rev.ids)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "locations.list", sink.records[0].Action)
	assert.Equal(t, "uid-1", sink.records[0].UID)
	assert.Equal(t, 403, sink.records[0].HTTPCode)
	assert.Equal(t, body, sink.records[0].Raw)
}

func TestClassify_ServerErrorWithoutBody(t *testing.T) {
	c, _, sink := newTestClassifier()

	ce := c.Classify(context.Background(), call, upstream(503, ""))

	assert.Equal(t, errors.CategorySystemError, ce.Category)
	assert.Equal(t, http.StatusInternalServerError, ce.HTTPStatus)
	assert.Equal(t, ReasonSystemError, ce.ReasonCode)
	assert.Equal(t, "Contact support for assistance.", ce.Message)
	assert.Empty(t, ce.RemediationLink)
	assert.Len(t, sink.records, 1)
}

func TestClassify_ReasonLookupOrder(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "error details first",
			body:   `{"error":{"details":[{"reason":"INVALID_URL"}],"errors":[{"reason":"STALE_DATA"}]},"details":[{"reason":"THROTTLED"}]}`,
			reason: "INVALID_URL",
		},
		{
			name:   "nested error details",
			body:   `{"error":{"errors":[{"reason":"STALE_DATA","details":[{"reason":"CANNOT_REOPEN"}]}]}}`,
			reason: "CANNOT_REOPEN",
		},
		{
			name:   "error item reason",
			body:   `{"error":{"errors":[{"reason":"STALE_DATA"}]},"details":[{"reason":"THROTTLED"}]}`,
			reason: "STALE_DATA",
		},
		{
			name:   "top level details",
			body:   `{"details":[{"reason":"THROTTLED"}]}`,
			reason: "THROTTLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClassifier()
			ce := c.Classify(context.Background(), call, upstream(400, tt.body))
			assert.Equal(t, tt.reason, ce.ReasonCode)
		})
	}
}

func TestClassify_CategoriesAndStatuses(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		reason   string
		category errors.Category
		status   int
		hasLink  bool
	}{
		{"invalid data", 400, "INVALID_PHONE_NUMBER", errors.CategoryInvalidDataInput, 400, true},
		{"invalid data without link", 400, "INVALID_PHONE_NUMBER_FOR_REGION", errors.CategoryInvalidDataInput, 400, false},
		{"operation failure", 400, "STALE_DATA", errors.CategoryOperationFailure, 400, true},
		{"operation failure forbidden", 403, "ACCESS_TOKEN_SCOPE_INSUFFICIENT", errors.CategoryOperationFailure, 403, true},
		{"throttled has no link", 429, "THROTTLED", errors.CategoryOperationFailure, 400, false},
		{"unspecified", 400, "ERROR_CODE_UNSPECIFIED", errors.CategoryUnknown, 500, false},
		{"unmatched reason", 400, "SOMETHING_NEW", errors.CategoryUnknown, 500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClassifier()
			body := fmt.Sprintf(`{"error":{"code":%d,"details":[{"reason":%q}]}}`, tt.code, tt.reason)
			ce := c.Classify(context.Background(), call, upstream(tt.code, body))

			assert.Equal(t, tt.category, ce.Category)
			assert.Equal(t, tt.status, ce.HTTPStatus)
			if tt.hasLink {
				assert.True(t, strings.HasPrefix(ce.RemediationLink, "https://support.google.com/"))
			} else {
				assert.Empty(t, ce.RemediationLink)
			}
		})
	}
}

func TestClassify_NoReason(t *testing.T) {
	c, _, _ := newTestClassifier()
	body := `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`

	ce := c.Classify(context.Background(), call, upstream(404, body))

	assert.Equal(t, errors.CategoryUnknown, ce.Category)
	assert.Empty(t, ce.ReasonCode)
	assert.NotContains(t, ce.Message, "<ErrorCode>")
	assert.Equal(t, "The requested resource was not found.", ce.Detail)
}

func TestRender(t *testing.T) {
	assert.Equal(t,
		"Invalid or missing Location information INVALID_URL. Correct the Location information or refer Google My business FAQ.",
		render(errors.CategoryInvalidDataInput, "INVALID_URL"))
	assert.Equal(t,
		"Cannot complete the specified Operation Error. Check request Action.",
		render(errors.CategoryOperationFailure, ""))
}

func TestClassify_SessionFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
		status  int
	}{
		{
			name:    "invalid grant",
			err:     fmt.Errorf("refresh access token: %w", &goauth2.RetrieveError{ErrorCode: "invalid_grant"}),
			code:    errors.CodeInvalidGrant,
			message: errors.MsgInvalidGrant,
			status:  http.StatusForbidden,
		},
		{
			name:    "invalid token in body",
			err:     &goauth2.RetrieveError{Response: &http.Response{Status: "400 Bad Request"}, Body: []byte(`{"error":"invalid_token"}`)},
			code:    errors.CodeInvalidToken,
			message: errors.MsgExpiredToken,
			status:  http.StatusForbidden,
		},
		{
			name:    "revoked credentials",
			err:     &googleapi.Error{Code: 401, Message: "Invalid Credentials"},
			code:    errors.CodeInvalidToken,
			message: errors.MsgRevokedOrInvalid,
			status:  http.StatusUnauthorized,
		},
		{
			name:    "revoked credentials in error items",
			err:     &googleapi.Error{Code: 401, Errors: []googleapi.ErrorItem{{Reason: "authError", Message: "Invalid Credentials"}}},
			code:    errors.CodeInvalidToken,
			message: errors.MsgRevokedOrInvalid,
			status:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rev, _ := newTestClassifier()
			ce := c.Classify(context.Background(), call, tt.err)

			assert.Equal(t, errors.CategoryInvalidOrRevokedSession, ce.Category)
			assert.Equal(t, tt.code, ce.ReasonCode)
			assert.Equal(t, tt.message, ce.Message)
			assert.Equal(t, tt.status, ce.HTTPStatus)
			assert.Equal(t, []string{"sub-1"}, rev.ids)
		})
	}
}

func TestClassify_SessionFailureWithoutUser(t *testing.T) {
	c, rev, _ := newTestClassifier()
	ce := c.Classify(context.Background(), Call{Operation: "accounts.list"}, &goauth2.RetrieveError{ErrorCode: "invalid_grant"})

	assert.Equal(t, errors.CategoryInvalidOrRevokedSession, ce.Category)
	assert.Empty(t, rev.ids)
}

func TestClassify_PassThroughAndLocalErrors(t *testing.T) {
	c, _, sink := newTestClassifier()

	mismatch := errors.IdentityMismatch("sub-1", "sub-2")
	got := c.Classify(context.Background(), call, fmt.Errorf("rotate: %w", mismatch))
	assert.Same(t, mismatch, got)

	timeout := c.Classify(context.Background(), call, context.DeadlineExceeded)
	assert.Equal(t, errors.CategorySystemError, timeout.Category)
	assert.Equal(t, http.StatusInternalServerError, timeout.HTTPStatus)
	assert.Empty(t, timeout.ReasonCode)
	assert.True(t, stderrors.Is(timeout, context.DeadlineExceeded))

	invalid := c.Classify(context.Background(), call, errors.ValidationError("summary is required"))
	assert.Equal(t, errors.CategoryInvalidDataInput, invalid.Category)
	assert.Equal(t, http.StatusBadRequest, invalid.HTTPStatus)
	assert.Equal(t, "summary is required", invalid.Message)

	// Local infrastructure faults are system errors whatever their own status.
	for _, local := range []error{
		errors.RateLimitError("default"),
		errors.NotFoundError("stream"),
		errors.ConnectionError("dial", nil),
		errors.TimeoutError("wait"),
	} {
		ce := c.Classify(context.Background(), call, local)
		assert.Equal(t, errors.CategorySystemError, ce.Category, local.Error())
		assert.Equal(t, http.StatusInternalServerError, ce.HTTPStatus, local.Error())
	}

	assert.Nil(t, c.Classify(context.Background(), call, nil))
	assert.Len(t, sink.records, 7)
}

func TestTables(t *testing.T) {
	assert.Equal(t, errors.CategoryUnverifiedLocation, reasonCategories["UNVERIFIED_LOCATION"])
	assert.Equal(t, errors.CategorySystemError, reasonCategories[ReasonSystemError])
	for reason, link := range remediationLinks {
		assert.NotEmpty(t, link, reason)
	}
	for category := range templates {
		assert.NotContains(t, templates[category], "<b>")
	}
}
