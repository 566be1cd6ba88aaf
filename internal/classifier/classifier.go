// Package classifier turns any failure raised while talking to Google into a
// ClassifiedError with a stable category, caller-facing message, HTTP status,
// and an optional remediation link.
package classifier

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/telemetry"

	goauth2 "golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	errorCodePlaceholder = "<ErrorCode>"
	invalidCredentials   = "Invalid Credentials"
	maxRawBody           = 2048
)

// Call identifies the operation whose failure is being classified.
type Call struct {
	Component      string
	Operation      string
	ExternalUserID string
	UID            string
}

// Revoker tears down a grant in the background. *oauth2.Manager satisfies it.
type Revoker interface {
	RevokeAsync(externalUserID string)
}

// Classifier turns upstream and local failures into ClassifiedErrors, records
// them and starts revocation of sessions Google no longer honors.
type Classifier struct {
	revoker Revoker
	sink    telemetry.Sink
	logger  logging.Logger
}

// New returns a Classifier. A nil revoker disables the revocation side effect;
// a nil sink discards records.
func New(revoker Revoker, sink telemetry.Sink, logger logging.Logger) *Classifier {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Classifier{
		revoker: revoker,
		sink:    sink,
		logger:  logger.WithFields(logging.String("component", "classifier")),
	}
}

// Classify normalizes err and emits one error record. It returns nil only for
// a nil err.
func (c *Classifier) Classify(ctx context.Context, call Call, err error) *errors.ClassifiedError {
	if err == nil {
		return nil
	}
	ce := c.classify(call, err)
	c.record(ctx, call, ce, err)
	return ce
}

func (c *Classifier) classify(call Call, err error) *errors.ClassifiedError {
	if ce, ok := errors.AsClassified(err); ok {
		return ce
	}
	if ce := c.sessionFailure(call, err); ce != nil {
		return ce
	}

	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		return classifyUpstream(gerr, err)
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Type == errors.ErrTypeValidation {
			return &errors.ClassifiedError{
				Category:   errors.CategoryInvalidDataInput,
				HTTPStatus: http.StatusBadRequest,
				Message:    appErr.Message,
				Cause:      err,
			}
		}
		return &errors.ClassifiedError{
			Category:   errors.CategorySystemError,
			HTTPStatus: http.StatusInternalServerError,
			Message:    templates[errors.CategorySystemError],
			Detail:     appErr.Message,
			Cause:      err,
		}
	}

	// Transport failures and timeouts never produced an upstream response.
	return &errors.ClassifiedError{
		Category:   errors.CategorySystemError,
		HTTPStatus: http.StatusInternalServerError,
		Message:    templates[errors.CategorySystemError],
		Detail:     err.Error(),
		Cause:      err,
	}
}

// sessionFailure recognizes a grant Google no longer honors and starts its
// revocation without waiting for it.
func (c *Classifier) sessionFailure(call Call, err error) *errors.ClassifiedError {
	var ce *errors.ClassifiedError

	var re *goauth2.RetrieveError
	var gerr *googleapi.Error
	switch {
	case stderrors.As(err, &re) && retrieveCode(re) == errors.CodeInvalidGrant:
		ce = errors.InvalidOrRevokedSession(errors.CodeInvalidGrant, errors.MsgInvalidGrant, http.StatusForbidden, err)
	case stderrors.As(err, &re) && retrieveCode(re) == errors.CodeInvalidToken:
		ce = errors.InvalidOrRevokedSession(errors.CodeInvalidToken, errors.MsgExpiredToken, http.StatusForbidden, err)
	case stderrors.As(err, &gerr) && hasInvalidCredentials(gerr):
		ce = errors.InvalidOrRevokedSession(errors.CodeInvalidToken, errors.MsgRevokedOrInvalid, http.StatusUnauthorized, err)
	default:
		return nil
	}

	if c.revoker != nil && call.ExternalUserID != "" {
		c.revoker.RevokeAsync(call.ExternalUserID)
	}
	return ce
}

func retrieveCode(re *goauth2.RetrieveError) string {
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	body := string(re.Body)
	switch {
	case strings.Contains(body, errors.CodeInvalidGrant):
		return errors.CodeInvalidGrant
	case strings.Contains(body, errors.CodeInvalidToken):
		return errors.CodeInvalidToken
	}
	return ""
}

func hasInvalidCredentials(gerr *googleapi.Error) bool {
	if gerr.Message == invalidCredentials {
		return true
	}
	for _, item := range gerr.Errors {
		if item.Message == invalidCredentials {
			return true
		}
	}
	if body, ok := parseBody(gerr.Body); ok && body.Error.Message == invalidCredentials {
		return true
	}
	return false
}

func classifyUpstream(gerr *googleapi.Error, cause error) *errors.ClassifiedError {
	body, _ := parseBody(gerr.Body)
	status := gerr.Code
	if status == 0 {
		status = body.Error.Code
	}

	if status >= 500 && status < 600 {
		return &errors.ClassifiedError{
			Category:   errors.CategorySystemError,
			ReasonCode: ReasonSystemError,
			HTTPStatus: http.StatusInternalServerError,
			Message:    templates[errors.CategorySystemError],
			Detail:     detailFor("", body.Error.Status, status, upstreamMessage(gerr, body)),
			Cause:      cause,
		}
	}

	reason := body.reason()
	if reason == "" {
		for _, item := range gerr.Errors {
			if _, known := reasonCategories[item.Reason]; known {
				reason = item.Reason
				break
			}
		}
	}

	category, ok := reasonCategories[reason]
	if !ok {
		category = errors.CategoryUnknown
	}

	ce := &errors.ClassifiedError{
		Category:   category,
		ReasonCode: reason,
		HTTPStatus: statusFor(category, status),
		Message:    render(category, reason),
		Detail:     detailFor(reason, body.Error.Status, status, upstreamMessage(gerr, body)),
		Cause:      cause,
	}
	if hasRemediation(category) {
		ce.RemediationLink = remediationLinks[reason]
	}
	return ce
}

func render(category errors.Category, reason string) string {
	tmpl := templates[category]
	if reason == "" {
		return strings.Replace(tmpl, " "+errorCodePlaceholder, "", 1)
	}
	return strings.Replace(tmpl, errorCodePlaceholder, reason, 1)
}

func statusFor(category errors.Category, upstream int) int {
	switch category {
	case errors.CategoryInvalidDataInput:
		return http.StatusBadRequest
	case errors.CategoryOperationFailure:
		if upstream == http.StatusForbidden {
			return http.StatusForbidden
		}
		return http.StatusBadRequest
	case errors.CategoryUnverifiedLocation:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func hasRemediation(category errors.Category) bool {
	switch category {
	case errors.CategoryInvalidDataInput, errors.CategoryOperationFailure, errors.CategoryUnverifiedLocation:
		return true
	}
	return false
}

func detailFor(reason, status string, code int, upstream string) string {
	if d, ok := reasonDetails[reason]; ok {
		return d
	}
	if d, ok := statusDetails[status]; ok {
		return d
	}
	if d := http.StatusText(code); d != "" {
		return d
	}
	return upstream
}

func upstreamMessage(gerr *googleapi.Error, body errorBody) string {
	if gerr.Message != "" {
		return gerr.Message
	}
	return body.Error.Message
}

type reasonItem struct {
	Reason string `json:"reason"`
}

// errorBody is the subset of a Google error payload the classifier reads.
type errorBody struct {
	Error struct {
		Code    int          `json:"code"`
		Message string       `json:"message"`
		Status  string       `json:"status"`
		Details []reasonItem `json:"details"`
		Errors  []struct {
			Reason  string       `json:"reason"`
			Message string       `json:"message"`
			Details []reasonItem `json:"details"`
		} `json:"errors"`
	} `json:"error"`
	Details []reasonItem `json:"details"`
}

func parseBody(raw string) (errorBody, bool) {
	var body errorBody
	if raw == "" {
		return body, false
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return errorBody{}, false
	}
	return body, true
}

// reason walks the known payload shapes in order and returns the first
// non-empty reason.
func (b errorBody) reason() string {
	if len(b.Error.Details) > 0 && b.Error.Details[0].Reason != "" {
		return b.Error.Details[0].Reason
	}
	if len(b.Error.Errors) > 0 {
		first := b.Error.Errors[0]
		if len(first.Details) > 0 && first.Details[0].Reason != "" {
			return first.Details[0].Reason
		}
		if first.Reason != "" {
			return first.Reason
		}
	}
	if len(b.Details) > 0 {
		return b.Details[0].Reason
	}
	return ""
}

func (c *Classifier) record(ctx context.Context, call Call, ce *errors.ClassifiedError, cause error) {
	rec := telemetry.ErrorRecord{
		UID:            call.UID,
		ExternalUserID: call.ExternalUserID,
		Action:         call.Operation,
		HTTPCode:       ce.HTTPStatus,
		Category:       string(ce.Category),
		ReasonCode:     ce.ReasonCode,
		Message:        ce.Message,
		Raw:            rawOf(cause),
	}
	c.sink.RecordError(ctx, rec)
	c.logger.WithContext(ctx).Debug("Classified upstream failure",
		logging.String("operation", call.Operation),
		logging.String("category", rec.Category),
		logging.String("reason_code", rec.ReasonCode),
		logging.Int("http_status", rec.HTTPCode),
	)
}

func rawOf(err error) string {
	raw := err.Error()
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) && gerr.Body != "" {
		raw = gerr.Body
	}
	if len(raw) > maxRawBody {
		raw = raw[:maxRawBody]
	}
	return raw
}
