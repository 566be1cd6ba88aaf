package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
)

// Category is the stable internal classification of an upstream or auth failure.
type Category string

const (
	CategoryTokenExchange           Category = "TokenExchangeError"
	CategoryIdentityVerification    Category = "IdentityVerificationError"
	CategoryIdentityMismatch        Category = "IdentityMismatchError"
	CategoryInvalidOrRevokedSession Category = "InvalidOrRevokedSession"
	CategoryInvalidDataInput        Category = "invalidDataInput"
	CategoryOperationFailure        Category = "operationFailure"
	CategoryUnverifiedLocation      Category = "unverifiedLocationOrChainLimitation"
	CategorySystemError             Category = "systemError"
	CategoryUnknown                 Category = "unknown"
)

// Session error codes returned to callers so they can force a new login.
const (
	CodeInvalidGrant = "invalid_grant"
	CodeInvalidToken = "invalid_token"
	CodeUserMismatch = "user_mismatch"
)

// Auth category messages.
const (
	MsgTokenExchange        = "Error retrieving Google oAuth tokens. Make sure tokens are valid."
	MsgIdentityVerification = "Error retrieving Google username for current logged user."
	MsgUserMismatch         = "Got an un-expected user. Kindly login as the same user."
	MsgInvalidGrant         = "The provided refresh token is invalid, expired, revoked."
	MsgExpiredToken         = "Session expired. Kindly login to continue."
	MsgRevokedOrInvalid     = "User hasn't logged in with Google yet or refresh_token was revoked."
)

// ClassifiedError is the normalized value every upstream failure is turned into.
// It is built once per failure and carries everything needed to render it.
type ClassifiedError struct {
	Category   Category `json:"category"`
	ReasonCode string   `json:"reasonCode,omitempty"`
	HTTPStatus int      `json:"httpStatus"`
	Message    string   `json:"message"`
	// Detail is a short human readable explanation of ReasonCode, used in
	// per-location failure lists.
	Detail          string `json:"detail,omitempty"`
	RemediationLink string `json:"remediationLink,omitempty"`
	Cause           error  `json:"-"`
}

func (e *ClassifiedError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.ReasonCode != "" {
		b.WriteString(" (reason=")
		b.WriteString(e.ReasonCode)
		b.WriteString(")")
	}
	return b.String()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Formatted returns the message with the "learn more" remediation link
// appended when one applies.
func (e *ClassifiedError) Formatted() string {
	if e.RemediationLink == "" {
		return e.Message
	}
	return strings.TrimSpace(e.Message) + " Learn more about resolving this error: " + e.RemediationLink
}

// Code is the machine readable code rendered to callers.
func (e *ClassifiedError) Code() string {
	if e.ReasonCode != "" {
		return e.ReasonCode
	}
	return string(e.Category)
}

// AsClassified extracts a ClassifiedError from err or anything it wraps.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// TokenExchange reports an authorization code that could not be exchanged.
func TokenExchange(cause error) *ClassifiedError {
	return &ClassifiedError{
		Category:   CategoryTokenExchange,
		HTTPStatus: http.StatusForbidden,
		Message:    MsgTokenExchange,
		Cause:      cause,
	}
}

// IdentityVerification reports an id token whose signature, issuer or audience is invalid.
func IdentityVerification(cause error) *ClassifiedError {
	return &ClassifiedError{
		Category:   CategoryIdentityVerification,
		HTTPStatus: http.StatusUnauthorized,
		Message:    MsgIdentityVerification,
		Cause:      cause,
	}
}

// IdentityMismatch reports a rotated token issued for a different subject.
func IdentityMismatch(expected, got string) *ClassifiedError {
	return (&ClassifiedError{
		Category:   CategoryIdentityMismatch,
		ReasonCode: CodeUserMismatch,
		HTTPStatus: http.StatusUnauthorized,
		Message:    MsgUserMismatch,
	}).withCause("expected subject " + expected + ", got " + quoteOrEmpty(got))
}

// InvalidOrRevokedSession reports a grant that can no longer be used.
// code is one of CodeInvalidGrant or CodeInvalidToken.
func InvalidOrRevokedSession(code, message string, status int, cause error) *ClassifiedError {
	return &ClassifiedError{
		Category:   CategoryInvalidOrRevokedSession,
		ReasonCode: code,
		HTTPStatus: status,
		Message:    message,
		Cause:      cause,
	}
}

func (e *ClassifiedError) withCause(msg string) *ClassifiedError {
	e.Cause = stderrors.New(msg)
	return e
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
