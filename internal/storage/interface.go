// Package storage defines the persisted records of the connector and the
// interfaces backends implement: delegated Google credentials, tenant streams
// with their selected locations, and the error log.
package storage

import (
	"context"
	stderrors "errors"
	"time"
)

var (
	// ErrNotFound is returned when a credential or stream does not exist.
	ErrNotFound = stderrors.New("storage: not found")
	// ErrStillReferenced is returned when deleting a credential some stream still points to.
	ErrStillReferenced = stderrors.New("storage: credential still referenced by a stream")
)

// MaxErrorLogs caps ListErrorLogs.
const MaxErrorLogs = 250

// Credential is one delegated OAuth grant, keyed by the Google account subject.
type Credential struct {
	ExternalUserID      string    `json:"external_user_id"`
	ExternalDisplayName string    `json:"external_display_name"`
	RefreshToken        string    `json:"-"`
	AccessToken         string    `json:"-"`
	AccessTokenExpiry   time.Time `json:"access_token_expiry"`
	Revoked             bool      `json:"revoked"`
	OwnerPID            string    `json:"owner_pid"`
	OwnerUID            string    `json:"owner_uid"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasRefreshToken reports whether the grant can mint new access tokens.
func (c *Credential) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != ""
}

// AccessTokenValid reports whether the access token is still usable at now,
// treating tokens that expire within skew as already expired.
func (c *Credential) AccessTokenValid(now time.Time, skew time.Duration) bool {
	if c == nil || c.AccessToken == "" || c.AccessTokenExpiry.IsZero() {
		return false
	}
	return now.Add(skew).Before(c.AccessTokenExpiry)
}

// Location is a location the tenant selected for its stream.
type Location struct {
	NameID  string `json:"name_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Stream is a tenant context. An empty ExternalUserID means the stream holds
// no credential reference.
type Stream struct {
	PID            string     `json:"pid"`
	UID            string     `json:"uid"`
	ExternalUserID string     `json:"external_user_id"`
	Locations      []Location `json:"locations"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StreamReference identifies the stream a login belongs to.
type StreamReference struct {
	PID string `json:"pid"`
	UID string `json:"uid"`
}

// ErrorLog is a persisted classified error for offline analysis.
type ErrorLog struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	HTTPCode  int       `json:"http_code"`
	Action    string    `json:"action"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialStore persists Google credentials keyed by external user id.
type CredentialStore interface {
	// LoadCredentialWithToken returns the fully populated credential,
	// tokens included, or ErrNotFound.
	LoadCredentialWithToken(ctx context.Context, externalUserID string) (*Credential, error)
	// SaveCredential inserts or replaces the credential with the same ExternalUserID.
	SaveCredential(ctx context.Context, c *Credential) error
	// UpdateAccessToken overwrites the access token fields. Concurrent writers
	// race and the last one wins.
	UpdateAccessToken(ctx context.Context, externalUserID, token string, expiry time.Time) error
	UpdateRefreshToken(ctx context.Context, externalUserID, token string) error
	// DeleteAllByExternalUserID removes the credential. It fails with
	// ErrStillReferenced while a stream references it.
	DeleteAllByExternalUserID(ctx context.Context, externalUserID string) error
	// ListExpiring returns live credentials whose access token expires before
	// the given time, soonest first.
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]*Credential, error)
}

// StreamStore persists tenant streams and their selected locations.
type StreamStore interface {
	GetStream(ctx context.Context, pid string) (*Stream, error)
	SaveStream(ctx context.Context, s *Stream) error
	FindStreamsByExternalUserID(ctx context.Context, externalUserID string) ([]*Stream, error)
	// UnlinkStream clears the stream's locations and credential reference.
	UnlinkStream(ctx context.Context, pid string) error
	// DeleteStream removes the stream row or returns ErrNotFound.
	DeleteStream(ctx context.Context, pid string) error
	// SelectLocations replaces the stream's selected locations.
	SelectLocations(ctx context.Context, pid string, locations []Location) error
}

// ErrorLogStore persists classified errors.
type ErrorLogStore interface {
	SaveErrorLog(ctx context.Context, log *ErrorLog) error
	// ListErrorLogs returns the newest logs first, at most MaxErrorLogs.
	ListErrorLogs(ctx context.Context, limit int) ([]*ErrorLog, error)
}

// Store is the full persistence surface.
type Store interface {
	CredentialStore
	StreamStore
	ErrorLogStore
	Health(ctx context.Context) error
	Close() error
}

// ClampErrorLogLimit maps non-positive or oversized limits onto MaxErrorLogs.
func ClampErrorLogLimit(limit int) int {
	if limit <= 0 || limit > MaxErrorLogs {
		return MaxErrorLogs
	}
	return limit
}
