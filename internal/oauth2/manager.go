package oauth2

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"gmb-connector/internal/common/errors"
	commonhttp "gmb-connector/internal/common/http"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/config"
	"gmb-connector/internal/storage"

	goauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const (
	// DefaultRevokeURL is Google's token revocation endpoint.
	DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

	// ScopeBusinessManage grants access to the Business Profile APIs.
	ScopeBusinessManage = "https://www.googleapis.com/auth/business.manage"

	defaultExpirySkew    = time.Minute
	defaultRevokeTimeout = 30 * time.Second
)

// DefaultScopes are requested when Config.Scopes is empty.
var DefaultScopes = []string{ScopeBusinessManage, "openid", "profile"}

// googleIssuers are the accepted iss values of a Google id_token.
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Config holds the OAuth client registration and endpoint overrides.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// AuthURL, TokenURL and RevokeURL default to Google's endpoints.
	AuthURL   string
	TokenURL  string
	RevokeURL string

	// ExpirySkew treats access tokens expiring within it as already expired.
	ExpirySkew time.Duration
	// RevokeTimeout bounds background revocations started by RevokeAsync.
	RevokeTimeout time.Duration
}

// ConfigFromApp builds the OAuth configuration from the application config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	}
}

// RawTokenSet is the token response of a code exchange.
type RawTokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// Identity is the verified Google account behind a token set.
type Identity struct {
	ExternalUserID string `json:"external_user_id"`
	DisplayName    string `json:"display_name"`
}

// IdentityValidator checks an id_token signature and audience.
// *idtoken.Validator satisfies it.
type IdentityValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// ValidatorFunc adapts a function to IdentityValidator.
type ValidatorFunc func(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)

func (f ValidatorFunc) Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {
	return f(ctx, idToken, audience)
}

// Store is the persistence the manager needs: credentials and the streams
// that reference them.
type Store interface {
	storage.CredentialStore
	storage.StreamStore
}

// Manager owns the token lifecycle of every stored credential.
type Manager struct {
	config     Config
	oauth      *goauth2.Config
	store      Store
	cache      TokenCache
	validator  IdentityValidator
	httpClient *http.Client
	logger     logging.Logger
	now        func() time.Time

	// wg tracks background revocations; revoking dedups them per user.
	wg       sync.WaitGroup
	revoking sync.Map
}

// Option customizes a Manager.
type Option func(*Manager)

// WithCache shares rotated access tokens through cache.
func WithCache(cache TokenCache) Option {
	return func(m *Manager) {
		if cache != nil {
			m.cache = cache
		}
	}
}

// WithValidator replaces the Google id_token validator.
func WithValidator(v IdentityValidator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithHTTPClient sets the client used for token, revoke and API traffic.
// Its Timeout and Transport carry over to every ClientHandle.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		if client != nil {
			m.httpClient = client
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager bound to store.
func NewManager(cfg Config, store Store, opts ...Option) *Manager {
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = DefaultRevokeURL
	}
	if cfg.ExpirySkew <= 0 {
		cfg.ExpirySkew = defaultExpirySkew
	}
	if cfg.RevokeTimeout <= 0 {
		cfg.RevokeTimeout = defaultRevokeTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = append([]string(nil), DefaultScopes...)
	}

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = goauth2.AuthStyleInParams

	m := &Manager{
		config: cfg,
		oauth: &goauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		store:      store,
		cache:      nopCache{},
		validator:  ValidatorFunc(idtoken.Validate),
		httpClient: commonhttp.NewHTTPClient(),
		logger:     logging.GetGlobalLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithFields(logging.String("component", "oauth2"))
	return m
}

// AuthCodeURL returns the consent page URL. Offline access and a forced
// consent prompt make Google issue a refresh token on every login.
func (m *Manager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state, goauth2.AccessTypeOffline, goauth2.ApprovalForce)
}

// ExchangeCode trades a one-time authorization code for the initial token set.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*RawTokenSet, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.TokenExchange(stderrors.New("authorization code is empty"))
	}

	tok, err := m.oauth.Exchange(m.tokenContext(ctx), code)
	if err != nil {
		m.logger.WithContext(ctx).Warn("Authorization code exchange failed", logging.Err(err))
		return nil, errors.TokenExchange(err)
	}

	return &RawTokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idTokenOf(tok),
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
	}, nil
}

// VerifyIdentity validates the id_token signature, audience and issuer and
// returns the subject and display name it carries.
func (m *Manager) VerifyIdentity(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, errors.IdentityVerification(stderrors.New("id token is empty"))
	}

	payload, err := m.validator.Validate(ctx, idToken, m.config.ClientID)
	if err != nil {
		return nil, errors.IdentityVerification(err)
	}
	if !validIssuer(payload.Issuer) {
		return nil, errors.IdentityVerification(stderrors.New("unexpected issuer " + payload.Issuer))
	}
	if payload.Subject == "" {
		return nil, errors.IdentityVerification(stderrors.New("id token has no subject"))
	}

	identity := &Identity{ExternalUserID: payload.Subject}
	if name, ok := payload.Claims["name"].(string); ok {
		identity.DisplayName = name
	}
	return identity, nil
}

// SaveTokens upserts the credential for identity, marks it live again and
// links the stream in ref to it. When Google omits the refresh token on a
// repeat login the stored one is kept.
func (m *Manager) SaveTokens(ctx context.Context, tokens *RawTokenSet, identity *Identity, ref storage.StreamReference) (*storage.Credential, error) {
	if tokens == nil || identity == nil || identity.ExternalUserID == "" {
		return nil, errors.ValidationError("token set and identity are required")
	}
	if ref.PID == "" {
		return nil, errors.ValidationError("stream reference pid is required")
	}

	existing, err := m.store.LoadCredentialWithToken(ctx, identity.ExternalUserID)
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.InternalError("failed to load credential", err)
	}

	refreshToken := tokens.RefreshToken
	if refreshToken == "" && existing != nil && !existing.Revoked {
		refreshToken = existing.RefreshToken
	}
	if refreshToken == "" {
		return nil, errors.InvalidOrRevokedSession(errors.CodeInvalidToken, errors.MsgRevokedOrInvalid, http.StatusUnauthorized, nil)
	}

	credential := &storage.Credential{
		ExternalUserID:      identity.ExternalUserID,
		ExternalDisplayName: identity.DisplayName,
		RefreshToken:        refreshToken,
		AccessToken:         tokens.AccessToken,
		AccessTokenExpiry:   tokens.Expiry,
		Revoked:             false,
		OwnerPID:            ref.PID,
		OwnerUID:            ref.UID,
	}
	if err := m.store.SaveCredential(ctx, credential); err != nil {
		return nil, errors.InternalError("failed to save credential", err)
	}

	stream, err := m.store.GetStream(ctx, ref.PID)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		stream = &storage.Stream{PID: ref.PID, UID: ref.UID}
	case err != nil:
		return nil, errors.InternalError("failed to load stream", err)
	}
	if stream.UID == "" {
		stream.UID = ref.UID
	}
	stream.ExternalUserID = identity.ExternalUserID
	if err := m.store.SaveStream(ctx, stream); err != nil {
		return nil, errors.InternalError("failed to link stream", err)
	}

	if tokens.AccessToken != "" {
		m.cacheToken(ctx, identity.ExternalUserID, &goauth2.Token{
			AccessToken: tokens.AccessToken,
			TokenType:   tokens.TokenType,
			Expiry:      tokens.Expiry,
		})
	}

	m.logger.WithContext(ctx).Info("Saved Google credential",
		logging.String("external_user_id", identity.ExternalUserID),
		logging.String("pid", ref.PID))

	return credential, nil
}

// CreateClient builds a handle whose HTTP client authenticates as credential
// and refreshes its access token on demand.
func (m *Manager) CreateClient(ctx context.Context, credential *storage.Credential) (*ClientHandle, error) {
	if !credential.HasRefreshToken() || credential.Revoked {
		return nil, errors.InvalidOrRevokedSession(errors.CodeInvalidToken, errors.MsgRevokedOrInvalid, http.StatusUnauthorized, nil)
	}

	src := m.newSource(ctx, credential)

	base := m.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &ClientHandle{
		externalUserID: credential.ExternalUserID,
		source:         src,
		client: &http.Client{
			Transport: &goauth2.Transport{Source: src, Base: base},
			Timeout:   m.httpClient.Timeout,
		},
	}, nil
}

// Close waits for background revocations to finish.
func (m *Manager) Close() {
	m.wg.Wait()
}

// tokenContext makes golang.org/x/oauth2 use the manager's HTTP client.
func (m *Manager) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, goauth2.HTTPClient, m.httpClient)
}

func (m *Manager) cacheToken(ctx context.Context, externalUserID string, tok *goauth2.Token) {
	if err := m.cache.Set(ctx, externalUserID, tok); err != nil {
		m.logger.WithContext(ctx).Warn("Failed to cache access token",
			logging.String("external_user_id", externalUserID), logging.Err(err))
	}
}

// ClientHandle is a live, auto-refreshing client bound to one credential.
type ClientHandle struct {
	externalUserID string
	source         *rotatingSource
	client         *http.Client
}

func (h *ClientHandle) ExternalUserID() string { return h.externalUserID }

// HTTPClient returns the authenticated client. Token refresh and identity
// guard failures surface as errors from its requests.
func (h *ClientHandle) HTTPClient() *http.Client { return h.client }

// Token returns the current access token, refreshing it if needed.
func (h *ClientHandle) Token() (*goauth2.Token, error) { return h.source.Token() }

func validIssuer(iss string) bool {
	for _, v := range googleIssuers {
		if iss == v {
			return true
		}
	}
	return false
}

func idTokenOf(tok *goauth2.Token) string {
	if tok == nil {
		return ""
	}
	if v, ok := tok.Extra("id_token").(string); ok {
		return v
	}
	return ""
}
