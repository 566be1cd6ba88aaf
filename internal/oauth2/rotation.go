package oauth2

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	goauth2 "golang.org/x/oauth2"
)

// rotatingSource is the token source behind a ClientHandle. It serves the
// current access token while it is usable, otherwise prefers a fresher one
// from the cache, and only then refreshes against Google and runs the
// rotation callback.
type rotatingSource struct {
	m              *Manager
	ctx            context.Context
	externalUserID string

	mu           sync.Mutex
	current      *goauth2.Token
	refreshToken string
}

func (m *Manager) newSource(ctx context.Context, credential *storage.Credential) *rotatingSource {
	src := &rotatingSource{
		m:              m,
		ctx:            ctx,
		externalUserID: credential.ExternalUserID,
		refreshToken:   credential.RefreshToken,
	}
	if credential.AccessToken != "" {
		src.current = &goauth2.Token{
			AccessToken: credential.AccessToken,
			TokenType:   "Bearer",
			Expiry:      credential.AccessTokenExpiry,
		}
	}
	return src
}

func (s *rotatingSource) Token() (*goauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m.usable(s.current) {
		return s.current, nil
	}

	if cached, err := s.m.cache.Get(s.ctx, s.externalUserID); err != nil {
		s.m.logger.Debug("Token cache lookup failed",
			logging.String("external_user_id", s.externalUserID), logging.Err(err))
	} else if s.m.usable(cached) {
		s.current = cached
		return cached, nil
	}

	return s.refreshLocked()
}

// refresh forces a refresh regardless of the current token.
func (s *rotatingSource) refresh() (*goauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked()
}

func (s *rotatingSource) refreshLocked() (*goauth2.Token, error) {
	start := time.Now()
	ts := s.m.oauth.TokenSource(s.m.tokenContext(s.ctx), &goauth2.Token{RefreshToken: s.refreshToken})
	tok, err := ts.Token()
	if err != nil {
		s.m.logger.WithContext(s.ctx).Warn("Access token refresh failed",
			logging.String("external_user_id", s.externalUserID),
			logging.Duration("duration", time.Since(start)),
			logging.Err(err))
		return nil, fmt.Errorf("refresh access token: %w", err)
	}

	previous := s.refreshToken
	if err := s.m.onRotate(s.ctx, s.externalUserID, previous, tok); err != nil {
		return nil, err
	}

	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	s.current = tok
	return tok, nil
}

// onRotate persists a refreshed token set after checking it still belongs to
// externalUserID. A missing or different subject aborts every write.
func (m *Manager) onRotate(ctx context.Context, externalUserID, previousRefresh string, tok *goauth2.Token) error {
	subject, err := subjectOf(idTokenOf(tok))
	if err != nil || subject != externalUserID {
		m.logger.WithContext(ctx).Error("Rotated token belongs to another identity", err,
			logging.String("external_user_id", externalUserID),
			logging.String("rotated_subject", subject))
		return errors.IdentityMismatch(externalUserID, subject)
	}

	log := m.logger.WithContext(ctx).WithFields(logging.String("external_user_id", externalUserID))

	if err := m.store.UpdateAccessToken(ctx, externalUserID, tok.AccessToken, tok.Expiry); err != nil {
		// The token is valid for this request even if it was not stored.
		log.Warn("Failed to persist rotated access token", logging.Err(err))
	}
	if tok.RefreshToken != "" && tok.RefreshToken != previousRefresh {
		if err := m.store.UpdateRefreshToken(ctx, externalUserID, tok.RefreshToken); err != nil {
			log.Warn("Failed to persist rotated refresh token", logging.Err(err))
		} else {
			log.Info("Refresh token rotated")
		}
	}
	m.cacheToken(ctx, externalUserID, tok)

	log.Debug("Access token rotated", logging.Time("expiry", tok.Expiry))
	return nil
}

// usable reports whether tok can be sent without refreshing first.
func (m *Manager) usable(tok *goauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" || tok.Expiry.IsZero() {
		return false
	}
	return m.now().Add(m.config.ExpirySkew).Before(tok.Expiry)
}

// subjectOf decodes the sub claim of an id_token. The signature is not
// checked here; the token came straight from Google's token endpoint over TLS.
func subjectOf(idToken string) (string, error) {
	if idToken == "" {
		return "", stderrors.New("rotated token has no id_token")
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("decode id_token: %w", err)
	}
	if claims.Subject == "" {
		return "", stderrors.New("id_token has no sub claim")
	}
	return claims.Subject, nil
}
