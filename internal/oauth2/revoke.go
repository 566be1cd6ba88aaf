package oauth2

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/storage"

	goauth2 "golang.org/x/oauth2"
)

// Revoke revokes the grant with Google, unlinks every stream that references
// the credential, deletes the credential and evicts its cached token.
// Failures of the upstream revoke call are logged and ignored.
func (m *Manager) Revoke(ctx context.Context, credential *storage.Credential) error {
	if credential == nil || credential.ExternalUserID == "" {
		return errors.ValidationError("credential is required")
	}
	id := credential.ExternalUserID
	log := m.logger.WithContext(ctx).WithFields(logging.String("external_user_id", id))

	token := credential.RefreshToken
	if token == "" {
		token = credential.AccessToken
	}
	if token != "" {
		if err := m.revokeUpstream(ctx, token); err != nil {
			log.Warn("Upstream token revocation failed, continuing with local cleanup", logging.Err(err))
		}
	}

	streams, err := m.store.FindStreamsByExternalUserID(ctx, id)
	if err != nil {
		return errors.InternalError("failed to find streams for credential", err).WithContext("external_user_id", id)
	}
	for _, s := range streams {
		if err := m.store.UnlinkStream(ctx, s.PID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			return errors.InternalError("failed to unlink stream", err).WithContext("pid", s.PID)
		}
	}

	if err := m.store.DeleteAllByExternalUserID(ctx, id); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return errors.InternalError("failed to delete credential", err).WithContext("external_user_id", id)
	}

	if err := m.cache.Delete(ctx, id); err != nil {
		log.Warn("Failed to evict cached access token", logging.Err(err))
	}

	log.Info("Revoked Google credential", logging.Int("unlinked_streams", len(streams)))
	return nil
}

// DisconnectStream deletes the stream. When it was the last stream referencing
// its credential, the credential is revoked and deleted as well.
func (m *Manager) DisconnectStream(ctx context.Context, pid string) error {
	stream, err := m.store.GetStream(ctx, pid)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFoundError("stream")
		}
		return errors.InternalError("failed to load stream", err).WithContext("pid", pid)
	}
	if err := m.store.DeleteStream(ctx, pid); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return errors.InternalError("failed to delete stream", err).WithContext("pid", pid)
	}

	id := stream.ExternalUserID
	if id == "" {
		return nil
	}
	log := m.logger.WithContext(ctx).WithFields(logging.String("pid", pid), logging.String("external_user_id", id))

	siblings, err := m.store.FindStreamsByExternalUserID(ctx, id)
	if err != nil {
		return errors.InternalError("failed to find streams for credential", err).WithContext("external_user_id", id)
	}
	if len(siblings) > 0 {
		log.Info("Stream deleted, credential still in use", logging.Int("remaining_streams", len(siblings)))
		return nil
	}

	credential, err := m.store.LoadCredentialWithToken(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.InternalError("failed to load credential", err).WithContext("external_user_id", id)
	}
	log.Info("Last stream deleted, revoking credential")
	return m.Revoke(ctx, credential)
}

// RevokeAsync loads and revokes the credential in the background. Concurrent
// calls for the same user collapse into one revocation.
func (m *Manager) RevokeAsync(externalUserID string) {
	if externalUserID == "" {
		return
	}
	if _, busy := m.revoking.LoadOrStore(externalUserID, struct{}{}); busy {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.revoking.Delete(externalUserID)

		ctx, cancel := context.WithTimeout(context.Background(), m.config.RevokeTimeout)
		defer cancel()
		ctx = logging.ContextWith(ctx, logging.ExternalUserIDKey, externalUserID)

		credential, err := m.store.LoadCredentialWithToken(ctx, externalUserID)
		if stderrors.Is(err, storage.ErrNotFound) {
			return
		}
		if err != nil {
			m.logger.WithContext(ctx).Error("Failed to load credential for revocation", err)
			return
		}
		if err := m.Revoke(ctx, credential); err != nil {
			m.logger.WithContext(ctx).Error("Background revocation failed", err)
		}
	}()
}

func (m *Manager) revokeUpstream(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return &goauth2.RetrieveError{Response: resp, Body: body}
	}
	return nil
}

// IsInvalidGrant reports whether err is Google rejecting the refresh token.
func IsInvalidGrant(err error) bool {
	var re *goauth2.RetrieveError
	if !stderrors.As(err, &re) {
		return false
	}
	if re.ErrorCode != "" {
		return re.ErrorCode == errors.CodeInvalidGrant
	}
	return strings.Contains(string(re.Body), errors.CodeInvalidGrant)
}
