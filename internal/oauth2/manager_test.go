package oauth2

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/storage"
	"gmb-connector/internal/storage/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

// fakeGoogle serves the token, revoke and a protected API endpoint.
type fakeGoogle struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	subjects      map[string]string // refresh token -> sub of the rotated id_token
	invalid       map[string]bool   // refresh tokens answered with invalid_grant
	rotate        map[string]string // refresh token -> new refresh token
	refreshCalls  int
	exchangeCalls int
	revoked       []string
	revokeStatus  int
	bearers       []string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{
		t:            t,
		subjects:     map[string]string{},
		invalid:      map[string]bool{},
		rotate:       map[string]string{},
		revokeStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/revoke", f.handleRevoke)
	mux.HandleFunc("/api", f.handleAPI)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) handleToken(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		f.exchangeCalls++
		if r.Form.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Bad Request"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "access-initial",
			"refresh_token": "refresh-initial",
			"id_token":      signedIDToken(f.t, "sub-1"),
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	case "refresh_token":
		f.refreshCalls++
		rt := r.Form.Get("refresh_token")
		if f.invalid[rt] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Token has been expired or revoked."})
			return
		}
		resp := map[string]interface{}{
			"access_token": fmt.Sprintf("access-%d", f.refreshCalls),
			"expires_in":   3600,
			"token_type":   "Bearer",
		}
		if sub := f.subjects[rt]; sub != "" {
			resp["id_token"] = signedIDToken(f.t, sub)
		}
		if next := f.rotate[rt]; next != "" {
			resp["refresh_token"] = next
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *fakeGoogle) handleRevoke(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, r.Form.Get("token"))
	w.WriteHeader(f.revokeStatus)
}

func (f *fakeGoogle) handleAPI(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.bearers = append(f.bearers, r.Header.Get("Authorization"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeGoogle) counts() (refresh, exchange int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls, f.exchangeCalls
}

func (f *fakeGoogle) lastBearer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bearers) == 0 {
		return ""
	}
	return f.bearers[len(f.bearers)-1]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signedIDToken(t *testing.T, sub string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "https://accounts.google.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return s
}

func newTestManager(t *testing.T, f *fakeGoogle, store Store, opts ...Option) *Manager {
	base := []Option{
		WithHTTPClient(f.server.Client()),
		WithLogger(logging.NewNopLogger()),
	}
	m := NewManager(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://connector.example.com/auth/callback",
		TokenURL:     f.server.URL + "/token",
		RevokeURL:    f.server.URL + "/revoke",
	}, store, append(base, opts...)...)
	t.Cleanup(m.Close)
	return m
}

func seedCredential(t *testing.T, store *memory.Store, c storage.Credential) *storage.Credential {
	require.NoError(t, store.SaveCredential(context.Background(), &c))
	loaded, err := store.LoadCredentialWithToken(context.Background(), c.ExternalUserID)
	require.NoError(t, err)
	return loaded
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{ClientID: "id"}, memory.New())

	assert.Equal(t, DefaultRevokeURL, m.config.RevokeURL)
	assert.Equal(t, DefaultScopes, m.oauth.Scopes)
	assert.Equal(t, "https://oauth2.googleapis.com/token", m.oauth.Endpoint.TokenURL)
	assert.Equal(t, defaultExpirySkew, m.config.ExpirySkew)

	u := m.AuthCodeURL("state-1")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=state-1")
}

func TestExchangeCode(t *testing.T) {
	f := newFakeGoogle(t)
	m := newTestManager(t, f, memory.New())
	ctx := context.Background()

	t.Run("valid code", func(t *testing.T) {
		tokens, err := m.ExchangeCode(ctx, "good-code")
		require.NoError(t, err)
		assert.Equal(t, "access-initial", tokens.AccessToken)
		assert.Equal(t, "refresh-initial", tokens.RefreshToken)
		assert.NotEmpty(t, tokens.IDToken)
		assert.True(t, tokens.Expiry.After(time.Now()))
	})

	t.Run("rejected code", func(t *testing.T) {
		_, err := m.ExchangeCode(ctx, "expired-code")
		ce, ok := errors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, errors.CategoryTokenExchange, ce.Category)
		assert.Equal(t, http.StatusForbidden, ce.HTTPStatus)
		assert.Equal(t, errors.MsgTokenExchange, ce.Message)
	})

	t.Run("empty code never reaches google", func(t *testing.T) {
		_, before := f.counts()
		_, err := m.ExchangeCode(ctx, "  ")
		ce, ok := errors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, errors.CategoryTokenExchange, ce.Category)
		_, after := f.counts()
		assert.Equal(t, before, after)
	})
}

func TestVerifyIdentity(t *testing.T) {
	tests := []struct {
		name     string
		idToken  string
		payload  *idtoken.Payload
		err      error
		want     *Identity
		wantFail bool
	}{
		{
			name:    "valid token",
			idToken: "token",
			payload: &idtoken.Payload{Issuer: "accounts.google.com", Subject: "1122", Claims: map[string]interface{}{"name": "Jane Doe"}},
			want:    &Identity{ExternalUserID: "1122", DisplayName: "Jane Doe"},
		},
		{
			name:    "https issuer without name",
			idToken: "token",
			payload: &idtoken.Payload{Issuer: "https://accounts.google.com", Subject: "1122"},
			want:    &Identity{ExternalUserID: "1122"},
		},
		{
			name:     "foreign issuer",
			idToken:  "token",
			payload:  &idtoken.Payload{Issuer: "https://login.example.com", Subject: "1122"},
			wantFail: true,
		},
		{
			name:     "audience mismatch",
			idToken:  "token",
			err:      stderrors.New("idtoken: audience provided does not match aud claim in the JWT"),
			wantFail: true,
		},
		{
			name:     "missing subject",
			idToken:  "token",
			payload:  &idtoken.Payload{Issuer: "accounts.google.com"},
			wantFail: true,
		},
		{
			name:     "empty token",
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAudience string
			validator := ValidatorFunc(func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
				gotAudience = audience
				return tt.payload, tt.err
			})
			m := NewManager(Config{ClientID: "client-id"}, memory.New(),
				WithValidator(validator), WithLogger(logging.NewNopLogger()))

			identity, err := m.VerifyIdentity(context.Background(), tt.idToken)
			if tt.wantFail {
				ce, ok := errors.AsClassified(err)
				require.True(t, ok, "expected classified error, got %v", err)
				assert.Equal(t, errors.CategoryIdentityVerification, ce.Category)
				assert.Equal(t, http.StatusUnauthorized, ce.HTTPStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, identity)
			assert.Equal(t, "client-id", gotAudience)
		})
	}
}

func TestSaveTokens(t *testing.T) {
	f := newFakeGoogle(t)
	store := memory.New()
	m := newTestManager(t, f, store)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	identity := &Identity{ExternalUserID: "sub-1", DisplayName: "Jane"}
	ref := storage.StreamReference{PID: "pid-1", UID: "uid-1"}

	t.Run("first login creates credential and stream", func(t *testing.T) {
		c, err := m.SaveTokens(ctx, &RawTokenSet{AccessToken: "a1", RefreshToken: "r1", Expiry: expiry}, identity, ref)
		require.NoError(t, err)
		assert.Equal(t, "pid-1", c.OwnerPID)

		stored, err := store.LoadCredentialWithToken(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, "r1", stored.RefreshToken)
		assert.Equal(t, "a1", stored.AccessToken)
		assert.Equal(t, "Jane", stored.ExternalDisplayName)
		assert.False(t, stored.Revoked)

		stream, err := store.GetStream(ctx, "pid-1")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", stream.ExternalUserID)
		assert.Equal(t, "uid-1", stream.UID)
	})

	t.Run("repeat login without refresh token keeps stored one", func(t *testing.T) {
		_, err := m.SaveTokens(ctx, &RawTokenSet{AccessToken: "a2", Expiry: expiry},
			identity, storage.StreamReference{PID: "pid-2", UID: "uid-2"})
		require.NoError(t, err)

		stored, err := store.LoadCredentialWithToken(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, "r1", stored.RefreshToken)
		assert.Equal(t, "a2", stored.AccessToken)
		assert.Equal(t, "pid-2", stored.OwnerPID)

		streams, err := store.FindStreamsByExternalUserID(ctx, "sub-1")
		require.NoError(t, err)
		assert.Len(t, streams, 2)
	})

	t.Run("no refresh token anywhere", func(t *testing.T) {
		_, err := m.SaveTokens(ctx, &RawTokenSet{AccessToken: "a3"},
			&Identity{ExternalUserID: "sub-new"}, storage.StreamReference{PID: "pid-3"})
		ce, ok := errors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, errors.CategoryInvalidOrRevokedSession, ce.Category)
		assert.Equal(t, http.StatusUnauthorized, ce.HTTPStatus)

		_, err = store.LoadCredentialWithToken(ctx, "sub-new")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing stream pid", func(t *testing.T) {
		_, err := m.SaveTokens(ctx, &RawTokenSet{RefreshToken: "r"}, identity, storage.StreamReference{})
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})
}

func TestCreateClient_RequiresLiveGrant(t *testing.T) {
	m := NewManager(Config{ClientID: "id"}, memory.New(), WithLogger(logging.NewNopLogger()))

	for name, c := range map[string]*storage.Credential{
		"no refresh token": {ExternalUserID: "sub-1", AccessToken: "a"},
		"revoked":          {ExternalUserID: "sub-1", RefreshToken: "r", Revoked: true},
		"nil credential":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.CreateClient(context.Background(), c)
			ce, ok := errors.AsClassified(err)
			require.True(t, ok)
			assert.Equal(t, errors.CategoryInvalidOrRevokedSession, ce.Category)
			assert.Equal(t, http.StatusUnauthorized, ce.HTTPStatus)
			assert.Equal(t, errors.CodeInvalidToken, ce.Code())
		})
	}
}

func TestClientHandle_RefreshesMissingAccessToken(t *testing.T) {
	f := newFakeGoogle(t)
	f.subjects["refresh-1"] = "sub-1"
	f.rotate["refresh-1"] = "refresh-2"

	store := memory.New()
	m := newTestManager(t, f, store)
	ctx := context.Background()
	cred := seedCredential(t, store, storage.Credential{ExternalUserID: "sub-1", RefreshToken: "refresh-1"})

	handle, err := m.CreateClient(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", handle.ExternalUserID())

	for i := 0; i < 2; i++ {
		resp, err := handle.HTTPClient().Get(f.server.URL + "/api")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	refreshes, _ := f.counts()
	assert.Equal(t, 1, refreshes, "a fresh token should be reused")
	assert.Equal(t, "Bearer access-1", f.lastBearer())

	stored, err := store.LoadCredentialWithToken(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
	assert.True(t, stored.AccessTokenExpiry.After(time.Now()))
}

func TestClientHandle_UsesValidStoredToken(t *testing.T) {
	f := newFakeGoogle(t)
	store := memory.New()
	m := newTestManager(t, f, store)
	cred := seedCredential(t, store, storage.Credential{
		ExternalUserID:    "sub-1",
		RefreshToken:      "refresh-1",
		AccessToken:       "stored-access",
		AccessTokenExpiry: time.Now().Add(time.Hour),
	})

	handle, err := m.CreateClient(context.Background(), cred)
	require.NoError(t, err)

	resp, err := handle.HTTPClient().Get(f.server.URL + "/api")
	require.NoError(t, err)
	resp.Body.Close()

	refreshes, _ := f.counts()
	assert.Zero(t, refreshes)
	assert.Equal(t, "Bearer stored-access", f.lastBearer())
}

func TestClientHandle_RefreshesExpiredToken(t *testing.T) {
	f := newFakeGoogle(t)
	f.subjects["refresh-1"] = "sub-1"
	store := memory.New()
	m := newTestManager(t, f, store)
	cred := seedCredential(t, store, storage.Credential{
		ExternalUserID:    "sub-1",
		RefreshToken:      "refresh-1",
		AccessToken:       "stale",
		AccessTokenExpiry: time.Now().Add(30 * time.Second), // inside the expiry skew
	})

	handle, err := m.CreateClient(context.Background(), cred)
	require.NoError(t, err)

	tok, err := handle.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	stored, err := store.LoadCredentialWithToken(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored.RefreshToken, "unchanged refresh token is not rewritten")
}

func TestIdentityGuard(t *testing.T) {
	tests := []struct {
		name    string
		subject string
	}{
		{name: "different subject", subject: "sub-intruder"},
		{name: "no id_token in refresh response", subject: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGoogle(t)
			f.subjects["refresh-1"] = tt.subject
			f.rotate["refresh-1"] = "refresh-leaked"

			store := memory.New()
			m := newTestManager(t, f, store)
			ctx := context.Background()
			expired := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
			cred := seedCredential(t, store, storage.Credential{
				ExternalUserID:    "sub-1",
				RefreshToken:      "refresh-1",
				AccessToken:       "old-access",
				AccessTokenExpiry: expired,
			})
			before, err := store.LoadCredentialWithToken(ctx, "sub-1")
			require.NoError(t, err)

			handle, err := m.CreateClient(ctx, cred)
			require.NoError(t, err)

			resp, err := handle.HTTPClient().Get(f.server.URL + "/api")
			if resp != nil {
				resp.Body.Close()
			}
			require.Error(t, err)

			ce, ok := errors.AsClassified(err)
			require.True(t, ok, "expected classified error, got %v", err)
			assert.Equal(t, errors.CategoryIdentityMismatch, ce.Category)
			assert.Equal(t, http.StatusUnauthorized, ce.HTTPStatus)
			assert.Equal(t, errors.MsgUserMismatch, ce.Message)

			after, err := store.LoadCredentialWithToken(ctx, "sub-1")
			require.NoError(t, err)
			assert.Equal(t, before, after, "credential must be left unmodified")
			assert.Empty(t, f.lastBearer(), "the API must not be called")
		})
	}
}

func TestIdentityGuard_CheckedOnEveryRotation(t *testing.T) {
	f := newFakeGoogle(t)
	f.subjects["refresh-1"] = "sub-1"
	store := memory.New()
	m := newTestManager(t, f, store)
	ctx := context.Background()
	cred := seedCredential(t, store, storage.Credential{ExternalUserID: "sub-1", RefreshToken: "refresh-1"})

	handle, err := m.CreateClient(ctx, cred)
	require.NoError(t, err)

	_, err = handle.source.refresh()
	require.NoError(t, err)
	first, err := store.LoadCredentialWithToken(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", first.AccessToken)

	f.mu.Lock()
	f.subjects["refresh-1"] = "sub-other"
	f.mu.Unlock()

	_, err = handle.source.refresh()
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryIdentityMismatch, ce.Category)

	second, err := store.LoadCredentialWithToken(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClientHandle_RefreshFailureSurfacesRetrieveError(t *testing.T) {
	f := newFakeGoogle(t)
	f.invalid["refresh-1"] = true
	store := memory.New()
	m := newTestManager(t, f, store)
	cred := seedCredential(t, store, storage.Credential{ExternalUserID: "sub-1", RefreshToken: "refresh-1"})

	handle, err := m.CreateClient(context.Background(), cred)
	require.NoError(t, err)

	_, err = handle.HTTPClient().Get(f.server.URL + "/api")
	require.Error(t, err)
	assert.True(t, IsInvalidGrant(err))
	assert.False(t, IsInvalidGrant(stderrors.New("invalid_grant")))
}
