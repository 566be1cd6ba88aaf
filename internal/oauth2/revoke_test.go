package oauth2

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/storage"
	"gmb-connector/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goauth2 "golang.org/x/oauth2"
)

// recordingStore logs the mutating calls revocation makes and checks that no
// stream still references a credential at the moment it is deleted.
type recordingStore struct {
	*memory.Store
	t *testing.T

	mu  sync.Mutex
	ops []string
}

func (s *recordingStore) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
}

func (s *recordingStore) UnlinkStream(ctx context.Context, pid string) error {
	s.record("unlink:" + pid)
	return s.Store.UnlinkStream(ctx, pid)
}

func (s *recordingStore) DeleteAllByExternalUserID(ctx context.Context, id string) error {
	refs, err := s.Store.FindStreamsByExternalUserID(ctx, id)
	require.NoError(s.t, err)
	assert.Empty(s.t, refs, "credential deleted while still referenced")
	s.record("delete:" + id)
	return s.Store.DeleteAllByExternalUserID(ctx, id)
}

type recordingCache struct {
	nopCache
	mu      sync.Mutex
	deleted []string
}

func (c *recordingCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
	return nil
}

func seedSharedCredential(t *testing.T, store *memory.Store) *storage.Credential {
	ctx := context.Background()
	cred := seedCredential(t, store, storage.Credential{
		ExternalUserID:    "sub-1",
		RefreshToken:      "refresh-1",
		AccessToken:       "access-1",
		AccessTokenExpiry: time.Now().Add(time.Hour),
		OwnerPID:          "pid-a",
	})
	locations := []storage.Location{{NameID: "accounts/1/locations/9", Name: "Main St"}}
	for _, s := range []*storage.Stream{
		{PID: "pid-a", UID: "uid-a", ExternalUserID: "sub-1", Locations: locations},
		{PID: "pid-b", UID: "uid-b", ExternalUserID: "sub-1", Locations: locations},
		{PID: "pid-c", UID: "uid-c", ExternalUserID: "sub-2", Locations: locations},
	} {
		require.NoError(t, store.SaveStream(ctx, s))
	}
	return cred
}

func TestRevoke_UnlinksAllStreamsBeforeDelete(t *testing.T) {
	f := newFakeGoogle(t)
	store := &recordingStore{Store: memory.New(), t: t}
	cache := &recordingCache{}
	m := newTestManager(t, f, store, WithCache(cache))
	ctx := context.Background()
	cred := seedSharedCredential(t, store.Store)

	require.NoError(t, m.Revoke(ctx, cred))

	assert.Equal(t, []string{"unlink:pid-a", "unlink:pid-b", "delete:sub-1"}, store.ops)
	assert.Equal(t, []string{"refresh-1"}, f.revoked)
	assert.Equal(t, []string{"sub-1"}, cache.deleted)

	for _, pid := range []string{"pid-a", "pid-b"} {
		s, err := store.GetStream(ctx, pid)
		require.NoError(t, err)
		assert.Empty(t, s.ExternalUserID)
		assert.Empty(t, s.Locations)
	}

	untouched, err := store.GetStream(ctx, "pid-c")
	require.NoError(t, err)
	assert.Equal(t, "sub-2", untouched.ExternalUserID)
	assert.Len(t, untouched.Locations, 1)

	_, err = store.LoadCredentialWithToken(ctx, "sub-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRevoke_UpstreamFailureIsSwallowed(t *testing.T) {
	f := newFakeGoogle(t)
	f.revokeStatus = http.StatusBadRequest
	store := memory.New()
	m := newTestManager(t, f, store)
	cred := seedSharedCredential(t, store)

	require.NoError(t, m.Revoke(context.Background(), cred))

	_, err := store.LoadCredentialWithToken(context.Background(), "sub-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRevoke_UnreachableUpstream(t *testing.T) {
	f := newFakeGoogle(t)
	store := memory.New()
	m := newTestManager(t, f, store)
	m.config.RevokeURL = "http://127.0.0.1:1/revoke"
	cred := seedSharedCredential(t, store)

	require.NoError(t, m.Revoke(context.Background(), cred))
}

func TestRevoke_RequiresCredential(t *testing.T) {
	m := NewManager(Config{ClientID: "id"}, memory.New())
	assert.Error(t, m.Revoke(context.Background(), nil))
}

func TestDisconnectStream(t *testing.T) {
	tests := []struct {
		name        string
		disconnect  []string
		wantRevoked []string
		wantCred    bool
	}{
		{"sibling remains", []string{"pid-a"}, nil, true},
		{"last sibling goes", []string{"pid-a", "pid-b"}, []string{"refresh-1"}, false},
		{"unrelated credential untouched", []string{"pid-c"}, []string{"refresh-2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGoogle(t)
			store := memory.New()
			m := newTestManager(t, f, store)
			ctx := context.Background()
			seedSharedCredential(t, store)
			seedCredential(t, store, storage.Credential{
				ExternalUserID: "sub-2",
				RefreshToken:   "refresh-2",
				OwnerPID:       "pid-c",
			})

			for _, pid := range tt.disconnect {
				require.NoError(t, m.DisconnectStream(ctx, pid))
				_, err := store.GetStream(ctx, pid)
				assert.ErrorIs(t, err, storage.ErrNotFound)
			}

			assert.Equal(t, tt.wantRevoked, f.revoked)
			_, err := store.LoadCredentialWithToken(ctx, "sub-1")
			if tt.wantCred {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, storage.ErrNotFound)
			}
		})
	}
}

func TestDisconnectStream_UnlinkedAndMissing(t *testing.T) {
	f := newFakeGoogle(t)
	store := memory.New()
	m := newTestManager(t, f, store)
	ctx := context.Background()
	require.NoError(t, store.SaveStream(ctx, &storage.Stream{PID: "pid-x", UID: "uid-x"}))

	require.NoError(t, m.DisconnectStream(ctx, "pid-x"))
	assert.Empty(t, f.revoked)

	err := m.DisconnectStream(ctx, "pid-x")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestRevokeAsync(t *testing.T) {
	f := newFakeGoogle(t)
	store := memory.New()
	m := newTestManager(t, f, store)
	seedSharedCredential(t, store)

	m.RevokeAsync("sub-1")
	m.RevokeAsync("sub-1")
	m.RevokeAsync("sub-unknown")
	m.RevokeAsync("")
	m.Close()

	_, err := store.LoadCredentialWithToken(context.Background(), "sub-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	streams, err := store.FindStreamsByExternalUserID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestIsInvalidGrant(t *testing.T) {
	assert.True(t, IsInvalidGrant(&goauth2.RetrieveError{ErrorCode: "invalid_grant"}))
	assert.True(t, IsInvalidGrant(&goauth2.RetrieveError{Body: []byte(`{"error":"invalid_grant"}`)}))
	assert.False(t, IsInvalidGrant(&goauth2.RetrieveError{ErrorCode: "invalid_client"}))
	assert.False(t, IsInvalidGrant(nil))
}
