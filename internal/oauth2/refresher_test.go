package oauth2

import (
	"context"
	"testing"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/storage"
	"gmb-connector/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshExpiring(t *testing.T) {
	f := newFakeGoogle(t)
	f.subjects["refresh-a"] = "sub-a"
	f.invalid["refresh-b"] = true

	store := memory.New()
	m := newTestManager(t, f, store)
	ctx := context.Background()
	now := time.Now()

	seedCredential(t, store, storage.Credential{
		ExternalUserID: "sub-a", RefreshToken: "refresh-a",
		AccessToken: "old-a", AccessTokenExpiry: now.Add(2 * time.Minute),
	})
	seedCredential(t, store, storage.Credential{
		ExternalUserID: "sub-b", RefreshToken: "refresh-b",
		AccessToken: "old-b", AccessTokenExpiry: now.Add(3 * time.Minute),
	})
	seedCredential(t, store, storage.Credential{
		ExternalUserID: "sub-c", RefreshToken: "refresh-c",
		AccessToken: "old-c", AccessTokenExpiry: now.Add(2 * time.Hour),
	})
	require.NoError(t, store.SaveStream(ctx, &storage.Stream{PID: "pid-b", ExternalUserID: "sub-b"}))

	n, err := m.RefreshExpiring(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := store.LoadCredentialWithToken(ctx, "sub-a")
	require.NoError(t, err)
	assert.NotEqual(t, "old-a", a.AccessToken)
	assert.True(t, a.AccessTokenExpiry.After(now.Add(30*time.Minute)))

	c, err := store.LoadCredentialWithToken(ctx, "sub-c")
	require.NoError(t, err)
	assert.Equal(t, "old-c", c.AccessToken)

	// The rejected grant is revoked in the background.
	m.Close()
	_, err = store.LoadCredentialWithToken(ctx, "sub-b")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	s, err := store.GetStream(ctx, "pid-b")
	require.NoError(t, err)
	assert.Empty(t, s.ExternalUserID)
}

func TestRefreshExpiring_CancelledContext(t *testing.T) {
	f := newFakeGoogle(t)
	store := memory.New()
	m := newTestManager(t, f, store)
	seedCredential(t, store, storage.Credential{
		ExternalUserID: "sub-a", RefreshToken: "refresh-a",
		AccessToken: "old-a", AccessTokenExpiry: time.Now(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := m.RefreshExpiring(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestNewRefresher(t *testing.T) {
	f := newFakeGoogle(t)
	m := newTestManager(t, f, memory.New())

	_, err := NewRefresher(m, "every so often", time.Minute)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	r, err := NewRefresher(m, "@every 1h", 10*time.Minute)
	require.NoError(t, err)
	r.Start()

	select {
	case <-r.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresher_RunRefreshesExpiring(t *testing.T) {
	f := newFakeGoogle(t)
	f.subjects["refresh-a"] = "sub-a"
	store := memory.New()
	m := newTestManager(t, f, store)
	seedCredential(t, store, storage.Credential{
		ExternalUserID: "sub-a", RefreshToken: "refresh-a",
		AccessToken: "old-a", AccessTokenExpiry: time.Now().Add(time.Minute),
	})

	r, err := NewRefresher(m, "@every 1h", 10*time.Minute)
	require.NoError(t, err)
	r.run()

	refreshes, _ := f.counts()
	assert.Equal(t, 1, refreshes)
}
