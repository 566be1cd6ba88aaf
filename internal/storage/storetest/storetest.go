// Package storetest is a conformance suite every storage backend runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gmb-connector/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the Store contract. newStore must return an
// empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CredentialUpsert", testCredentialUpsert},
		{"CredentialNotFound", testCredentialNotFound},
		{"AccessTokenLastWriteWins", testAccessTokenLastWriteWins},
		{"RefreshTokenUpdate", testRefreshTokenUpdate},
		{"ListExpiring", testListExpiring},
		{"StreamLifecycle", testStreamLifecycle},
		{"DeleteRequiresUnlink", testDeleteRequiresUnlink},
		{"DeleteStream", testDeleteStream},
		{"ErrorLogs", testErrorLogs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

// ms drops precision the sql backends do not keep.
func ms(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}

func credential(id string) *storage.Credential {
	return &storage.Credential{
		ExternalUserID:      id,
		ExternalDisplayName: "Owner " + id,
		RefreshToken:        "refresh-" + id,
		AccessToken:         "access-" + id,
		AccessTokenExpiry:   ms(time.Now().Add(time.Hour)),
		OwnerPID:            "pid-" + id,
		OwnerUID:            "uid-" + id,
	}
}

func testCredentialUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := credential("1001")
	require.NoError(t, s.SaveCredential(ctx, c))
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.LoadCredentialWithToken(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Owner 1001", got.ExternalDisplayName)
	assert.Equal(t, "refresh-1001", got.RefreshToken)
	assert.Equal(t, "access-1001", got.AccessToken)
	assert.True(t, c.AccessTokenExpiry.Equal(got.AccessTokenExpiry), "expiry %v != %v", got.AccessTokenExpiry, c.AccessTokenExpiry)
	assert.Equal(t, "pid-1001", got.OwnerPID)
	assert.Equal(t, "uid-1001", got.OwnerUID)
	assert.False(t, got.Revoked)

	c.RefreshToken = "refresh-rotated"
	c.ExternalDisplayName = "Renamed"
	c.Revoked = true
	require.NoError(t, s.SaveCredential(ctx, c))

	got, err = s.LoadCredentialWithToken(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "refresh-rotated", got.RefreshToken)
	assert.Equal(t, "Renamed", got.ExternalDisplayName)
	assert.True(t, got.Revoked)
}

func testCredentialNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.LoadCredentialWithToken(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.UpdateAccessToken(ctx, "missing", "tok", time.Now()), storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateRefreshToken(ctx, "missing", "tok"), storage.ErrNotFound)

	_, err = s.GetStream(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.UnlinkStream(ctx, "missing"), storage.ErrNotFound)
	assert.ErrorIs(t, s.SelectLocations(ctx, "missing", nil), storage.ErrNotFound)
}

func testAccessTokenLastWriteWins(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveCredential(ctx, credential("2002")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.UpdateAccessToken(ctx, "2002", fmt.Sprintf("access-%d", i), ms(time.Now().Add(time.Hour))))
		}(i)
	}
	wg.Wait()

	expiry := ms(time.Now().Add(2 * time.Hour))
	require.NoError(t, s.UpdateAccessToken(ctx, "2002", "access-final", expiry))

	got, err := s.LoadCredentialWithToken(ctx, "2002")
	require.NoError(t, err)
	assert.Equal(t, "access-final", got.AccessToken)
	assert.True(t, expiry.Equal(got.AccessTokenExpiry))
	assert.Equal(t, "refresh-2002", got.RefreshToken)
}

func testRefreshTokenUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveCredential(ctx, credential("3003")))
	require.NoError(t, s.UpdateRefreshToken(ctx, "3003", "refresh-new"))

	got, err := s.LoadCredentialWithToken(ctx, "3003")
	require.NoError(t, err)
	assert.Equal(t, "refresh-new", got.RefreshToken)
	assert.Equal(t, "access-3003", got.AccessToken)
}

func testListExpiring(t *testing.T, s storage.Store) {
	ctx := context.Background()
	now := ms(time.Now())

	soon := credential("soon")
	soon.AccessTokenExpiry = now.Add(2 * time.Minute)
	sooner := credential("sooner")
	sooner.AccessTokenExpiry = now.Add(time.Minute)
	later := credential("later")
	later.AccessTokenExpiry = now.Add(time.Hour)
	revoked := credential("revoked")
	revoked.AccessTokenExpiry = now.Add(time.Minute)
	revoked.Revoked = true
	noAccess := credential("noaccess")
	noAccess.AccessToken = ""
	noAccess.AccessTokenExpiry = time.Time{}

	for _, c := range []*storage.Credential{soon, sooner, later, revoked, noAccess} {
		require.NoError(t, s.SaveCredential(ctx, c))
	}

	got, err := s.ListExpiring(ctx, now.Add(10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sooner", got[0].ExternalUserID)
	assert.Equal(t, "soon", got[1].ExternalUserID)
	assert.Equal(t, "refresh-sooner", got[0].RefreshToken)

	got, err = s.ListExpiring(ctx, now.Add(10*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sooner", got[0].ExternalUserID)
}

func testStreamLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "p1", UID: "u1", ExternalUserID: "4004"}))
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "p2", UID: "u2", ExternalUserID: "4004"}))
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "p3", UID: "u3", ExternalUserID: "other"}))

	locations := []storage.Location{
		{NameID: "accounts/1/locations/10", Name: "Main St", Address: "1 Main St, Springfield"},
		{NameID: "accounts/1/locations/11", Name: "Harbor", Address: "2 Harbor Rd"},
	}
	require.NoError(t, s.SelectLocations(ctx, "p1", locations))

	st, err := s.GetStream(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "u1", st.UID)
	assert.Equal(t, "4004", st.ExternalUserID)
	assert.Equal(t, locations, st.Locations)

	streams, err := s.FindStreamsByExternalUserID(ctx, "4004")
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "p1", streams[0].PID)
	assert.Equal(t, "p2", streams[1].PID)

	require.NoError(t, s.UnlinkStream(ctx, "p1"))
	st, err = s.GetStream(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, st.ExternalUserID)
	assert.Empty(t, st.Locations)
	assert.Equal(t, "u1", st.UID)

	streams, err = s.FindStreamsByExternalUserID(ctx, "4004")
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "p2", streams[0].PID)

	// SaveStream replaces the row.
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "p1", UID: "u1", ExternalUserID: "5005", Locations: locations[:1]}))
	st, err = s.GetStream(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "5005", st.ExternalUserID)
	assert.Len(t, st.Locations, 1)
}

func testDeleteRequiresUnlink(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveCredential(ctx, credential("6006")))
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "a", UID: "ua", ExternalUserID: "6006"}))

	assert.ErrorIs(t, s.DeleteAllByExternalUserID(ctx, "6006"), storage.ErrStillReferenced)
	_, err := s.LoadCredentialWithToken(ctx, "6006")
	require.NoError(t, err)

	require.NoError(t, s.UnlinkStream(ctx, "a"))
	require.NoError(t, s.DeleteAllByExternalUserID(ctx, "6006"))
	_, err = s.LoadCredentialWithToken(ctx, "6006")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting nothing is not an error.
	assert.NoError(t, s.DeleteAllByExternalUserID(ctx, "6006"))
}

func testDeleteStream(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveCredential(ctx, credential("7007")))
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "d1", UID: "u1", ExternalUserID: "7007"}))
	require.NoError(t, s.SaveStream(ctx, &storage.Stream{PID: "d2", UID: "u2", ExternalUserID: "7007"}))

	require.NoError(t, s.DeleteStream(ctx, "d1"))
	_, err := s.GetStream(ctx, "d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteStream(ctx, "d1"), storage.ErrNotFound)

	streams, err := s.FindStreamsByExternalUserID(ctx, "7007")
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "d2", streams[0].PID)

	// The credential is untouched until the last stream goes.
	_, err = s.LoadCredentialWithToken(ctx, "7007")
	require.NoError(t, err)
	require.NoError(t, s.DeleteStream(ctx, "d2"))
	require.NoError(t, s.DeleteAllByExternalUserID(ctx, "7007"))
}

func testErrorLogs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := ms(time.Now().Add(-time.Hour))

	for i := 0; i < 5; i++ {
		log := &storage.ErrorLog{
			UID:       "u1",
			HTTPCode:  400 + i,
			Action:    fmt.Sprintf("action-%d", i),
			Error:     "boom",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveErrorLog(ctx, log))
		assert.NotEmpty(t, log.ID)
	}

	logs, err := s.ListErrorLogs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "action-4", logs[0].Action)
	assert.Equal(t, "action-3", logs[1].Action)
	assert.Equal(t, "action-2", logs[2].Action)
	assert.Equal(t, 404, logs[0].HTTPCode)

	logs, err = s.ListErrorLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
}
