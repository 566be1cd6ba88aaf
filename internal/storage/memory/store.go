// Package memory is an in-process storage backend. It backs tests and
// DATABASE_TYPE=memory deployments; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gmb-connector/internal/config"
	"gmb-connector/internal/storage"

	"github.com/google/uuid"
)

func init() {
	storage.Register("memory", func(ctx context.Context, cfg *config.Config) (storage.Store, error) {
		return New(), nil
	})
}

// Store keeps everything in maps. It hands out copies so callers cannot
// mutate stored rows.
type Store struct {
	mu          sync.RWMutex
	credentials map[string]*storage.Credential
	streams     map[string]*storage.Stream
	errorLogs   []*storage.ErrorLog
	now         func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		credentials: make(map[string]*storage.Credential),
		streams:     make(map[string]*storage.Stream),
		now:         time.Now,
	}
}

func (s *Store) LoadCredentialWithToken(ctx context.Context, externalUserID string) (*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[externalUserID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) SaveCredential(ctx context.Context, c *storage.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cp := *c
	if existing, ok := s.credentials[c.ExternalUserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.credentials[c.ExternalUserID] = &cp

	c.CreatedAt, c.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (s *Store) UpdateAccessToken(ctx context.Context, externalUserID, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[externalUserID]
	if !ok {
		return storage.ErrNotFound
	}
	c.AccessToken = token
	c.AccessTokenExpiry = expiry
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateRefreshToken(ctx context.Context, externalUserID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[externalUserID]
	if !ok {
		return storage.ErrNotFound
	}
	c.RefreshToken = token
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteAllByExternalUserID(ctx context.Context, externalUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.streams {
		if st.ExternalUserID == externalUserID {
			return storage.ErrStillReferenced
		}
	}
	delete(s.credentials, externalUserID)
	return nil
}

func (s *Store) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Credential
	for _, c := range s.credentials {
		if c.Revoked || c.RefreshToken == "" || c.AccessToken == "" {
			continue
		}
		if c.AccessTokenExpiry.Before(before) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AccessTokenExpiry.Before(out[j].AccessTokenExpiry)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetStream(ctx context.Context, pid string) (*storage.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streams[pid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyStream(st), nil
}

func (s *Store) SaveStream(ctx context.Context, st *storage.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cp := copyStream(st)
	if existing, ok := s.streams[st.PID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.streams[st.PID] = cp

	st.CreatedAt, st.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (s *Store) FindStreamsByExternalUserID(ctx context.Context, externalUserID string) ([]*storage.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Stream
	for _, st := range s.streams {
		if st.ExternalUserID == externalUserID {
			out = append(out, copyStream(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (s *Store) UnlinkStream(ctx context.Context, pid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[pid]
	if !ok {
		return storage.ErrNotFound
	}
	st.ExternalUserID = ""
	st.Locations = nil
	st.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteStream(ctx context.Context, pid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[pid]; !ok {
		return storage.ErrNotFound
	}
	delete(s.streams, pid)
	return nil
}

func (s *Store) SelectLocations(ctx context.Context, pid string, locations []storage.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[pid]
	if !ok {
		return storage.ErrNotFound
	}
	st.Locations = append([]storage.Location(nil), locations...)
	st.UpdatedAt = s.now()
	return nil
}

func (s *Store) SaveErrorLog(ctx context.Context, log *storage.ErrorLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.now()
	}
	cp := *log
	s.errorLogs = append(s.errorLogs, &cp)
	return nil
}

func (s *Store) ListErrorLogs(ctx context.Context, limit int) ([]*storage.ErrorLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = storage.ClampErrorLogLimit(limit)
	out := make([]*storage.ErrorLog, 0, len(s.errorLogs))
	// Walking backwards puts later inserts first among equal timestamps.
	for i := len(s.errorLogs) - 1; i >= 0; i-- {
		cp := *s.errorLogs[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Health(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func copyStream(st *storage.Stream) *storage.Stream {
	cp := *st
	cp.Locations = append([]storage.Location(nil), st.Locations...)
	return &cp
}
