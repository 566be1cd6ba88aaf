// Package postgres stores credentials, streams and error logs in PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gmb-connector/internal/config"
	"gmb-connector/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg *config.Config) (storage.Store, error) {
		return NewAdapter(ctx, &Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})
	})
}

// Adapter implements storage.Store on a pgx pool.
type Adapter struct {
	pool   *pgxpool.Pool
	config *Config
}

// NewAdapter opens the pool and runs the migrations.
func NewAdapter(ctx context.Context, config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	pool, err := pgxpool.New(ctx, config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{pool: pool, config: config}
	if err := adapter.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return adapter, nil
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			external_user_id TEXT PRIMARY KEY,
			external_display_name TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			access_token_expiry TIMESTAMPTZ,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			owner_pid TEXT NOT NULL DEFAULT '',
			owner_uid TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS streams (
			pid TEXT PRIMARY KEY,
			uid TEXT NOT NULL DEFAULT '',
			external_user_id TEXT NOT NULL DEFAULT '',
			locations JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_external_user ON streams(external_user_id)`,
		`CREATE TABLE IF NOT EXISTS error_logs (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			uid TEXT NOT NULL DEFAULT '',
			http_code INTEGER NOT NULL DEFAULT 0,
			action TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_logs_created ON error_logs(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := a.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func valueTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

const credentialColumns = `external_user_id, external_display_name, refresh_token, access_token,
	access_token_expiry, revoked, owner_pid, owner_uid, created_at, updated_at`

func scanCredential(row pgx.Row) (*storage.Credential, error) {
	var c storage.Credential
	var expiry *time.Time
	err := row.Scan(&c.ExternalUserID, &c.ExternalDisplayName, &c.RefreshToken, &c.AccessToken,
		&expiry, &c.Revoked, &c.OwnerPID, &c.OwnerUID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.AccessTokenExpiry = valueTime(expiry)
	return &c, nil
}

func (a *Adapter) LoadCredentialWithToken(ctx context.Context, externalUserID string) (*storage.Credential, error) {
	row := a.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE external_user_id = $1`, externalUserID)
	c, err := scanCredential(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return c, nil
}

func (a *Adapter) SaveCredential(ctx context.Context, c *storage.Credential) error {
	err := a.pool.QueryRow(ctx, `
		INSERT INTO credentials (external_user_id, external_display_name, refresh_token, access_token,
			access_token_expiry, revoked, owner_pid, owner_uid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_user_id) DO UPDATE SET
			external_display_name = EXCLUDED.external_display_name,
			refresh_token = EXCLUDED.refresh_token,
			access_token = EXCLUDED.access_token,
			access_token_expiry = EXCLUDED.access_token_expiry,
			revoked = EXCLUDED.revoked,
			owner_pid = EXCLUDED.owner_pid,
			owner_uid = EXCLUDED.owner_uid,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		c.ExternalUserID, c.ExternalDisplayName, c.RefreshToken, c.AccessToken,
		nullableTime(c.AccessTokenExpiry), c.Revoked, c.OwnerPID, c.OwnerUID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (a *Adapter) UpdateAccessToken(ctx context.Context, externalUserID, token string, expiry time.Time) error {
	tag, err := a.pool.Exec(ctx,
		`UPDATE credentials SET access_token = $1, access_token_expiry = $2, updated_at = NOW() WHERE external_user_id = $3`,
		token, nullableTime(expiry), externalUserID)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) UpdateRefreshToken(ctx context.Context, externalUserID, token string) error {
	tag, err := a.pool.Exec(ctx,
		`UPDATE credentials SET refresh_token = $1, updated_at = NOW() WHERE external_user_id = $2`,
		token, externalUserID)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) DeleteAllByExternalUserID(ctx context.Context, externalUserID string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var refs int
	// FOR UPDATE keeps a concurrent SaveStream from linking the credential
	// between the check and the delete.
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM (SELECT 1 FROM streams WHERE external_user_id = $1 FOR UPDATE) s`,
		externalUserID).Scan(&refs); err != nil {
		return fmt.Errorf("failed to count stream references: %w", err)
	}
	if refs > 0 {
		return storage.ErrStillReferenced
	}
	if _, err := tx.Exec(ctx, `DELETE FROM credentials WHERE external_user_id = $1`, externalUserID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return tx.Commit(ctx)
}

func (a *Adapter) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*storage.Credential, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.pool.Query(ctx, `
		SELECT `+credentialColumns+` FROM credentials
		WHERE NOT revoked AND refresh_token <> '' AND access_token <> ''
			AND access_token_expiry IS NOT NULL AND access_token_expiry < $1
		ORDER BY access_token_expiry ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring credentials: %w", err)
	}
	defer rows.Close()

	var out []*storage.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanStream(row pgx.Row) (*storage.Stream, error) {
	var st storage.Stream
	var locations []byte
	if err := row.Scan(&st.PID, &st.UID, &st.ExternalUserID, &locations, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(locations, &st.Locations); err != nil {
		return nil, fmt.Errorf("failed to decode locations of stream %s: %w", st.PID, err)
	}
	return &st, nil
}

func encodeLocations(locations []storage.Location) ([]byte, error) {
	if locations == nil {
		locations = []storage.Location{}
	}
	data, err := json.Marshal(locations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode locations: %w", err)
	}
	return data, nil
}

func (a *Adapter) GetStream(ctx context.Context, pid string) (*storage.Stream, error) {
	row := a.pool.QueryRow(ctx,
		`SELECT pid, uid, external_user_id, locations, created_at, updated_at FROM streams WHERE pid = $1`, pid)
	st, err := scanStream(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stream: %w", err)
	}
	return st, nil
}

func (a *Adapter) SaveStream(ctx context.Context, st *storage.Stream) error {
	locations, err := encodeLocations(st.Locations)
	if err != nil {
		return err
	}
	err = a.pool.QueryRow(ctx, `
		INSERT INTO streams (pid, uid, external_user_id, locations)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pid) DO UPDATE SET
			uid = EXCLUDED.uid,
			external_user_id = EXCLUDED.external_user_id,
			locations = EXCLUDED.locations,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		st.PID, st.UID, st.ExternalUserID, locations,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return nil
}

func (a *Adapter) FindStreamsByExternalUserID(ctx context.Context, externalUserID string) ([]*storage.Stream, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT pid, uid, external_user_id, locations, created_at, updated_at
		FROM streams WHERE external_user_id = $1 ORDER BY pid`, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find streams: %w", err)
	}
	defer rows.Close()

	var out []*storage.Stream
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (a *Adapter) UnlinkStream(ctx context.Context, pid string) error {
	tag, err := a.pool.Exec(ctx,
		`UPDATE streams SET external_user_id = '', locations = '[]'::jsonb, updated_at = NOW() WHERE pid = $1`, pid)
	if err != nil {
		return fmt.Errorf("failed to unlink stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) DeleteStream(ctx context.Context, pid string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM streams WHERE pid = $1`, pid)
	if err != nil {
		return fmt.Errorf("failed to delete stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) SelectLocations(ctx context.Context, pid string, locations []storage.Location) error {
	encoded, err := encodeLocations(locations)
	if err != nil {
		return err
	}
	tag, err := a.pool.Exec(ctx,
		`UPDATE streams SET locations = $1, updated_at = NOW() WHERE pid = $2`, encoded, pid)
	if err != nil {
		return fmt.Errorf("failed to select locations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) SaveErrorLog(ctx context.Context, log *storage.ErrorLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO error_logs (id, uid, http_code, action, error, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.UID, log.HTTPCode, log.Action, log.Error, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save error log: %w", err)
	}
	return nil
}

func (a *Adapter) ListErrorLogs(ctx context.Context, limit int) ([]*storage.ErrorLog, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, uid, http_code, action, error, created_at
		FROM error_logs ORDER BY created_at DESC, seq DESC LIMIT $1`, storage.ClampErrorLogLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	var out []*storage.ErrorLog
	for rows.Next() {
		var l storage.ErrorLog
		if err := rows.Scan(&l.ID, &l.UID, &l.HTTPCode, &l.Action, &l.Error, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
