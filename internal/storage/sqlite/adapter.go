package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gmb-connector/internal/config"
	"gmb-connector/internal/storage"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg *config.Config) (storage.Store, error) {
		return NewAdapter(ctx, &Config{DatabasePath: cfg.DatabasePath})
	})
}

// Adapter implements storage.Store on SQLite.
type Adapter struct {
	db     *sql.DB
	config *Config
}

// NewAdapter opens the database and runs the migrations.
func NewAdapter(ctx context.Context, config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if config.DatabasePath == ":memory:" {
		// Every connection to a shared in-memory database sees the same data,
		// but the database disappears once the last one closes.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			external_user_id TEXT PRIMARY KEY,
			external_display_name TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			access_token_expiry INTEGER NOT NULL DEFAULT 0,
			revoked BOOLEAN NOT NULL DEFAULT 0,
			owner_pid TEXT NOT NULL DEFAULT '',
			owner_uid TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS streams (
			pid TEXT PRIMARY KEY,
			uid TEXT NOT NULL DEFAULT '',
			external_user_id TEXT NOT NULL DEFAULT '',
			locations TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_external_user ON streams(external_user_id)`,
		`CREATE TABLE IF NOT EXISTS error_logs (
			id TEXT PRIMARY KEY,
			uid TEXT NOT NULL DEFAULT '',
			http_code INTEGER NOT NULL DEFAULT 0,
			action TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_logs_created ON error_logs(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := a.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

// Timestamps are stored as unix milliseconds; zero means unset.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

const credentialColumns = `external_user_id, external_display_name, refresh_token, access_token,
	access_token_expiry, revoked, owner_pid, owner_uid, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row scanner) (*storage.Credential, error) {
	var c storage.Credential
	var expiry, created, updated int64
	err := row.Scan(&c.ExternalUserID, &c.ExternalDisplayName, &c.RefreshToken, &c.AccessToken,
		&expiry, &c.Revoked, &c.OwnerPID, &c.OwnerUID, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.AccessTokenExpiry = fromMillis(expiry)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

func (a *Adapter) LoadCredentialWithToken(ctx context.Context, externalUserID string) (*storage.Credential, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE external_user_id = ?`, externalUserID)
	c, err := scanCredential(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return c, nil
}

func (a *Adapter) SaveCredential(ctx context.Context, c *storage.Credential) error {
	now := time.Now()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_user_id) DO UPDATE SET
			external_display_name = excluded.external_display_name,
			refresh_token = excluded.refresh_token,
			access_token = excluded.access_token,
			access_token_expiry = excluded.access_token_expiry,
			revoked = excluded.revoked,
			owner_pid = excluded.owner_pid,
			owner_uid = excluded.owner_uid,
			updated_at = excluded.updated_at`,
		c.ExternalUserID, c.ExternalDisplayName, c.RefreshToken, c.AccessToken,
		toMillis(c.AccessTokenExpiry), c.Revoked, c.OwnerPID, c.OwnerUID,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	var created int64
	if err := a.db.QueryRowContext(ctx,
		`SELECT created_at FROM credentials WHERE external_user_id = ?`, c.ExternalUserID).Scan(&created); err != nil {
		return fmt.Errorf("failed to read credential timestamps: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(now.UnixMilli())
	return nil
}

func (a *Adapter) UpdateAccessToken(ctx context.Context, externalUserID, token string, expiry time.Time) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE credentials SET access_token = ?, access_token_expiry = ?, updated_at = ? WHERE external_user_id = ?`,
		token, toMillis(expiry), time.Now().UnixMilli(), externalUserID)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	return requireAffected(res)
}

func (a *Adapter) UpdateRefreshToken(ctx context.Context, externalUserID, token string) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE credentials SET refresh_token = ?, updated_at = ? WHERE external_user_id = ?`,
		token, time.Now().UnixMilli(), externalUserID)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	return requireAffected(res)
}

func (a *Adapter) DeleteAllByExternalUserID(ctx context.Context, externalUserID string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM streams WHERE external_user_id = ?`, externalUserID).Scan(&refs); err != nil {
		return fmt.Errorf("failed to count stream references: %w", err)
	}
	if refs > 0 {
		return storage.ErrStillReferenced
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE external_user_id = ?`, externalUserID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return tx.Commit()
}

func (a *Adapter) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*storage.Credential, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+credentialColumns+` FROM credentials
		WHERE revoked = 0 AND refresh_token != '' AND access_token != '' AND access_token_expiry < ?
		ORDER BY access_token_expiry ASC
		LIMIT ?`, before.UnixMilli(), limit)
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

func scanStream(row scanner) (*storage.Stream, error) {
	var st storage.Stream
	var locations string
	var created, updated int64
	if err := row.Scan(&st.PID, &st.UID, &st.ExternalUserID, &locations, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(locations), &st.Locations); err != nil {
		return nil, fmt.Errorf("failed to decode locations of stream %s: %w", st.PID, err)
	}
	st.CreatedAt = fromMillis(created)
	st.UpdatedAt = fromMillis(updated)
	return &st, nil
}

func encodeLocations(locations []storage.Location) (string, error) {
	if locations == nil {
		locations = []storage.Location{}
	}
	data, err := json.Marshal(locations)
	if err != nil {
		return "", fmt.Errorf("failed to encode locations: %w", err)
	}
	return string(data), nil
}

func (a *Adapter) GetStream(ctx context.Context, pid string) (*storage.Stream, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT pid, uid, external_user_id, locations, created_at, updated_at FROM streams WHERE pid = ?`, pid)
	st, err := scanStream(row)
	if stderrors.Is(err, sql.ErrNoRows) {
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
	now := time.Now().UnixMilli()
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO streams (pid, uid, external_user_id, locations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pid) DO UPDATE SET
			uid = excluded.uid,
			external_user_id = excluded.external_user_id,
			locations = excluded.locations,
			updated_at = excluded.updated_at`,
		st.PID, st.UID, st.ExternalUserID, locations, now, now)
	if err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	st.UpdatedAt = fromMillis(now)
	return nil
}

func (a *Adapter) FindStreamsByExternalUserID(ctx context.Context, externalUserID string) ([]*storage.Stream, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT pid, uid, external_user_id, locations, created_at, updated_at
		FROM streams WHERE external_user_id = ? ORDER BY pid`, externalUserID)
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
	res, err := a.db.ExecContext(ctx,
		`UPDATE streams SET external_user_id = '', locations = '[]', updated_at = ? WHERE pid = ?`,
		time.Now().UnixMilli(), pid)
	if err != nil {
		return fmt.Errorf("failed to unlink stream: %w", err)
	}
	return requireAffected(res)
}

func (a *Adapter) DeleteStream(ctx context.Context, pid string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM streams WHERE pid = ?`, pid)
	if err != nil {
		return fmt.Errorf("failed to delete stream: %w", err)
	}
	return requireAffected(res)
}

func (a *Adapter) SelectLocations(ctx context.Context, pid string, locations []storage.Location) error {
	encoded, err := encodeLocations(locations)
	if err != nil {
		return err
	}
	res, err := a.db.ExecContext(ctx,
		`UPDATE streams SET locations = ?, updated_at = ? WHERE pid = ?`,
		encoded, time.Now().UnixMilli(), pid)
	if err != nil {
		return fmt.Errorf("failed to select locations: %w", err)
	}
	return requireAffected(res)
}

func (a *Adapter) SaveErrorLog(ctx context.Context, log *storage.ErrorLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO error_logs (id, uid, http_code, action, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.UID, log.HTTPCode, log.Action, log.Error, log.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save error log: %w", err)
	}
	return nil
}

func (a *Adapter) ListErrorLogs(ctx context.Context, limit int) ([]*storage.ErrorLog, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, uid, http_code, action, error, created_at
		FROM error_logs ORDER BY created_at DESC, rowid DESC LIMIT ?`, storage.ClampErrorLogLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	var out []*storage.ErrorLog
	for rows.Next() {
		var l storage.ErrorLog
		var created int64
		if err := rows.Scan(&l.ID, &l.UID, &l.HTTPCode, &l.Action, &l.Error, &created); err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		l.CreatedAt = fromMillis(created)
		out = append(out, &l)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
