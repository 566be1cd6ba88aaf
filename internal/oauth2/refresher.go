package oauth2

import (
	"context"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"

	"github.com/robfig/cron/v3"
)

const refreshBatchSize = 100

// RefreshExpiring refreshes stored credentials whose access token expires
// within lookahead. Each refresh goes through the same identity guard as an
// on-demand refresh. Credentials Google reports as revoked are revoked
// locally in the background. It returns how many credentials were refreshed.
func (m *Manager) RefreshExpiring(ctx context.Context, lookahead time.Duration) (int, error) {
	credentials, err := m.store.ListExpiring(ctx, m.now().Add(lookahead), refreshBatchSize)
	if err != nil {
		return 0, errors.InternalError("failed to list expiring credentials", err)
	}

	refreshed := 0
	for _, c := range credentials {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if _, err := m.newSource(ctx, c).refresh(); err != nil {
			m.logger.WithContext(ctx).Warn("Scheduled refresh failed",
				logging.String("external_user_id", c.ExternalUserID), logging.Err(err))
			if IsInvalidGrant(err) {
				m.RevokeAsync(c.ExternalUserID)
			}
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// Refresher runs RefreshExpiring on a cron schedule.
type Refresher struct {
	cron      *cron.Cron
	manager   *Manager
	lookahead time.Duration
	timeout   time.Duration
	logger    logging.Logger
}

// NewRefresher schedules manager.RefreshExpiring. schedule accepts the
// standard five field syntax and descriptors such as "@every 5m".
func NewRefresher(manager *Manager, schedule string, lookahead time.Duration) (*Refresher, error) {
	r := &Refresher{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		manager:   manager,
		lookahead: lookahead,
		timeout:   5 * time.Minute,
		logger:    manager.logger.WithFields(logging.String("job", "token_refresh")),
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, errors.ConfigError("invalid token refresh schedule: " + err.Error())
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("Token refresher started", logging.Duration("lookahead", r.lookahead))
}

// Stop halts the schedule and returns a context that is done once a running
// refresh has finished.
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	n, err := r.manager.RefreshExpiring(ctx, r.lookahead)
	if err != nil {
		r.logger.Error("Token refresh run failed", err, logging.Int("refreshed", n))
		return
	}
	r.logger.Debug("Token refresh run finished",
		logging.Int("refreshed", n), logging.Duration("duration", time.Since(start)))
}
