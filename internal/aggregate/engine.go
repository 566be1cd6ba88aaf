// Package aggregate fans Business Profile reads out across a tenant's accounts
// and selected locations and merges the results.
//
// Account and location discovery fails as a whole. Reads across selected
// locations are best-effort: each location either contributes its page or a
// LocationError, and the call itself never fails.
package aggregate

import (
	"context"
	"sort"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/storage"

	"golang.org/x/sync/errgroup"
)

// API is the subset of *gmb.Client the engine drives.
type API interface {
	ListAccounts(ctx context.Context) ([]gmb.Account, error)
	ListLocations(ctx context.Context, account gmb.Account, recursive bool, pageToken string) (*gmb.LocationsPage, error)
	ListPosts(ctx context.Context, locationID string, pageSize int, pageToken string) gmb.Result[*gmb.PostsPage]
	GetPostInsights(ctx context.Context, locationID string, postNames []string) (*gmb.PostInsights, error)
	CreatePost(ctx context.Context, locationID string, post *gmb.LocalPost) (*gmb.LocalPost, error)
	ListReviews(ctx context.Context, locationID, pageToken string) gmb.Result[*gmb.ReviewsPage]
	ListQuestions(ctx context.Context, locationID, pageToken string) gmb.Result[*gmb.QuestionsPage]
}

var _ API = (*gmb.Client)(nil)

const insightsBatchSize = 10

// Options tune the fan-out behaviour of an Engine.
type Options struct {
	// ReportLocationErrors fills the per-location failure lists. When off,
	// failing locations are dropped silently.
	ReportLocationErrors bool
	PostsPageSize        int
	PostInsights         bool
}

// DefaultOptions reports location errors and reads 30 posts per location page.
func DefaultOptions() Options {
	return Options{ReportLocationErrors: true, PostsPageSize: 30}
}

// Engine combines per-location Business Profile calls into the multi-location
// views a stream shows. It is safe for concurrent use.
type Engine struct {
	api     API
	options Options
	logger  logging.Logger
}

// New returns an Engine over api. A non-positive PostsPageSize falls back to
// the default.
func New(api API, options Options, logger logging.Logger) *Engine {
	if options.PostsPageSize <= 0 {
		options.PostsPageSize = DefaultOptions().PostsPageSize
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Engine{
		api:     api,
		options: options,
		logger:  logger.WithFields(logging.String("component", "aggregate")),
	}
}

// LocationError reports one location whose read failed.
type LocationError struct {
	LocationName   string `json:"locationName"`
	LocationNameID string `json:"locationNameId"`
	Code           string `json:"code"`
	HTTPStatus     int    `json:"httpStatus"`
	Error          string `json:"error"`
}

func newLocationError(loc storage.Location, ce *errors.ClassifiedError) LocationError {
	msg := ce.Detail
	if msg == "" {
		msg = ce.Message
	}
	return LocationError{
		LocationName:   loc.Name,
		LocationNameID: loc.NameID,
		Code:           ce.Code(),
		HTTPStatus:     ce.HTTPStatus,
		Error:          msg,
	}
}

// locationRef is the location identity attached to every merged entry.
type locationRef struct {
	LocationName    string `json:"locationName"`
	LocationNameID  string `json:"locationNameId"`
	LocationAddress string `json:"locationAddress"`
}

func refOf(loc storage.Location) locationRef {
	return locationRef{
		LocationName:    loc.Name,
		LocationNameID:  loc.NameID,
		LocationAddress: gmb.ShortAddress(loc.Address),
	}
}

// GetAccountsWithLocations lists every account and all of its locations.
// Accounts keep upstream order. Any failure fails the whole call.
func (e *Engine) GetAccountsWithLocations(ctx context.Context) ([]gmb.AccountWithLocations, error) {
	accounts, err := e.api.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]gmb.AccountWithLocations, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			page, err := e.api.ListLocations(gctx, account, true, "")
			if err != nil {
				return err
			}
			out[i] = gmb.AccountWithLocations{
				AccountName:   account.AccountName,
				AccountNameID: account.NameID,
				Locations:     page.Locations,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLocations lists the locations of accounts as one flat list in account order.
func (e *Engine) GetLocations(ctx context.Context, accounts []gmb.Account) ([]gmb.Location, error) {
	perAccount := make([][]gmb.Location, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			page, err := e.api.ListLocations(gctx, account, true, "")
			if err != nil {
				return err
			}
			perAccount[i] = page.Locations
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []gmb.Location
	for _, locs := range perAccount {
		out = append(out, locs...)
	}
	return out, nil
}

// fanOut runs fn for every location concurrently and waits for all of them.
// fn writes only to its own index.
func fanOut(locations []storage.Location, fn func(i int, loc storage.Location)) {
	var g errgroup.Group
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			fn(i, loc)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) logFailure(ctx context.Context, op string, loc storage.Location, ce *errors.ClassifiedError) {
	e.logger.WithContext(ctx).Warn("Location read failed",
		logging.String("operation", op),
		logging.String("location", loc.NameID),
		logging.String("category", string(ce.Category)),
		logging.Int("http_status", ce.HTTPStatus),
	)
}

// sortByCreated orders posts newest first. Equal timestamps keep merge order.
func sortByCreated(posts []LocationPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].created.After(posts[j].created)
	})
}
