package aggregate

import (
	"context"
	"time"

	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/storage"

	"golang.org/x/sync/errgroup"
)

// LocationPost is a post tagged with the location it was read from.
type LocationPost struct {
	gmb.LocalPost
	locationRef
	created time.Time
}

// PageToken is the next page cursor of one location.
type PageToken struct {
	LocationNameID string `json:"locationNameId"`
	NextPageToken  string `json:"nextPageToken"`
}

// PostsResult is one page of posts across locations, newest first.
type PostsResult struct {
	Posts      []LocationPost  `json:"posts"`
	Pagination []PageToken     `json:"pagination"`
	Errors     []LocationError `json:"errors,omitempty"`
}

// GetPostsAcrossLocations reads the next post page of every location and
// merges them newest first.
//
// tokens maps location ids to the cursor returned by the previous call. When
// tokens is non-empty, locations missing from it have no more pages and are
// skipped.
func (e *Engine) GetPostsAcrossLocations(ctx context.Context, locations []storage.Location, tokens map[string]string) *PostsResult {
	declared := len(tokens) > 0

	var pending []storage.Location
	for _, loc := range locations {
		if declared && tokens[loc.NameID] == "" {
			continue
		}
		pending = append(pending, loc)
	}

	results := make([]gmb.Result[*gmb.PostsPage], len(pending))
	fanOut(pending, func(i int, loc storage.Location) {
		results[i] = e.api.ListPosts(ctx, loc.NameID, e.options.PostsPageSize, tokens[loc.NameID])
	})

	out := &PostsResult{Posts: []LocationPost{}, Pagination: []PageToken{}}
	for i, res := range results {
		loc := pending[i]
		if !res.OK() {
			e.logFailure(ctx, gmb.OpListPosts, loc, res.Err)
			if e.options.ReportLocationErrors {
				out.Errors = append(out.Errors, newLocationError(loc, res.Err))
			}
			continue
		}

		page := res.Value
		if e.options.PostInsights {
			e.attachInsights(ctx, loc.NameID, page.LocalPosts)
		}
		for _, p := range page.LocalPosts {
			out.Posts = append(out.Posts, LocationPost{LocalPost: p, locationRef: refOf(loc), created: p.Created()})
		}
		if page.NextPageToken != "" {
			out.Pagination = append(out.Pagination, PageToken{LocationNameID: loc.NameID, NextPageToken: page.NextPageToken})
		}
	}

	sortByCreated(out.Posts)
	return out
}

// attachInsights fills Metrics on posts in batches. Failed batches leave their
// posts without metrics.
func (e *Engine) attachInsights(ctx context.Context, locationID string, posts []gmb.LocalPost) {
	index := make(map[string]int, len(posts))
	names := make([]string, 0, len(posts))
	for i, p := range posts {
		if p.Name == "" {
			continue
		}
		index[p.Name] = i
		names = append(names, p.Name)
	}

	for start := 0; start < len(names); start += insightsBatchSize {
		end := start + insightsBatchSize
		if end > len(names) {
			end = len(names)
		}
		insights, err := e.api.GetPostInsights(ctx, locationID, names[start:end])
		if err != nil {
			e.logger.WithContext(ctx).Debug("Post insights unavailable",
				logging.String("location", locationID), logging.Err(err))
			continue
		}
		for _, m := range insights.LocalPostMetrics {
			if i, ok := index[m.LocalPostName]; ok {
				metrics := m
				posts[i].Metrics = &metrics
			}
		}
	}
}

// CreatePostAcrossLocations creates post on every location concurrently.
// Every write runs to completion; the first failure is returned. Created
// posts keep the order of locationIDs.
func (e *Engine) CreatePostAcrossLocations(ctx context.Context, locationIDs []string, post *gmb.LocalPost) ([]*gmb.LocalPost, error) {
	created := make([]*gmb.LocalPost, len(locationIDs))
	var g errgroup.Group
	for i, id := range locationIDs {
		i, id := i, id
		g.Go(func() error {
			p, err := e.api.CreatePost(ctx, id, post)
			if err != nil {
				return err
			}
			created[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return created, nil
}
