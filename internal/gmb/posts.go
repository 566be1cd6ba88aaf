package gmb

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"gmb-connector/internal/common/errors"
)

// DefaultPostsPageSize applies when ListPosts is given a non-positive size.
const DefaultPostsPageSize = 10

// ListPosts reads one page of a location's local posts.
func (c *Client) ListPosts(ctx context.Context, locationID string, pageSize int, pageToken string) Result[*PostsPage] {
	if pageSize <= 0 {
		pageSize = DefaultPostsPageSize
	}
	page := &PostsPage{}
	if err := c.call(ctx, request{
		op:     OpListPosts,
		method: http.MethodGet,
		base:   c.endpoints.V4,
		path:   locationID + "/localPosts",
		query:  pageQuery(pageSize, pageToken),
	}, page); err != nil {
		return failed[*PostsPage](locationID, err)
	}
	return ok(locationID, page)
}

// GetPost reads a single local post by its resource name.
func (c *Client) GetPost(ctx context.Context, postName string) (*LocalPost, error) {
	post := &LocalPost{}
	if err := c.call(ctx, request{
		op:     OpGetPost,
		method: http.MethodGet,
		base:   c.endpoints.V4,
		path:   postName,
	}, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePost publishes post on the location. An empty summary fails locally
// with invalidDataInput.
func (c *Client) CreatePost(ctx context.Context, locationID string, post *LocalPost) (*LocalPost, error) {
	if post == nil || post.Summary == "" {
		return nil, c.classify(ctx, OpCreatePost, errors.ValidationError("post summary is required"))
	}
	created := &LocalPost{}
	if err := c.call(ctx, request{
		op:     OpCreatePost,
		method: http.MethodPost,
		base:   c.endpoints.V4,
		path:   locationID + "/localPosts",
		body:   post,
	}, created); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdatePost patches the fields named in updateMask, a comma separated list.
func (c *Client) UpdatePost(ctx context.Context, postName string, post *LocalPost, updateMask string) (*LocalPost, error) {
	if post == nil || updateMask == "" {
		return nil, c.classify(ctx, OpUpdatePost, errors.ValidationError("post and update mask are required"))
	}
	updated := &LocalPost{}
	if err := c.call(ctx, request{
		op:     OpUpdatePost,
		method: http.MethodPatch,
		base:   c.endpoints.V4,
		path:   postName,
		query:  url.Values{"updateMask": {updateMask}},
		body:   post,
	}, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

type metricRequest struct {
	Metric  string   `json:"metric"`
	Options []string `json:"options"`
}

type insightsRequest struct {
	LocalPostNames []string `json:"localPostNames"`
	BasicRequest   struct {
		MetricRequests []metricRequest `json:"metricRequests"`
		TimeRange      struct {
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		} `json:"timeRange"`
	} `json:"basicRequest"`
}

var insightMetrics = []string{"ALL", "LOCAL_POST_VIEWS_SEARCH", "LOCAL_POST_ACTIONS_CALL_TO_ACTION"}

// GetPostInsights reports aggregated metrics for postNames over the last year.
func (c *Client) GetPostInsights(ctx context.Context, locationID string, postNames []string) (*PostInsights, error) {
	if len(postNames) == 0 {
		return &PostInsights{}, nil
	}

	var body insightsRequest
	body.LocalPostNames = postNames
	for _, m := range insightMetrics {
		body.BasicRequest.MetricRequests = append(body.BasicRequest.MetricRequests,
			metricRequest{Metric: m, Options: []string{"AGGREGATED_TOTAL"}})
	}
	end := c.now().UTC()
	body.BasicRequest.TimeRange.StartTime = end.AddDate(-1, 0, 0).Format(time.RFC3339)
	body.BasicRequest.TimeRange.EndTime = end.Format(time.RFC3339)

	insights := &PostInsights{}
	if err := c.call(ctx, request{
		op:     OpPostInsights,
		method: http.MethodPost,
		base:   c.endpoints.V4,
		path:   locationID + "/localPosts:reportInsights",
		body:   body,
	}, insights); err != nil {
		return nil, err
	}
	return insights, nil
}
