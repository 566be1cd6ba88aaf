package gmb

import (
	"context"
	"net/http"
	"strings"

	"gmb-connector/internal/common/errors"
)

// Upstream fixes the review page size at 3.
const reviewsPageSize = 3

// ListReviews reads one page of reviews for the location.
func (c *Client) ListReviews(ctx context.Context, locationID, pageToken string) Result[*ReviewsPage] {
	page := &ReviewsPage{}
	if err := c.call(ctx, request{
		op:     OpListReviews,
		method: http.MethodGet,
		base:   c.endpoints.V4,
		path:   locationID + "/reviews",
		query:  pageQuery(reviewsPageSize, pageToken),
	}, page); err != nil {
		return failed[*ReviewsPage](locationID, err)
	}
	return ok(locationID, page)
}

// ReplyToReview creates the review reply or replaces the existing one.
func (c *Client) ReplyToReview(ctx context.Context, reviewName, comment string) (*ReviewReply, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, c.classify(ctx, OpReplyToReview, errors.ValidationError("reply comment is required"))
	}
	reply := &ReviewReply{}
	if err := c.call(ctx, request{
		op:     OpReplyToReview,
		method: http.MethodPut,
		base:   c.endpoints.V4,
		path:   reviewName + "/reply",
		body:   map[string]string{"comment": comment},
	}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) DeleteReviewReply(ctx context.Context, reviewName string) error {
	if err := c.call(ctx, request{
		op:     OpDeleteReviewReply,
		method: http.MethodDelete,
		base:   c.endpoints.V4,
		path:   reviewName + "/reply",
	}, nil); err != nil {
		return err
	}
	return nil
}
