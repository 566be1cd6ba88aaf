package gmb

import (
	"context"
	"net/http"
	"strings"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/ratelimit"
)

// The Q&A API returns at most 10 answers per question.
const answersPerQuestion = "10"

// ListQuestions reads one page of questions for the location on the Q&A API,
// which addresses locations without their account prefix.
func (c *Client) ListQuestions(ctx context.Context, locationID, pageToken string) Result[*QuestionsPage] {
	query := pageQuery(0, pageToken)
	query.Set("answersPerQuestion", answersPerQuestion)

	page := &QuestionsPage{}
	if err := c.call(ctx, request{
		op:     OpListQuestions,
		method: http.MethodGet,
		base:   c.endpoints.QandA,
		path:   qandaLocation(locationID) + "/questions",
		query:  query,
		class:  ratelimit.ClassQandA,
	}, page); err != nil {
		return failed[*QuestionsPage](locationID, err)
	}
	return ok(locationID, page)
}

// ReplyToQuestion upserts the caller's answer to questionName.
func (c *Client) ReplyToQuestion(ctx context.Context, questionName, text string) (*Answer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, c.classify(ctx, OpReplyToQuestion, errors.ValidationError("answer text is required"))
	}
	answer := &Answer{}
	if err := c.call(ctx, request{
		op:     OpReplyToQuestion,
		method: http.MethodPost,
		base:   c.endpoints.QandA,
		path:   questionName + "/answers:upsert",
		body:   map[string]interface{}{"answer": map[string]string{"text": text}},
		class:  ratelimit.ClassQandA,
	}, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

func (c *Client) DeleteQuestionReply(ctx context.Context, questionName string) error {
	if err := c.call(ctx, request{
		op:     OpDeleteQuestionReply,
		method: http.MethodDelete,
		base:   c.endpoints.QandA,
		path:   questionName + "/answers:delete",
		class:  ratelimit.ClassQandA,
	}, nil); err != nil {
		return err
	}
	return nil
}

// qandaLocation strips the account prefix from "accounts/1/locations/2".
func qandaLocation(locationID string) string {
	if i := strings.Index(locationID, "locations/"); i >= 0 {
		return locationID[i:]
	}
	return locationID
}
