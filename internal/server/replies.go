package server

import (
	"net/http"
	"strings"

	"gmb-connector/internal/common/errors"
)

type replyRequest struct {
	Comment string `json:"comment"`
}

type answerRequest struct {
	Text string `json:"text"`
}

// ownedResource decodes the path id and checks it belongs to the session's stream.
func (h *Handlers) ownedResource(r *http.Request, s *session, varName, collection string) (string, error) {
	name, err := pathID(r, varName)
	if err != nil {
		return "", err
	}
	if !ownsResource(s.stream, name, collection) {
		return "", errors.NotFoundError(varName)
	}
	return name, nil
}

func (h *Handlers) ReplyToReview(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		h.writeError(w, r, errors.ValidationError("comment is required"))
		return
	}
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.ownedResource(r, s, "review", "reviews")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reply, err := s.api.ReplyToReview(s.ctx, review, req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

func (h *Handlers) DeleteReviewReply(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.ownedResource(r, s, "review", "reviews")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.api.DeleteReviewReply(s.ctx, review); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, r, errors.ValidationError("text is required"))
		return
	}
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	question, err := h.ownedResource(r, s, "question", "questions")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	answer, err := s.api.ReplyToQuestion(s.ctx, question, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, answer)
}

func (h *Handlers) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	question, err := h.ownedResource(r, s, "question", "questions")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.api.DeleteQuestionReply(s.ctx, question); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
