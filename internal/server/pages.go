package server

import (
	"net/http"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/opaque"
)

// Load-more endpoints page through a single selected location after the
// starting aggregate calls.

type reviewsPageResponse struct {
	LocationNameID string           `json:"locationNameId"`
	Reviews        *gmb.ReviewsPage `json:"reviews"`
}

type questionsPageResponse struct {
	LocationNameID string             `json:"locationNameId"`
	Questions      *gmb.QuestionsPage `json:"questions"`
}

// selectedLocationID decodes the location path id and requires it to be
// selected on the session's stream.
func (h *Handlers) selectedLocationID(r *http.Request, s *session) (string, error) {
	id, err := pathID(r, "location")
	if err != nil {
		return "", err
	}
	if !isSelected(s.stream, id) {
		return "", errors.NotFoundError("location")
	}
	return id, nil
}

// GetLocationReviews returns the review page after nextPageToken.
func (h *Handlers) GetLocationReviews(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.selectedLocationID(r, s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res := s.api.ListReviews(s.ctx, id, r.URL.Query().Get("nextPageToken"))
	if !res.OK() {
		h.writeError(w, r, res.Err)
		return
	}
	for i := range res.Value.Reviews {
		res.Value.Reviews[i].Name = opaque.Encode(res.Value.Reviews[i].Name)
	}
	h.writeJSON(w, http.StatusOK, reviewsPageResponse{LocationNameID: opaque.Encode(id), Reviews: res.Value})
}

// GetLocationQuestions returns the question page after nextPageToken.
func (h *Handlers) GetLocationQuestions(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.selectedLocationID(r, s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res := s.api.ListQuestions(s.ctx, id, r.URL.Query().Get("nextPageToken"))
	if !res.OK() {
		h.writeError(w, r, res.Err)
		return
	}
	for i := range res.Value.Questions {
		res.Value.Questions[i].Name = opaque.Encode(res.Value.Questions[i].Name)
	}
	h.writeJSON(w, http.StatusOK, questionsPageResponse{LocationNameID: opaque.Encode(id), Questions: res.Value})
}

// GetPost returns one post of a selected location.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	name, err := h.ownedResource(r, s, "post", "localPosts")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	post, err := s.api.GetPost(s.ctx, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	post.Name = opaque.Encode(post.Name)
	h.writeJSON(w, http.StatusOK, post)
}
