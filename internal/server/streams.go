package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"gmb-connector/internal/aggregate"
	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/opaque"
	"gmb-connector/internal/storage"

	"github.com/gorilla/mux"
)

// Every upstream resource name leaves the service opaque-encoded and comes
// back the same way.

func (h *Handlers) GetAccounts(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	accounts, err := s.engine.GetAccountsWithLocations(s.ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for i := range accounts {
		accounts[i].AccountNameID = opaque.Encode(accounts[i].AccountNameID)
		for j := range accounts[i].Locations {
			accounts[i].Locations[j].NameID = opaque.Encode(accounts[i].Locations[j].NameID)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

type selectedLocation struct {
	NameID  string `json:"locationNameId"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type selectLocationsRequest struct {
	Locations []selectedLocation `json:"locations"`
}

// SelectLocations replaces the stream's selected locations.
func (h *Handlers) SelectLocations(w http.ResponseWriter, r *http.Request) {
	var req selectLocationsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	locations := make([]storage.Location, 0, len(req.Locations))
	seen := make(map[string]bool, len(req.Locations))
	for _, l := range req.Locations {
		id, err := opaque.Decode(l.NameID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		locations = append(locations, storage.Location{NameID: id, Name: l.Name, Address: l.Address})
	}

	pid := mux.Vars(r)["pid"]
	if err := h.store.SelectLocations(r.Context(), pid, locations); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			h.writeError(w, r, errors.NotFoundError("stream"))
			return
		}
		h.writeError(w, r, errors.InternalError("failed to select locations", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetReviews(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res := s.engine.GetStartingReviews(s.ctx, s.stream.Locations)
	for i := range res.Reviews {
		entry := &res.Reviews[i]
		entry.LocationNameID = opaque.Encode(entry.LocationNameID)
		for j := range entry.Reviews.Reviews {
			entry.Reviews.Reviews[j].Name = opaque.Encode(entry.Reviews.Reviews[j].Name)
		}
	}
	encodeLocationErrors(res.LocationsWithErrors)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetQuestions(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res := s.engine.GetStartingQuestions(s.ctx, s.stream.Locations)
	for i := range res.Questions {
		entry := &res.Questions[i]
		entry.LocationNameID = opaque.Encode(entry.LocationNameID)
		for j := range entry.Questions.Questions {
			entry.Questions.Questions[j].Name = opaque.Encode(entry.Questions.Questions[j].Name)
		}
	}
	encodeLocationErrors(res.LocationsWithErrors)
	h.writeJSON(w, http.StatusOK, res)
}

type postsResponse struct {
	Posts []aggregate.LocationPost `json:"posts"`
	// Pagination is the cursor for the next call; empty once every location
	// is exhausted.
	Pagination string                    `json:"pagination,omitempty"`
	Errors     []aggregate.LocationError `json:"errors,omitempty"`
}

// GetPosts returns the next page of posts across the selected locations. The
// pagination query parameter is the cursor returned by the previous call.
func (h *Handlers) GetPosts(w http.ResponseWriter, r *http.Request) {
	tokens, err := decodeCursor(r.URL.Query().Get("pagination"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res := s.engine.GetPostsAcrossLocations(s.ctx, s.stream.Locations, tokens)
	for i := range res.Posts {
		res.Posts[i].Name = opaque.Encode(res.Posts[i].Name)
		res.Posts[i].LocationNameID = opaque.Encode(res.Posts[i].LocationNameID)
	}
	encodeLocationErrors(res.Errors)

	h.writeJSON(w, http.StatusOK, postsResponse{
		Posts:      res.Posts,
		Pagination: encodeCursor(res.Pagination),
		Errors:     res.Errors,
	})
}

type createPostRequest struct {
	LocationIDs []string      `json:"locationIds"`
	Post        gmb.LocalPost `json:"post"`
}

// CreatePost publishes one post on several selected locations.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.LocationIDs) == 0 {
		h.writeError(w, r, errors.ValidationError("at least one location is required"))
		return
	}
	ids, err := opaque.DecodeAll(req.LocationIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, id := range ids {
		if !isSelected(s.stream, id) {
			h.writeError(w, r, errors.ValidationError("location is not selected for this stream"))
			return
		}
	}

	created, err := s.engine.CreatePostAcrossLocations(s.ctx, ids, &req.Post)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, p := range created {
		p.Name = opaque.Encode(p.Name)
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"posts": created})
}

func encodeLocationErrors(errs []aggregate.LocationError) {
	for i := range errs {
		errs[i].LocationNameID = opaque.Encode(errs[i].LocationNameID)
	}
}

// encodeCursor packs the per-location page tokens into one opaque string.
func encodeCursor(pages []aggregate.PageToken) string {
	if len(pages) == 0 {
		return ""
	}
	tokens := make(map[string]string, len(pages))
	for _, p := range pages {
		tokens[p.LocationNameID] = p.NextPageToken
	}
	data, _ := json.Marshal(tokens)
	return opaque.Encode(string(data))
}

func decodeCursor(cursor string) (map[string]string, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := opaque.Decode(cursor)
	if err != nil {
		return nil, err
	}
	var tokens map[string]string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, errors.ValidationError("malformed pagination cursor")
	}
	return tokens, nil
}

func isSelected(stream *storage.Stream, locationID string) bool {
	for _, l := range stream.Locations {
		if l.NameID == locationID {
			return true
		}
	}
	return false
}

// ownsResource reports whether name lives under one of the stream's selected
// locations. Q&A names drop the account prefix, so both forms match.
func ownsResource(stream *storage.Stream, name, collection string) bool {
	i := strings.Index(name, "/"+collection+"/")
	if i <= 0 {
		return false
	}
	parent := name[:i]
	for _, l := range stream.Locations {
		if l.NameID == parent || strings.HasSuffix(l.NameID, "/"+parent) {
			return true
		}
	}
	return false
}
