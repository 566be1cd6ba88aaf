package server

import (
	"net/http"

	"gmb-connector/internal/middleware"

	"github.com/gorilla/mux"
)

// NewRouter configures all HTTP routes. Path variables are matched encoded so
// opaque ids may carry an escaped slash.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter().UseEncodedPath()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(h.logger))

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/auth/callback", h.HandleCallback).Methods(http.MethodGet)

	router.HandleFunc("/streams/{pid}", h.DeleteStream).Methods(http.MethodDelete)
	streams := router.PathPrefix("/streams/{pid}").Subrouter()
	streams.HandleFunc("/credential", h.RevokeCredential).Methods(http.MethodDelete)
	streams.HandleFunc("/accounts", h.GetAccounts).Methods(http.MethodGet)
	streams.HandleFunc("/locations", h.SelectLocations).Methods(http.MethodPut)
	streams.HandleFunc("/reviews", h.GetReviews).Methods(http.MethodGet)
	streams.HandleFunc("/locations/{location}/reviews", h.GetLocationReviews).Methods(http.MethodGet)
	streams.HandleFunc("/locations/{location}/questions", h.GetLocationQuestions).Methods(http.MethodGet)
	streams.HandleFunc("/reviews/{review}/reply", h.ReplyToReview).Methods(http.MethodPut)
	streams.HandleFunc("/reviews/{review}/reply", h.DeleteReviewReply).Methods(http.MethodDelete)
	streams.HandleFunc("/questions", h.GetQuestions).Methods(http.MethodGet)
	streams.HandleFunc("/questions/{question}/answer", h.AnswerQuestion).Methods(http.MethodPut)
	streams.HandleFunc("/questions/{question}/answer", h.DeleteAnswer).Methods(http.MethodDelete)
	streams.HandleFunc("/posts", h.GetPosts).Methods(http.MethodGet)
	streams.HandleFunc("/posts", h.CreatePost).Methods(http.MethodPost)
	streams.HandleFunc("/posts/{post}", h.GetPost).Methods(http.MethodGet)

	if h.config.AdminToken != "" {
		admin := router.PathPrefix("/admin").Subrouter()
		admin.Use(h.RequireAdmin)
		admin.HandleFunc("/error-logs", h.ListErrorLogs).Methods(http.MethodGet)
	}

	return router
}
