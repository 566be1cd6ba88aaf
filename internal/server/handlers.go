package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"

	"gmb-connector/internal/aggregate"
	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/oauth2"
	"gmb-connector/internal/opaque"
	"gmb-connector/internal/storage"

	"github.com/gorilla/mux"
)

// Sessions is the token lifecycle surface the handlers drive.
// *oauth2.Manager satisfies it.
type Sessions interface {
	ExchangeCode(ctx context.Context, code string) (*oauth2.RawTokenSet, error)
	VerifyIdentity(ctx context.Context, idToken string) (*oauth2.Identity, error)
	SaveTokens(ctx context.Context, tokens *oauth2.RawTokenSet, identity *oauth2.Identity, ref storage.StreamReference) (*storage.Credential, error)
	Revoke(ctx context.Context, credential *storage.Credential) error
	DisconnectStream(ctx context.Context, pid string) error
}

var _ Sessions = (*oauth2.Manager)(nil)

// API is everything the handlers call on Business Profile.
type API interface {
	aggregate.API
	GetPost(ctx context.Context, postName string) (*gmb.LocalPost, error)
	ReplyToReview(ctx context.Context, reviewName, comment string) (*gmb.ReviewReply, error)
	DeleteReviewReply(ctx context.Context, reviewName string) error
	ReplyToQuestion(ctx context.Context, questionName, text string) (*gmb.Answer, error)
	DeleteQuestionReply(ctx context.Context, questionName string) error
}

var _ API = (*gmb.Client)(nil)

// ClientFactory builds an API client acting as credential for the stream owner uid.
type ClientFactory interface {
	NewClient(ctx context.Context, credential *storage.Credential, uid string) (API, error)
}

// GMBFactory builds *gmb.Client values on top of the manager's rotating
// HTTP clients. Options are shared by every client, typically the limiter,
// telemetry sink and classifier.
type GMBFactory struct {
	Manager *oauth2.Manager
	Options []gmb.Option
}

func (f *GMBFactory) NewClient(ctx context.Context, credential *storage.Credential, uid string) (API, error) {
	handle, err := f.Manager.CreateClient(ctx, credential)
	if err != nil {
		return nil, err
	}
	return gmb.New(gmb.Handle{
		HTTPClient:     handle.HTTPClient(),
		ExternalUserID: handle.ExternalUserID(),
		UID:            uid,
	}, f.Options...), nil
}

// Config carries the handler settings that come from the process config.
type Config struct {
	Engine     aggregate.Options
	AdminToken string
}

// Handlers implements the HTTP surface.
type Handlers struct {
	store    storage.Store
	sessions Sessions
	clients  ClientFactory
	config   Config
	logger   logging.Logger
}

// NewHandlers wires the handlers to storage, the token lifecycle and the
// Business Profile client factory.
func NewHandlers(store storage.Store, sessions Sessions, clients ClientFactory, cfg Config, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		store:    store,
		sessions: sessions,
		clients:  clients,
		config:   cfg,
		logger:   logger.WithFields(logging.String("component", "server")),
	}
}

// session is a resolved tenant context for one request.
type session struct {
	ctx    context.Context
	stream *storage.Stream
	api    API
	engine *aggregate.Engine
}

// session resolves the stream in the path, its credential and an API client
// acting as that credential.
func (h *Handlers) session(r *http.Request) (*session, error) {
	pid := mux.Vars(r)["pid"]
	ctx := logging.ContextWith(r.Context(), logging.StreamIDKey, pid)

	stream, err := h.store.GetStream(ctx, pid)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFoundError("stream")
	}
	if err != nil {
		return nil, errors.InternalError("failed to load stream", err)
	}
	if stream.ExternalUserID == "" {
		return nil, errors.InvalidOrRevokedSession(errors.CodeInvalidToken, errors.MsgRevokedOrInvalid, http.StatusUnauthorized, nil)
	}
	ctx = logging.ContextWith(ctx, logging.ExternalUserIDKey, stream.ExternalUserID)

	credential, err := h.store.LoadCredentialWithToken(ctx, stream.ExternalUserID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.InvalidOrRevokedSession(errors.CodeInvalidToken, errors.MsgRevokedOrInvalid, http.StatusUnauthorized, nil)
	}
	if err != nil {
		return nil, errors.InternalError("failed to load credential", err)
	}

	api, err := h.clients.NewClient(ctx, credential, stream.UID)
	if err != nil {
		return nil, err
	}
	return &session{
		ctx:    ctx,
		stream: stream,
		api:    api,
		engine: aggregate.New(api, h.config.Engine, h.logger),
	}, nil
}

// pathID decodes the opaque resource name in path variable name.
func pathID(r *http.Request, name string) (string, error) {
	raw, err := url.PathUnescape(mux.Vars(r)[name])
	if err != nil {
		return "", errors.ValidationError("malformed " + name + " identifier")
	}
	return opaque.Decode(raw)
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid request body")
	}
	return nil
}

type errorResponse struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	FormattedError string `json:"formattedError"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// writeError renders err with the status its classification carries.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Code: string(errors.ErrTypeInternal), Message: "Internal server error"}

	var appErr *errors.AppError
	if ce, ok := errors.AsClassified(err); ok {
		if ce.HTTPStatus != 0 {
			status = ce.HTTPStatus
		}
		resp = errorResponse{Code: ce.Code(), Message: ce.Message, FormattedError: ce.Formatted()}
	} else if stderrors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		code := appErr.Code
		if code == "" {
			code = string(appErr.Type)
		}
		resp = errorResponse{Code: code, Message: appErr.Message}
	}
	if resp.FormattedError == "" {
		resp.FormattedError = resp.Message
	}

	log := h.logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", err, logging.Int("status", status))
	} else {
		log.Warn("Request rejected", logging.Int("status", status), logging.Err(err))
	}
	h.writeJSON(w, status, resp)
}
