package server

import (
	stderrors "errors"
	"net/http"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/storage"

	"github.com/gorilla/mux"
)

type callbackResponse struct {
	PID                 string `json:"pid"`
	ExternalUserID      string `json:"externalUserId"`
	ExternalDisplayName string `json:"externalDisplayName"`
}

// HandleCallback completes a Google login: it exchanges the code, verifies
// the identity behind it and links the credential to the stream.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := storage.StreamReference{PID: q.Get("pid"), UID: q.Get("uid")}
	if ref.PID == "" {
		h.writeError(w, r, errors.ValidationError("pid is required"))
		return
	}
	ctx := logging.ContextWith(r.Context(), logging.StreamIDKey, ref.PID)

	tokens, err := h.sessions.ExchangeCode(ctx, q.Get("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	identity, err := h.sessions.VerifyIdentity(ctx, tokens.IDToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	credential, err := h.sessions.SaveTokens(ctx, tokens, identity, ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, callbackResponse{
		PID:                 ref.PID,
		ExternalUserID:      credential.ExternalUserID,
		ExternalDisplayName: credential.ExternalDisplayName,
	})
}

// RevokeCredential revokes the credential the stream uses. Streams without a
// credential succeed without doing anything.
func (h *Handlers) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	pid := mux.Vars(r)["pid"]
	ctx := logging.ContextWith(r.Context(), logging.StreamIDKey, pid)

	stream, err := h.store.GetStream(ctx, pid)
	if stderrors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, errors.NotFoundError("stream"))
		return
	}
	if err != nil {
		h.writeError(w, r, errors.InternalError("failed to load stream", err))
		return
	}
	if stream.ExternalUserID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	credential, err := h.store.LoadCredentialWithToken(ctx, stream.ExternalUserID)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		// Dangling reference.
		if err := h.store.UnlinkStream(ctx, pid); err != nil {
			h.writeError(w, r, errors.InternalError("failed to unlink stream", err))
			return
		}
	case err != nil:
		h.writeError(w, r, errors.InternalError("failed to load credential", err))
		return
	default:
		if err := h.sessions.Revoke(ctx, credential); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteStream removes the stream. The last stream to go takes its
// credential with it.
func (h *Handlers) DeleteStream(w http.ResponseWriter, r *http.Request) {
	pid := mux.Vars(r)["pid"]
	ctx := logging.ContextWith(r.Context(), logging.StreamIDKey, pid)

	if err := h.sessions.DisconnectStream(ctx, pid); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
