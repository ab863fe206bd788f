package handler

import (
	"net/http"

	"github.com/scholarship-portal/internal/application/account"
	"github.com/scholarship-portal/internal/domain"
)

// SessionHandler handles login and one-time link redemption.
type SessionHandler struct {
	svc account.Service
}

func NewSessionHandler(svc account.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Login returns a token for a known account, or 202 once a sign-in link has been emailed.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	if res.LinkSent {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.VerifyLink(r.Context(), q.Get("email"), q.Get("code"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
