package httpapi

import (
	"net/http"
	"strings"
)

type authenticateRequest struct {
	TaxID     string `json:"tax_id"`
	Password  string `json:"password"`
	SetCookie bool   `json:"set_cookie"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.TaxID) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "tax_id and password are required")
		return
	}

	sess, err := a.ops.Login(r.Context(), req.TaxID, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if req.SetCookie {
		http.SetCookie(w, sessionCookie(sess.Token))
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.ops.Logout(r.Context(), tokenFromRequest(r)); err != nil {
		handleError(w, r, err)
		return
	}
	if _, err := r.Cookie(apiKeyParam); err == nil {
		http.SetCookie(w, expiredSessionCookie())
	}
	w.WriteHeader(http.StatusNoContent)
}
