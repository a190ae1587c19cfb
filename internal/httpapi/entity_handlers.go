package httpapi

import (
	"net/http"
	"strings"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/identity"
)

type registerEntityRequest struct {
	Name     string `json:"name"`
	TaxID    string `json:"tax_id"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (a *API) registerEntity(w http.ResponseWriter, r *http.Request) {
	var req registerEntityRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}

	e, err := a.ops.RegisterEntity(r.Context(), req.Name, req.TaxID, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/entity/"+e.TaxID)
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) getEntity(w http.ResponseWriter, r *http.Request) {
	e, err := a.ops.GetEntity(r.Context(), tokenFromRequest(r), r.PathValue("tax_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) currentEntity(w http.ResponseWriter, r *http.Request) {
	e, err := a.ops.CurrentEntity(r.Context(), tokenFromRequest(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) listEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, ok := parseCategory(q.Get("category"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "category must be INDIVIDUAL or ORGANIZATION")
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), identity.DefaultListLimit, 1, identity.MaxListLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	list, err := a.ops.ListEntities(r.Context(), tokenFromRequest(r), category, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Entity]{Items: list})
}

func (a *API) setPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := a.ops.SetCredential(r.Context(), tokenFromRequest(r), req.Password); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseCategory accepts the category names and the short pf/pj forms.
func parseCategory(raw string) (domain.Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", true
	case "individual", "pf":
		return domain.CategoryIndividual, true
	case "organization", "pj":
		return domain.CategoryOrganization, true
	}
	return "", false
}
