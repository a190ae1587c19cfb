package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/ledger"
)

type createChargeRequest struct {
	Debtor        domain.EntityRef `json:"debtor"`
	CreditorTaxID string           `json:"creditor_tax_id"`
	Amount        *domain.Amount   `json:"amount"`
}

type settleChargeRequest struct {
	ID            string `json:"id"`
	CreditorTaxID string `json:"creditor_tax_id"`
}

func (a *API) createCharge(w http.ResponseWriter, r *http.Request) {
	var req createChargeRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, http.StatusBadRequest, "amount is required")
		return
	}

	c, err := a.ops.CreateCharge(r.Context(), tokenFromRequest(r), req.Debtor, req.CreditorTaxID, *req.Amount)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/charge/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) getCharge(w http.ResponseWriter, r *http.Request) {
	c, err := a.ops.GetCharge(r.Context(), tokenFromRequest(r), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) filterCharges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f domain.ChargeFilter
	if v := strings.TrimSpace(q.Get("debtor_tax_id")); v != "" {
		f.DebtorTaxID = &v
	}
	if v := strings.TrimSpace(q.Get("creditor_tax_id")); v != "" {
		f.CreditorTaxID = &v
	}
	if v := strings.TrimSpace(q.Get("is_active")); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "is_active must be a boolean")
			return
		}
		f.IsActive = &active
	}

	list, err := a.ops.FilterCharges(r.Context(), tokenFromRequest(r), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[ledger.ChargeView]{Items: list})
}

func (a *API) settleCharge(w http.ResponseWriter, r *http.Request) {
	var req settleChargeRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.CreditorTaxID) == "" {
		writeError(w, r, http.StatusBadRequest, "id and creditor_tax_id are required")
		return
	}

	c, err := a.ops.SettleCharge(r.Context(), tokenFromRequest(r), strings.TrimSpace(req.ID), req.CreditorTaxID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, fmt.Errorf("limit must be between %d and %d", min, max)
	}
	return val, nil
}

func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// badRequest renders a decode failure. Typed amount errors keep their kind.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	if domain.KindOf(err) != domain.KindUnknown {
		handleError(w, r, err)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, err.Error())
}
