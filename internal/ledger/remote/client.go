// Package remote is a Go client for the charge ledger HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/ledger"
)

// StatusError is returned for failures the server did not classify.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// Client calls the API with an optional bearer token.
type Client struct {
	base  string
	http  *http.Client
	token string
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New constructs a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c authenticating as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Session is the login result.
type Session struct {
	Token string `json:"token"`
	TaxID string `json:"tax_id"`
	Name  string `json:"name"`
}

func (c *Client) Register(ctx context.Context, name, taxID, password string) (domain.Entity, error) {
	var e domain.Entity
	err := c.call(ctx, http.MethodPost, "/api/v1/entity", nil, map[string]string{
		"name": name, "tax_id": taxID, "password": password,
	}, &e)
	return e, err
}

// Login authenticates and returns a client bound to the new token.
func (c *Client) Login(ctx context.Context, taxID, password string) (*Client, Session, error) {
	var s Session
	err := c.call(ctx, http.MethodPost, "/api/v1/authenticate", nil, map[string]string{
		"tax_id": taxID, "password": password,
	}, &s)
	if err != nil {
		return nil, Session{}, err
	}
	return c.WithToken(s.Token), s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/authenticate", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (domain.Entity, error) {
	var e domain.Entity
	err := c.call(ctx, http.MethodGet, "/api/v1/entity-logged", nil, nil, &e)
	return e, err
}

func (c *Client) CreateCharge(ctx context.Context, debtor domain.EntityRef, creditorTaxID string, amount domain.Amount) (domain.Charge, error) {
	var ch domain.Charge
	err := c.call(ctx, http.MethodPost, "/api/v1/charge", nil, map[string]any{
		"debtor":          debtor,
		"creditor_tax_id": creditorTaxID,
		"amount":          amount,
	}, &ch)
	return ch, err
}

func (c *Client) GetCharge(ctx context.Context, id string) (domain.Charge, error) {
	var ch domain.Charge
	err := c.call(ctx, http.MethodGet, "/api/v1/charge/"+url.PathEscape(id), nil, nil, &ch)
	return ch, err
}

func (c *Client) FilterCharges(ctx context.Context, f domain.ChargeFilter) ([]ledger.ChargeView, error) {
	q := url.Values{}
	if f.DebtorTaxID != nil {
		q.Set("debtor_tax_id", *f.DebtorTaxID)
	}
	if f.CreditorTaxID != nil {
		q.Set("creditor_tax_id", *f.CreditorTaxID)
	}
	if f.IsActive != nil {
		q.Set("is_active", strconv.FormatBool(*f.IsActive))
	}
	var out struct {
		Items []ledger.ChargeView `json:"items"`
	}
	err := c.call(ctx, http.MethodGet, "/api/v1/charge", q, nil, &out)
	return out.Items, err
}

func (c *Client) SettleCharge(ctx context.Context, id, creditorTaxID string) (domain.Charge, error) {
	var ch domain.Charge
	err := c.call(ctx, http.MethodPost, "/api/v1/charge/payment", nil, map[string]string{
		"id": id, "creditor_tax_id": creditorTaxID,
	}, &ch)
	return ch, err
}

func (c *Client) call(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &payload); err != nil {
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return mapError(resp.StatusCode, payload.Code, payload.Error)
}

// mapError turns a server error body back into a domain error when possible.
func mapError(status int, code, msg string) error {
	if kind, ok := domain.ParseKind(code); ok {
		if kind == domain.KindNotAuthorized {
			msg = ""
		}
		return domain.E(kind, msg)
	}
	return &StatusError{Code: status, Message: msg}
}

// IsStatus reports whether err is an unclassified failure with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
