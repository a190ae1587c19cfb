package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/ledger"
	"xyzcredito.org/internal/obs"
	"xyzcredito.org/internal/service"
)

const serviceName = "xyzcredito-api"

// Operations is the facade the HTTP layer drives. *service.Service satisfies it.
type Operations interface {
	Ping(ctx context.Context) error
	RegisterEntity(ctx context.Context, name, taxID, credential string) (domain.Entity, error)
	Login(ctx context.Context, taxID, credential string) (service.Session, error)
	Logout(ctx context.Context, token string) error
	CurrentEntity(ctx context.Context, token string) (domain.Entity, error)
	GetEntity(ctx context.Context, token, taxID string) (domain.Entity, error)
	ListEntities(ctx context.Context, token string, category domain.Category, limit int) ([]domain.Entity, error)
	SetCredential(ctx context.Context, token, credential string) error
	CreateCharge(ctx context.Context, token string, debtor domain.EntityRef, creditorTaxID string, amount domain.Amount) (domain.Charge, error)
	GetCharge(ctx context.Context, token, id string) (domain.Charge, error)
	FilterCharges(ctx context.Context, token string, f domain.ChargeFilter) ([]ledger.ChargeView, error)
	SettleCharge(ctx context.Context, token, id, creditorTaxID string) (domain.Charge, error)
}

// Options tunes the middleware chain.
type Options struct {
	Version        string
	RateBurst      int
	RatePerSec     float64
	MaxBodyBytes   int64
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; empty trusts nobody.
	TrustedProxies []netip.Prefix
}

// API: HTTP слой.
type API struct {
	mux  *http.ServeMux
	ops  Operations
	opts Options
}

// New builds the router over ops.
func New(ops Operations, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{
		mux:  http.NewServeMux(),
		ops:  ops,
		opts: opts,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /api/v1/entity", a.registerEntity)
	a.mux.HandleFunc("GET /api/v1/entity", a.listEntities)
	a.mux.HandleFunc("GET /api/v1/entity/{tax_id}", a.getEntity)
	a.mux.HandleFunc("GET /api/v1/entity-logged", a.currentEntity)
	a.mux.HandleFunc("PUT /api/v1/entity-logged/password", a.setPassword)

	a.mux.HandleFunc("POST /api/v1/authenticate", a.login)
	a.mux.HandleFunc("DELETE /api/v1/authenticate", a.logout)

	a.mux.HandleFunc("POST /api/v1/charge", a.createCharge)
	a.mux.HandleFunc("GET /api/v1/charge", a.filterCharges)
	a.mux.HandleFunc("GET /api/v1/charge/{id}", a.getCharge)
	a.mux.HandleFunc("POST /api/v1/charge/payment", a.settleCharge)

	return a
}

// Handler returns the router wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	h = CORS(h, a.opts.AllowedOrigins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RealIP(h, a.opts.TrustedProxies...)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ops.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.opts.Version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}
