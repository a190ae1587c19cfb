// Package audit records security-relevant ledger events as JSON lines on the
// shared obs logger.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"xyzcredito.org/internal/auth"
	"xyzcredito.org/internal/obs"
)

// Event names an audited action.
type Event string

const (
	EntityRegistered  Event = "entity.registered"
	CredentialChanged Event = "entity.credential_changed"
	Login             Event = "auth.login"
	Logout            Event = "auth.logout"
	ChargeCreated     Event = "charge.created"
	ChargeSettled     Event = "charge.settled"
)

// Entry is one audit line.
type Entry struct {
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	Event     Event          `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	Actor     string         `json:"actor_tax_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Keys whose values never reach the log.
var redactedKeys = map[string]struct{}{
	"password":   {},
	"credential": {},
	"token":      {},
	"secret":     {},
}

type ctxKey struct{}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// LogEvent writes one entry. The actor is the authenticated identity carried
// by ctx, if any.
func LogEvent(ctx context.Context, event Event, fields map[string]any) error {
	if strings.TrimSpace(string(event)) == "" {
		return errors.New("event name is required")
	}
	entry := Entry{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Type:      "audit",
		Event:     event,
		RequestID: requestID(ctx),
		Fields:    make(map[string]any, len(fields)),
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		entry.Actor = id.TaxID
	}
	for k, v := range fields {
		if _, secret := redactedKeys[strings.ToLower(k)]; secret {
			v = "[redacted]"
		}
		entry.Fields[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
