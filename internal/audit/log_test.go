package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"xyzcredito.org/internal/auth"
	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/obs"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	flags := logger.Flags()
	var buf bytes.Buffer
	logger.SetFlags(0)
	logger.SetOutput(&buf)
	t.Cleanup(func() {
		logger.SetOutput(original)
		logger.SetFlags(flags)
	})
	return &buf
}

func TestLogEventCarriesActorAndRequest(t *testing.T) {
	buf := capture(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithIdentity(ctx, domain.Identity{TaxID: "80962607401", Name: "root"})

	if err := LogEvent(ctx, ChargeSettled, map[string]any{"charge_id": "c-1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v (%q)", err, buf.String())
	}
	if entry.Type != "audit" || entry.Event != ChargeSettled {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.RequestID != "req-123" || entry.Actor != "80962607401" {
		t.Fatalf("unexpected context fields: %+v", entry)
	}
	if entry.Fields["charge_id"] != "c-1" {
		t.Fatalf("fields missing or incorrect: %v", entry.Fields)
	}
}

func TestLogEventRedactsSecrets(t *testing.T) {
	buf := capture(t)

	err := LogEvent(context.Background(), Login, map[string]any{
		"tax_id":   "80962607401",
		"Password": "123",
		"token":    "id.secret",
	})
	if err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	line := buf.String()
	if strings.Contains(line, `"123"`) || strings.Contains(line, "id.secret") {
		t.Fatalf("secret leaked: %s", line)
	}
	if strings.Contains(line, "actor_tax_id") {
		t.Fatalf("anonymous event must not carry an actor: %s", line)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}
