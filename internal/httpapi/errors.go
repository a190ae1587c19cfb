package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/obs"
)

// statusFor maps a core error onto an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, "internal error"
	}
	msg := de.Detail
	if msg == "" {
		msg = strings.ReplaceAll(de.Kind.String(), "_", " ")
	}
	switch de.Kind {
	case domain.KindNotAuthorized:
		return http.StatusForbidden, "not authorized"
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized, msg
	case domain.KindNotFound, domain.KindNoneFound:
		return http.StatusNotFound, msg
	case domain.KindAlreadyRegistered,
		domain.KindNotCreditor,
		domain.KindSelfCharge,
		domain.KindCreditorMismatch,
		domain.KindAlreadyPaid:
		return http.StatusConflict, msg
	case domain.KindInvalidTaxID, domain.KindInvalidAmount, domain.KindInvalidInput:
		return http.StatusBadRequest, msg
	case domain.KindUnknown:
		return http.StatusInternalServerError, "internal error"
	}
	return http.StatusInternalServerError, "internal error"
}

// handleError renders err. Unexpected failures are logged with their cause.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		obs.Error("request_failed", err, map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		})
	}
	payload := map[string]any{"error": msg}
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		payload["code"] = kind.String()
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
