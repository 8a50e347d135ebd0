package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/schoolfees/internal/auth"
	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/storage"
)

// errBadRequest marks request errors that are not validator failures.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps a handler error to an HTTP status.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &verrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, ledger.ErrExceedsRemaining),
		errors.Is(err, ledger.ErrExceedsMaxAllowed),
		errors.Is(err, ledger.ErrNothingDue),
		errors.Is(err, ledger.ErrPaymentMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError sends {"error": msg}. Internal errors are logged and their
// detail is not returned.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg = validationMessage(verrs)
	}
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err)
		msg = "internal error"
	} else {
		slog.Warn(op+" rejected", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func validationMessage(verrs validator.ValidationErrors) string {
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// decode reads a JSON body into v and validates it.
func (s *FeeService) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return s.validate.Struct(v)
}

// requireQuery returns the named query parameter or a bad request error.
func requireQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", badRequest("%s is required", name)
	}
	return v, nil
}
