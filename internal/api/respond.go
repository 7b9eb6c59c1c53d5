package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps gate, validation and lookup failures to client responses.
// Anything else is logged and reported as a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var te *lifecycle.TransitionError
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &te):
		body := map[string]any{"error": te.Message, "kind": te.Kind}
		if d := te.Details(); d != nil {
			body["details"] = d
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &ve):
		body := map[string]any{"error": ve.Message}
		if ve.Details != nil {
			body["details"] = ve.Details
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// decodeJSON reads a request body into v. Strict decoding rejects fields v
// does not declare.
func decodeJSON(r *http.Request, v interface{}, strict bool) error {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("request body required")
		}
		return &domain.ValidationError{
			Message: "invalid request body",
			Details: map[string]any{"reason": err.Error()},
		}
	}
	return nil
}

func pathID(r *http.Request, param, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, domain.Invalid("invalid " + what + " id")
	}
	return id, nil
}

func minLen(field, value string, n int) error {
	if len(strings.TrimSpace(value)) < n {
		return domain.Invalid(fmt.Sprintf("%s must be at least %d characters", field, n))
	}
	return nil
}

func optionalMinLen(field string, value *string, n int) error {
	if value == nil {
		return nil
	}
	return minLen(field, *value, n)
}

func maxLen(field string, value *string, n int) error {
	if value != nil && len(*value) > n {
		return domain.Invalid(fmt.Sprintf("%s must be at most %d characters", field, n))
	}
	return nil
}

// firstError returns the first non-nil error in order.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Date accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

// timePtr unwraps an optional Date.
func timePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
