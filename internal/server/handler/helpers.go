package handler

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a tagged domain error onto an HTTP status and sends
// the JSON error body.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

// statusForError translates the domain error taxonomy into HTTP statuses:
// caller mistakes are 4xx, economic-policy and lifecycle rejections are 422
// or 409, upstream venue trouble is 502.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLoanActive), errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidDexRoute),
		errors.Is(err, domain.ErrInvalidSwapParams),
		errors.Is(err, domain.ErrExceedsMaxLoan),
		errors.Is(err, domain.ErrInvalidTokenAccount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrUnprofitableArbitrage),
		errors.Is(err, domain.ErrSlippageExceeded),
		errors.Is(err, domain.ErrLiquidationThresholdNotMet),
		errors.Is(err, domain.ErrPriceImpactTooHigh),
		errors.Is(err, domain.ErrLoanNotRepaid),
		errors.Is(err, domain.ErrMathOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrVenueInteraction),
		errors.Is(err, domain.ErrInvalidOraclePrice):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseID decodes a 32-byte identifier from its hex form, with or without
// the 0x prefix.
func parseID(s string) (domain.ID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return domain.ID{}, fmt.Errorf("handler: identifier %q: %w", s, err)
	}
	if len(raw) != len(domain.ID{}) {
		return domain.ID{}, fmt.Errorf("handler: identifier %q: want %d bytes, got %d", s, len(domain.ID{}), len(raw))
	}
	var id domain.ID
	copy(id[:], raw)
	return id, nil
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("handler: decode body: %w", err)
	}
	return nil
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
