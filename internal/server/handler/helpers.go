package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
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

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
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

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}

// parseAddress parses a 0x-prefixed hex address, rejecting malformed input
// and the zero address.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a hex address: %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

// parseAmount parses a decimal wei or base-unit amount. Amounts travel as
// strings because JSON numbers cannot carry uint256 precision.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal amount: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %q", s)
	}
	return v, nil
}

// parsePRNumber parses the {pr} path segment.
func parsePRNumber(r *http.Request) (uint64, error) {
	raw := pathParam(r, "pr")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad pr number: %q", raw)
	}
	return n, nil
}

// repositoryParam joins the {owner} and {repo} path segments.
func repositoryParam(r *http.Request) (string, error) {
	owner, repo := pathParam(r, "owner"), pathParam(r, "repo")
	if owner == "" || repo == "" {
		return "", fmt.Errorf("missing repository")
	}
	return owner + "/" + repo, nil
}

// decodeJSON strictly decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeEngineError maps domain sentinel errors onto HTTP statuses. Unknown
// errors surface as a generic 500 so internals never leak.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRepositoryExists),
		errors.Is(err, domain.ErrMarketExists),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrZeroPayment),
		errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrZeroAddress),
		errors.Is(err, domain.ErrMarketNotActive),
		errors.Is(err, domain.ErrNotResolved),
		errors.Is(err, domain.ErrNothingToClaim),
		errors.Is(err, domain.ErrCreationPaused),
		errors.Is(err, domain.ErrExceedsMaxSupply):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInsufficientFee),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientReserve):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
