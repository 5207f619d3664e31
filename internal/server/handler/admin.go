package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// AdminRegistry covers the privileged registry operations.
type AdminRegistry interface {
	UpdateCreationFee(ctx context.Context, caller common.Address, fee *big.Int) error
	SetCreationPaused(ctx context.Context, caller common.Address, paused bool) error
	DeactivateProject(ctx context.Context, caller common.Address, token common.Address, reason string) error
}

// AdminTokens covers the privileged per-token operations.
type AdminTokens interface {
	BuybackBurn(ctx context.Context, id common.Address, caller common.Address, amount *big.Int) error
	UpdateTreasury(ctx context.Context, id common.Address, caller, addr common.Address) error
	UpdateRewardPool(ctx context.Context, id common.Address, caller, addr common.Address) error
}

// AdminMarkets covers the privileged market operations.
type AdminMarkets interface {
	ResolveMarket(ctx context.Context, caller common.Address, repository string, prNumber uint64, outcome bool) (domain.MarketInfo, error)
}

// AdminHandler serves operator-only endpoints. The whole group sits behind
// API-key auth at the router.
type AdminHandler struct {
	registry AdminRegistry
	tokens   AdminTokens
	markets  AdminMarkets
	archiver domain.SettlementArchiver
	audit    domain.AuditStore
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. archiver and audit may be nil when
// the corresponding backends are disabled.
func NewAdminHandler(registry AdminRegistry, tokens AdminTokens, markets AdminMarkets, archiver domain.SettlementArchiver, audit domain.AuditStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		tokens:   tokens,
		markets:  markets,
		archiver: archiver,
		audit:    audit,
		logger:   logger,
	}
}

type resolveRequest struct {
	Caller  string `json:"caller"`
	Outcome string `json:"outcome"`
}

// ResolveMarket settles a market by operator fiat. The oracle normally does
// this; the endpoint exists for markets the oracle cannot reach.
// POST /api/admin/markets/{owner}/{repo}/{pr}/resolve
func (h *AdminHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	repository, err := repositoryParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pr, err := parsePRNumber(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	var outcome bool
	switch req.Outcome {
	case "yes":
		outcome = true
	case "no":
		outcome = false
	default:
		writeError(w, http.StatusBadRequest, "outcome must be yes or no")
		return
	}
	m, err := h.markets.ResolveMarket(r.Context(), caller, repository, pr, outcome)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type updateFeeRequest struct {
	Caller string `json:"caller"`
	FeeWei string `json:"fee_wei"`
}

// UpdateCreationFee changes the project creation fee.
// POST /api/admin/registry/fee
func (h *AdminHandler) UpdateCreationFee(w http.ResponseWriter, r *http.Request) {
	var req updateFeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	fee, err := parseAmount(req.FeeWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, "fee_wei: "+err.Error())
		return
	}
	if err := h.registry.UpdateCreationFee(r.Context(), caller, fee); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"creation_fee_wei": fee.String()})
}

type pauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

// SetCreationPaused toggles the registry-wide creation pause.
// POST /api/admin/registry/pause
func (h *AdminHandler) SetCreationPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	if err := h.registry.SetCreationPaused(r.Context(), caller, req.Paused); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

type deactivateRequest struct {
	Caller string `json:"caller"`
	Reason string `json:"reason"`
}

// DeactivateProject retires a project listing. Token balances survive.
// POST /api/admin/projects/{address}/deactivate
func (h *AdminHandler) DeactivateProject(w http.ResponseWriter, r *http.Request) {
	token, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	var req deactivateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	if err := h.registry.DeactivateProject(r.Context(), caller, token, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token.Hex(), "status": "deactivated"})
}

// BuybackBurn spends treasury reserve to burn tokens out of circulation.
// POST /api/admin/tokens/{address}/buyback-burn
func (h *AdminHandler) BuybackBurn(w http.ResponseWriter, r *http.Request) {
	id, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	var req holderAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount: "+err.Error())
		return
	}
	if err := h.tokens.BuybackBurn(r.Context(), id, caller, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": id.Hex(), "burned": amount.String()})
}

type updateAddressRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

// UpdateTreasury repoints a token's treasury account.
// POST /api/admin/tokens/{address}/treasury
func (h *AdminHandler) UpdateTreasury(w http.ResponseWriter, r *http.Request) {
	h.updateTokenAddress(w, r, h.tokens.UpdateTreasury)
}

// UpdateRewardPool repoints a token's reward pool account.
// POST /api/admin/tokens/{address}/reward-pool
func (h *AdminHandler) UpdateRewardPool(w http.ResponseWriter, r *http.Request) {
	h.updateTokenAddress(w, r, h.tokens.UpdateRewardPool)
}

func (h *AdminHandler) updateTokenAddress(w http.ResponseWriter, r *http.Request, f func(ctx context.Context, id common.Address, caller, addr common.Address) error) {
	id, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	var req updateAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	target, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	if err := f(r.Context(), id, caller, target); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": id.Hex(), "updated": target.Hex()})
}

// TriggerArchive runs a settlement archive pass immediately.
// POST /api/admin/archive?before=2026-01-02T15:04:05Z
func (h *AdminHandler) TriggerArchive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archiving is not configured")
		return
	}
	before := time.Now().UTC()
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before: "+err.Error())
			return
		}
		before = t
	}
	n, err := h.archiver.ArchiveResolved(r.Context(), before)
	if err != nil {
		h.logger.Error("archive pass failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "archive failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archived_markets": n})
}

// ListAudit pages through the audit log, newest first.
// GET /api/admin/audit?limit=50&offset=0
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log is not configured")
		return
	}
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("audit list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
