package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// TokenService defines what the token handler needs from the service layer.
type TokenService interface {
	Info(id common.Address) (domain.TokenInfo, error)
	RepositoryInfo(id common.Address) (domain.RepositoryInfo, error)
	MintingStats(ctx context.Context, id common.Address) (domain.MintingStats, error)
	BalanceOf(id common.Address, holder common.Address) (*big.Int, error)
	CalculateMintCost(id common.Address, amount *big.Int) (*big.Int, error)
	CalculateRedemptionValue(id common.Address, amount *big.Int) (*big.Int, error)
	MintTokens(ctx context.Context, id common.Address, buyer common.Address, amount, payment *big.Int) error
	Redeem(ctx context.Context, id common.Address, caller common.Address, amount *big.Int) (*big.Int, error)
	Burn(ctx context.Context, id common.Address, caller common.Address, amount *big.Int) error
	Transfer(ctx context.Context, id common.Address, from, to common.Address, amount *big.Int) error
}

// TokenHandler serves per-token endpoints (quotes, minting, redemption).
type TokenHandler struct {
	tokens TokenService
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens TokenService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

func (h *TokenHandler) tokenID(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	id, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return common.Address{}, false
	}
	return id, true
}

// GetInfo returns token metadata plus current minting stats.
// GET /api/tokens/{address}
func (h *TokenHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	info, err := h.tokens.Info(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetRepository returns the GitHub coordinates bound to a token.
// GET /api/tokens/{address}/repository
func (h *TokenHandler) GetRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	info, err := h.tokens.RepositoryInfo(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetStats returns live bonding-curve stats.
// GET /api/tokens/{address}/stats
func (h *TokenHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	stats, err := h.tokens.MintingStats(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetBalance returns a holder's token balance.
// GET /api/tokens/{address}/balance/{holder}
func (h *TokenHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	holder, err := parseAddress(pathParam(r, "holder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "holder: "+err.Error())
		return
	}
	bal, err := h.tokens.BalanceOf(id, holder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":   id.Hex(),
		"holder":  holder.Hex(),
		"balance": bal.String(),
	})
}

// QuoteMint prices a prospective mint without executing it.
// GET /api/tokens/{address}/quote/mint?amount=<base units>
func (h *TokenHandler) QuoteMint(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, h.tokens.CalculateMintCost, "cost_wei")
}

// QuoteRedeem prices a prospective redemption without executing it.
// GET /api/tokens/{address}/quote/redeem?amount=<base units>
func (h *TokenHandler) QuoteRedeem(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, h.tokens.CalculateRedemptionValue, "payout_wei")
}

func (h *TokenHandler) quote(w http.ResponseWriter, r *http.Request, f func(common.Address, *big.Int) (*big.Int, error), field string) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount: "+err.Error())
		return
	}
	v, err := f(id, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  id.Hex(),
		"amount": amount.String(),
		field:    v.String(),
	})
}

type mintRequest struct {
	Buyer      string `json:"buyer"`
	Amount     string `json:"amount"`
	PaymentWei string `json:"payment_wei"`
}

// Mint buys tokens off the bonding curve.
// POST /api/tokens/{address}/mint
func (h *TokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	buyer, err := parseAddress(req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "buyer: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount: "+err.Error())
		return
	}
	payment, err := parseAmount(req.PaymentWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payment_wei: "+err.Error())
		return
	}
	if err := h.tokens.MintTokens(r.Context(), id, buyer, amount, payment); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  id.Hex(),
		"buyer":  buyer.Hex(),
		"minted": amount.String(),
	})
}

type holderAmountRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (h *TokenHandler) holderAmount(w http.ResponseWriter, r *http.Request) (common.Address, *big.Int, bool) {
	var req holderAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return common.Address{}, nil, false
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return common.Address{}, nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount: "+err.Error())
		return common.Address{}, nil, false
	}
	return caller, amount, true
}

// Redeem sells tokens back into the reserve at the asymmetric redemption
// price.
// POST /api/tokens/{address}/redeem
func (h *TokenHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	caller, amount, ok := h.holderAmount(w, r)
	if !ok {
		return
	}
	payout, err := h.tokens.Redeem(r.Context(), id, caller, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":      id.Hex(),
		"caller":     caller.Hex(),
		"redeemed":   amount.String(),
		"payout_wei": payout.String(),
	})
}

// Burn destroys the caller's tokens without compensation.
// POST /api/tokens/{address}/burn
func (h *TokenHandler) Burn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	caller, amount, ok := h.holderAmount(w, r)
	if !ok {
		return
	}
	if err := h.tokens.Burn(r.Context(), id, caller, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  id.Hex(),
		"caller": caller.Hex(),
		"burned": amount.String(),
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Transfer moves tokens between holders.
// POST /api/tokens/{address}/transfer
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount: "+err.Error())
		return
	}
	if err := h.tokens.Transfer(r.Context(), id, from, to, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":       id.Hex(),
		"from":        from.Hex(),
		"to":          to.Hex(),
		"transferred": amount.String(),
	})
}
