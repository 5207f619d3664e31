package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, repository string, prNumber uint64) (domain.MarketInfo, error)
	TakePosition(ctx context.Context, repository string, prNumber uint64, bettor common.Address, payment *big.Int, yes bool) (domain.Position, error)
	ClaimWinnings(ctx context.Context, repository string, prNumber uint64, caller common.Address) (*big.Int, error)
	GetMarket(ctx context.Context, repository string, prNumber uint64) (domain.MarketInfo, error)
	GetUserPosition(ctx context.Context, repository string, prNumber uint64, addr common.Address) (domain.Position, error)
	CalculatePotentialWinnings(ctx context.Context, repository string, prNumber uint64, addr common.Address) (domain.PotentialWinnings, error)
	ActiveMarkets() []domain.MarketInfo
	ResolvedMarkets() []domain.MarketInfo
	Positions(repository string, prNumber uint64) ([]domain.Position, error)
}

// MarketHandler serves prediction-market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

func (h *MarketHandler) marketKey(w http.ResponseWriter, r *http.Request) (string, uint64, bool) {
	repository, err := repositoryParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	pr, err := parsePRNumber(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	return repository, pr, true
}

type createMarketRequest struct {
	Repository string `json:"repository"`
	PRNumber   uint64 `json:"pr_number"`
}

// CreateMarket opens a prediction market on a pull request.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	if req.Repository == "" || req.PRNumber == 0 {
		writeError(w, http.StatusBadRequest, "repository and pr_number are required")
		return
	}
	m, err := h.markets.CreateMarket(r.Context(), req.Repository, req.PRNumber)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMarkets returns open or resolved markets.
// GET /api/markets?state=active|resolved
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var markets []domain.MarketInfo
	switch state := r.URL.Query().Get("state"); state {
	case "", "active":
		markets = h.markets.ActiveMarkets()
	case "resolved":
		markets = h.markets.ResolvedMarkets()
	default:
		writeError(w, http.StatusBadRequest, "state must be active or resolved")
		return
	}
	if markets == nil {
		markets = []domain.MarketInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// GetMarket returns a single market snapshot.
// GET /api/markets/{owner}/{repo}/{pr}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	repository, pr, ok := h.marketKey(w, r)
	if !ok {
		return
	}
	m, err := h.markets.GetMarket(r.Context(), repository, pr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type betRequest struct {
	Bettor     string `json:"bettor"`
	PaymentWei string `json:"payment_wei"`
	Side       string `json:"side"`
}

// Bet stakes funds on one side of an open market.
// POST /api/markets/{owner}/{repo}/{pr}/bet
func (h *MarketHandler) Bet(w http.ResponseWriter, r *http.Request) {
	repository, pr, ok := h.marketKey(w, r)
	if !ok {
		return
	}
	var req betRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	bettor, err := parseAddress(req.Bettor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bettor: "+err.Error())
		return
	}
	payment, err := parseAmount(req.PaymentWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payment_wei: "+err.Error())
		return
	}
	var yes bool
	switch req.Side {
	case "yes":
		yes = true
	case "no":
		yes = false
	default:
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}
	pos, err := h.markets.TakePosition(r.Context(), repository, pr, bettor, payment, yes)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

type claimRequest struct {
	Caller string `json:"caller"`
}

// Claim pays out a winning position after resolution.
// POST /api/markets/{owner}/{repo}/{pr}/claim
func (h *MarketHandler) Claim(w http.ResponseWriter, r *http.Request) {
	repository, pr, ok := h.marketKey(w, r)
	if !ok {
		return
	}
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	payout, err := h.markets.ClaimWinnings(r.Context(), repository, pr, caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"repository": repository,
		"caller":     caller.Hex(),
		"payout_wei": payout.String(),
	})
}

// ListPositions returns every position in a market.
// GET /api/markets/{owner}/{repo}/{pr}/positions
func (h *MarketHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	repository, pr, ok := h.marketKey(w, r)
	if !ok {
		return
	}
	positions, err := h.markets.Positions(repository, pr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// GetPosition returns one bettor's position in a market.
// GET /api/markets/{owner}/{repo}/{pr}/positions/{address}
func (h *MarketHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	repository, pr, ok := h.marketKey(w, r)
	if !ok {
		return
	}
	addr, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	pos, err := h.markets.GetUserPosition(r.Context(), repository, pr, addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// GetWinnings returns a bettor's hypothetical payout under each outcome.
// GET /api/markets/{owner}/{repo}/{pr}/winnings/{address}
func (h *MarketHandler) GetWinnings(w http.ResponseWriter, r *http.Request) {
	repository, pr, ok := h.marketKey(w, r)
	if !ok {
		return
	}
	addr, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	pw, err := h.markets.CalculatePotentialWinnings(r.Context(), repository, pr, addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pw)
}
