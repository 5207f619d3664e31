package handler

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// BankService defines what the bank handler needs from the custodial ledger.
type BankService interface {
	Deposit(addr common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
	TotalSupply() *big.Int
}

// BankHandler serves custodial ledger endpoints.
type BankHandler struct {
	bank   BankService
	logger *slog.Logger
}

// NewBankHandler creates a BankHandler.
func NewBankHandler(bank BankService, logger *slog.Logger) *BankHandler {
	return &BankHandler{bank: bank, logger: logger}
}

type depositRequest struct {
	Address   string `json:"address"`
	AmountWei string `json:"amount_wei"`
}

// Deposit credits an account on the custodial ledger.
// POST /api/bank/deposit
func (h *BankHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	amount, err := parseAmount(req.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount_wei: "+err.Error())
		return
	}
	if err := h.bank.Deposit(addr, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.Info("deposit credited",
		slog.String("address", addr.Hex()),
		slog.String("amount_wei", amount.String()))
	writeJSON(w, http.StatusOK, map[string]string{
		"address":     addr.Hex(),
		"balance_wei": h.bank.BalanceOf(addr).String(),
	})
}

// GetBalance returns an account's ledger balance.
// GET /api/bank/balance/{address}
func (h *BankHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address":     addr.Hex(),
		"balance_wei": h.bank.BalanceOf(addr).String(),
	})
}

// GetSupply returns the total wei held on the ledger.
// GET /api/bank/supply
func (h *BankHandler) GetSupply(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"total_supply_wei": h.bank.TotalSupply().String(),
	})
}
