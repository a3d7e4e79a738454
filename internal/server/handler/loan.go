package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/flashlend/internal/flash"
)

// LoanHandler accepts flash loan strategy submissions and repayments.
type LoanHandler struct {
	eng    *flash.Engine
	logger *slog.Logger
}

// NewLoanHandler creates a LoanHandler.
func NewLoanHandler(eng *flash.Engine, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{eng: eng, logger: logHandler(logger, "loan")}
}

type arbitrageRequest struct {
	Borrower  string `json:"borrower"`
	Amount    uint64 `json:"amount"`
	MinProfit uint64 `json:"min_profit"`
	// Route is the base64-encoded wire-format hop list.
	Route []byte `json:"route"`
}

// OpenArbitrage runs the arbitrage strategy.
// POST /api/loans/arbitrage
func (h *LoanHandler) OpenArbitrage(w http.ResponseWriter, r *http.Request) {
	var req arbitrageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := parseID(req.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.eng.OpenArbitrage(r.Context(), flash.ArbitrageRequest{
		Borrower:  borrower,
		Amount:    req.Amount,
		MinProfit: req.MinProfit,
		Route:     req.Route,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type selfLiquidateRequest struct {
	Borrower        string `json:"borrower"`
	Amount          uint64 `json:"amount"`
	MinOut          uint64 `json:"min_out"`
	CollateralToken string `json:"collateral_token"`
	Venue           uint8  `json:"venue"`
	SwapPool        string `json:"swap_pool"`
}

// OpenSelfLiquidate runs the self-liquidation strategy.
// POST /api/loans/self-liquidate
func (h *LoanHandler) OpenSelfLiquidate(w http.ResponseWriter, r *http.Request) {
	var req selfLiquidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := parseID(req.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	collateral, err := parseID(req.CollateralToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	swapPool, err := parseID(req.SwapPool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.eng.OpenSelfLiquidate(r.Context(), flash.SelfLiquidateRequest{
		Borrower:        borrower,
		Amount:          req.Amount,
		MinOut:          req.MinOut,
		CollateralToken: collateral,
		Venue:           req.Venue,
		SwapPool:        swapPool,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type repayRequest struct {
	Borrower string `json:"borrower"`
	Amount   uint64 `json:"amount"`
}

// Repay settles an open loan record.
// POST /api/loans/repay
func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := parseID(req.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.eng.Repay(r.Context(), borrower, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
