package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/flashlend/internal/flash"
)

// AdminHandler exposes the pool's administrative operations. The server's
// auth middleware guards these routes; the engine additionally checks the
// supplied authority against the ledger.
type AdminHandler struct {
	eng    *flash.Engine
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(eng *flash.Engine, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{eng: eng, logger: logHandler(logger, "admin")}
}

type initializeRequest struct {
	Authority string `json:"authority"`
}

// Initialize creates the singleton pool ledger.
// POST /api/admin/initialize
func (h *AdminHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, err := parseID(req.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ledger, err := h.eng.Initialize(r.Context(), authority)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"authority":       ledger.Authority,
		"fee_rate_bp":     ledger.FeeRateBp,
		"max_loan_amount": ledger.MaxLoanAmount,
	})
}

type pauseRequest struct {
	Authority string `json:"authority"`
}

// Pause halts every strategy at its first precondition.
// POST /api/admin/pause
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Unpause reopens the pool.
// POST /api/admin/unpause
func (h *AdminHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *AdminHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, err := parseID(req.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.eng.SetPaused(r.Context(), authority, paused); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

type withdrawRequest struct {
	Authority string `json:"authority"`
	Amount    uint64 `json:"amount"`
}

// EmergencyWithdraw drains funds to the authority while the pool is paused.
// POST /api/admin/emergency-withdraw
func (h *AdminHandler) EmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, err := parseID(req.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.eng.EmergencyWithdraw(r.Context(), authority, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"withdrawn": req.Amount,
		"balance":   h.eng.PoolBalance(),
	})
}
