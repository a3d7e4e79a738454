package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/flash"
)

// PoolHandler serves read-only views of the pool: ledger state, open loan
// records, and the audit trail.
type PoolHandler struct {
	eng    *flash.Engine
	events domain.LoanEventStore
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(eng *flash.Engine, events domain.LoanEventStore, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{eng: eng, events: events, logger: logHandler(logger, "pool")}
}

type poolResponse struct {
	Authority        domain.ID `json:"authority"`
	FeeRateBp        uint16    `json:"fee_rate_bp"`
	MaxLoanAmount    uint64    `json:"max_loan_amount"`
	TotalLoansIssued uint64    `json:"total_loans_issued"`
	TotalVolume      uint64    `json:"total_volume"`
	Paused           bool      `json:"paused"`
	Balance          uint64    `json:"balance"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetPool returns the pool ledger and live balance.
// GET /api/pool
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.eng.Ledger(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{
		Authority:        ledger.Authority,
		FeeRateBp:        ledger.FeeRateBp,
		MaxLoanAmount:    ledger.MaxLoanAmount,
		TotalLoansIssued: ledger.TotalLoansIssued,
		TotalVolume:      ledger.TotalVolume,
		Paused:           ledger.Paused,
		Balance:          h.eng.PoolBalance(),
		UpdatedAt:        ledger.UpdatedAt,
	})
}

type loanResponse struct {
	Borrower domain.ID       `json:"borrower"`
	Token    domain.ID       `json:"token"`
	Amount   uint64          `json:"amount"`
	Fee      uint64          `json:"fee"`
	OpenedAt time.Time       `json:"opened_at"`
	Kind     domain.LoanKind `json:"kind"`
}

// ListLoans returns every open loan record.
// GET /api/pool/loans
func (h *PoolHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.eng.ActiveLoans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanResponse{
			Borrower: l.Borrower,
			Token:    l.Token,
			Amount:   l.Amount,
			Fee:      l.Fee,
			OpenedAt: l.OpenedAt,
			Kind:     l.Kind,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": out})
}

type eventResponse struct {
	ID        string          `json:"id"`
	Borrower  domain.ID       `json:"borrower"`
	Kind      domain.LoanKind `json:"kind,omitempty"`
	Event     string          `json:"event"`
	Amount    uint64          `json:"amount"`
	Fee       uint64          `json:"fee"`
	Profit    uint64          `json:"profit"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListEvents returns the audit trail, newest first, with pagination.
// GET /api/pool/events
func (h *PoolHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			ID:        ev.ID,
			Borrower:  ev.Borrower,
			Kind:      ev.Kind,
			Event:     ev.Event,
			Amount:    ev.Amount,
			Fee:       ev.Fee,
			Profit:    ev.Profit,
			CreatedAt: ev.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
