package crm

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

// Handler manages credit endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/credit", h.creditSummary)
	r.Post("/{id}/credit/validate", h.validateCredit)
}

type creditSummaryResponse struct {
	CreditLimit         decimal.Decimal `json:"credit_limit"`
	CreditUsed          decimal.Decimal `json:"credit_used"`
	CreditAvailable     decimal.Decimal `json:"credit_available"`
	TotalDebt           decimal.Decimal `json:"total_debt"`
	OverdueDebt         decimal.Decimal `json:"overdue_debt"`
	PendingInstallments int             `json:"pending_installments"`
	OverdueInstallments int             `json:"overdue_installments"`
}

func (h *Handler) creditSummary(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid client id")
		return
	}

	summary, err := h.service.CreditSummary(r.Context(), clientID)
	if err != nil {
		h.logger.Error("credit summary", slog.Any("error", err), slog.String("client_id", clientID.String()))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, creditSummaryResponse{
		CreditLimit:         summary.CreditLimit,
		CreditUsed:          summary.CreditUsed,
		CreditAvailable:     summary.CreditAvailable,
		TotalDebt:           summary.TotalDebt,
		OverdueDebt:         summary.OverdueDebt,
		PendingInstallments: summary.PendingInstallments,
		OverdueInstallments: summary.OverdueInstallments,
	})
}

type validateCreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type validateCreditResponse struct {
	IsValid         bool            `json:"is_valid"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	Message         string          `json:"message,omitempty"`
}

func (h *Handler) validateCredit(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid client id")
		return
	}

	var req validateCreditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}

	result, err := h.service.ValidateCreditLimit(r.Context(), clientID, req.Amount)
	if err != nil {
		h.logger.Error("validate credit limit", slog.Any("error", err), slog.String("client_id", clientID.String()))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, validateCreditResponse{
		IsValid:         result.IsValid,
		AvailableCredit: result.AvailableCredit,
		Message:         result.Message,
	})
}
