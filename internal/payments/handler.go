package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Handler manages payment and reschedule endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments/preview", h.previewPayment)
	r.Post("/payments", h.commitPayment)
	r.Post("/installments/{id}/reschedule", h.rescheduleInstallment)
}

type previewRequest struct {
	ClientID string          `json:"client_id" validate:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
}

type previewLine struct {
	ID                uuid.UUID       `json:"id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           string          `json:"due_date"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	AmountToApply     decimal.Decimal `json:"amount_to_apply"`
}

type previewResponse struct {
	Installments    []previewLine   `json:"installments"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

func (h *Handler) previewPayment(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if fields := h.fieldErrors(req); fields != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}
	clientID, _ := uuid.Parse(req.ClientID)

	plan, err := h.service.Preview(r.Context(), clientID, req.Amount)
	if err != nil {
		h.logger.Error("payment preview", slog.Any("error", err), slog.String("client_id", req.ClientID))
		httpx.RespondError(w, err)
		return
	}

	lines := make([]previewLine, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		lines = append(lines, previewLine{
			ID:                line.InstallmentID,
			InstallmentNumber: line.InstallmentNumber,
			DueDate:           line.DueDate.Format(dateLayout),
			Amount:            line.Amount,
			PaidAmount:        line.PaidAmount,
			AmountToApply:     line.AmountToApply,
		})
	}
	httpx.JSON(w, http.StatusOK, previewResponse{Installments: lines, RemainingAmount: plan.Remaining})
}

type commitRequest struct {
	ClientID    string          `json:"client_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required"`
	ReceiptURL  string          `json:"receipt_url" validate:"omitempty,url"`
	Notes       string          `json:"notes"`
	UserID      string          `json:"user_id" validate:"required,uuid"`
}

type commitResponse struct {
	PaymentID           uuid.UUID       `json:"payment_id"`
	AmountApplied       decimal.Decimal `json:"amount_applied"`
	InstallmentsUpdated int             `json:"installments_updated"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
}

func (h *Handler) commitPayment(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if fields := h.fieldErrors(req); fields != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}
	paymentDate, err := time.Parse(dateLayout, req.PaymentDate)
	if err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", map[string]string{"payment_date": "must be an ISO date (YYYY-MM-DD)"})
		return
	}
	clientID, _ := uuid.Parse(req.ClientID)
	userID, _ := uuid.Parse(req.UserID)

	result, err := h.service.Commit(r.Context(), CommitInput{
		ClientID:    clientID,
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		UserID:      userID,
		ReceiptURL:  req.ReceiptURL,
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.Error("payment commit", slog.Any("error", err), slog.String("client_id", req.ClientID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, commitResponse{
		PaymentID:           result.PaymentID,
		AmountApplied:       result.AmountApplied,
		InstallmentsUpdated: result.InstallmentsUpdated,
		RemainingAmount:     result.Remaining,
	})
}

type rescheduleRequest struct {
	NewDueDate string `json:"new_due_date" validate:"required"`
	Reason     string `json:"reason" validate:"required,min=10"`
	UserID     string `json:"user_id" validate:"required,uuid"`
}

func (h *Handler) rescheduleInstallment(w http.ResponseWriter, r *http.Request) {
	installmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}

	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if fields := h.fieldErrors(req); fields != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}
	newDueDate, err := time.Parse(dateLayout, req.NewDueDate)
	if err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", map[string]string{"new_due_date": "must be an ISO date (YYYY-MM-DD)"})
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	if err := h.service.Reschedule(r.Context(), RescheduleInput{
		InstallmentID: installmentID,
		NewDueDate:    newDueDate,
		Reason:        req.Reason,
		UserID:        userID,
	}); err != nil {
		h.logger.Error("reschedule installment", slog.Any("error", err), slog.String("installment_id", installmentID.String()))
		httpx.RespondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fieldErrors runs struct validation and flattens the result into a
// field → message map for the problem response.
func (h *Handler) fieldErrors(req any) map[string]string {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	fields := map[string]string{}
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = "failed " + fieldErr.Tag() + " validation"
		}
	} else {
		fields["request"] = err.Error()
	}
	return fields
}
