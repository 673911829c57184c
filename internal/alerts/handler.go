package alerts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/observability"
	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

// Handler manages the alert feed endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
	now     func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, now: time.Now}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/alerts", h.listAlerts)
}

type alertResponse struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	ClientID   uuid.UUID        `json:"client_id"`
	ClientName string           `json:"client_name"`
	Message    string           `json:"message"`
	Priority   Priority         `json:"priority"`
	DueDate    *time.Time       `json:"due_date,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	generated, err := h.service.Generate(r.Context(), h.now())
	if err != nil {
		h.logger.Error("generate alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]alertResponse, 0, len(generated))
	for _, alert := range generated {
		out = append(out, alertResponse{
			ID:         alert.ID,
			Type:       alert.Type,
			ClientID:   alert.ClientID,
			ClientName: alert.ClientName,
			Message:    alert.Message,
			Priority:   alert.Priority,
			DueDate:    alert.DueDate,
			Amount:     alert.Amount,
			CreatedAt:  alert.CreatedAt,
		})
		if h.metrics != nil {
			h.metrics.AlertGenerated(string(alert.Type))
		}
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": out})
}
