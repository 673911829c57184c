package collections

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Handler manages collection action endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountClientRoutes registers the per-client action routes.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/{id}/actions", h.listActions)
	r.Post("/{id}/actions", h.createAction)
}

// MountActionRoutes registers the action-scoped routes.
func (h *Handler) MountActionRoutes(r chi.Router) {
	r.Post("/{id}/complete", h.completeAction)
}

type actionResponse struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client_id"`
	ClientName   string    `json:"client_name"`
	ActionType   string    `json:"action_type"`
	Description  string    `json:"description"`
	FollowUpDate string    `json:"follow_up_date"`
	Completed    bool      `json:"completed"`
	CompletedAt  *string   `json:"completed_at"`
	UserID       uuid.UUID `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func toActionResponse(action Action) actionResponse {
	resp := actionResponse{
		ID:           action.ID,
		ClientID:     action.ClientID,
		ClientName:   action.ClientName,
		ActionType:   string(action.Type),
		Description:  action.Description,
		FollowUpDate: action.FollowUpDate.Format(dateLayout),
		Completed:    action.Completed,
		UserID:       action.UserID,
		CreatedAt:    action.CreatedAt,
	}
	if action.CompletedAt != nil {
		completed := action.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid client id")
		return
	}

	actions, err := h.service.ListByClient(r.Context(), clientID)
	if err != nil {
		h.logger.Error("list collection actions", slog.Any("error", err), slog.String("client_id", clientID.String()))
		httpx.RespondError(w, err)
		return
	}

	responses := make([]actionResponse, 0, len(actions))
	for _, action := range actions {
		responses = append(responses, toActionResponse(action))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actions": responses})
}

type createActionRequest struct {
	ActionType   string `json:"action_type" validate:"required"`
	Description  string `json:"description" validate:"required"`
	FollowUpDate string `json:"follow_up_date" validate:"required"`
	UserID       string `json:"user_id" validate:"required,uuid"`
}

func (h *Handler) createAction(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid client id")
		return
	}

	var req createActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		fields := map[string]string{}
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = "failed " + fieldErr.Tag() + " validation"
			}
		} else {
			fields["request"] = err.Error()
		}
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}
	followUp, err := time.Parse(dateLayout, req.FollowUpDate)
	if err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", map[string]string{"follow_up_date": "must be an ISO date (YYYY-MM-DD)"})
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	action, err := h.service.Create(r.Context(), CreateInput{
		ClientID:     clientID,
		Type:         ActionType(req.ActionType),
		Description:  req.Description,
		FollowUpDate: followUp,
		UserID:       userID,
	})
	if err != nil {
		h.logger.Error("create collection action", slog.Any("error", err), slog.String("client_id", clientID.String()))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toActionResponse(*action))
}

func (h *Handler) completeAction(w http.ResponseWriter, r *http.Request) {
	actionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid action id")
		return
	}

	action, err := h.service.Complete(r.Context(), actionID)
	if err != nil {
		h.logger.Error("complete collection action", slog.Any("error", err), slog.String("action_id", actionID.String()))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toActionResponse(*action))
}
