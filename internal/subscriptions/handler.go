package subscriptions

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/api"
	"github.com/krishna-platform/quotad/internal/auth"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Upsert handles PUT /api/v1/subscriptions/{userID}. It stands in for the
// billing webhook: any authenticated caller may change a subscription, and
// the quota caches are invalidated as part of the write.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user ID"))
		return
	}

	var req UpsertSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	sub, err := h.svc.Upsert(r.Context(), userID, &req)
	if err != nil {
		slog.Error("upserting subscription", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, sub)
}

// Get handles GET /api/v1/subscriptions/me.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	sub, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		slog.Error("fetching subscription", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if sub == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, sub)
}
