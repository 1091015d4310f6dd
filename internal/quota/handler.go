package quota

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/api"
	"github.com/krishna-platform/quotad/internal/auth"
)

// Handler serves the quota status endpoint.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Consume acknowledges a metered request. The quota middleware in front of
// it has already made the allow/deny decision and set the X-Quota-* headers;
// reaching this handler means the request was counted and allowed.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	api.JSONMessage(w, http.StatusOK, "request accepted")
}

// GetStatus returns the authenticated user's current tier, limit and usage.
// Reading status never consumes quota.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.engine.Status(r.Context(), userID)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
