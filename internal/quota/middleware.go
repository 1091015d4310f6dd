package quota

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/api"
	"github.com/krishna-platform/quotad/internal/auth"
)

// quotaExceededBody is the 429 response contract rendered from a denial.
type quotaExceededBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Tier      Tier   `json:"tier"`
	Limit     Amount `json:"limit"`
	Remaining Amount `json:"remaining"`
}

// Middleware enforces the daily quota on every request passing through it.
// Routes exempt from quota (webhooks, health) are simply not wrapped.
// It must run after auth.Middleware: a missing identity is a 401, never a
// quota decision.
func Middleware(engine *Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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

			decision, err := engine.Check(r.Context(), userID)
			if err != nil {
				// Programming fault, not a store outage: the engine fails
				// open on those and never returns an error for them.
				api.HandleError(w, api.ErrInternalServer)
				return
			}

			w.Header().Set("X-Quota-Limit", decision.Limit.String())
			w.Header().Set("X-Quota-Remaining", decision.Remaining.String())
			w.Header().Set("X-Quota-Tier", string(decision.Tier))
			if decision.Degraded {
				w.Header().Set("X-Quota-Degraded", "true")
			}

			if !decision.Allowed {
				api.JSONRaw(w, http.StatusTooManyRequests, quotaExceededBody{
					Error:     fmt.Sprintf("daily quota of %s requests exceeded for tier %q", decision.Limit, decision.Tier),
					Code:      "quota_exceeded",
					Tier:      decision.Tier,
					Limit:     decision.Limit,
					Remaining: 0,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
