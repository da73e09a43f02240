package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/thomasnguyen/corgi-quest/internal/api/respond"
	"github.com/thomasnguyen/corgi-quest/internal/api/validate"
	"github.com/thomasnguyen/corgi-quest/internal/auth"
)

// requireMember authenticates the bearer token and checks that the
// {householdId} path variable is the caller's household.
func requireMember(issuer *auth.Issuer) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearer(r)
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) {
					respond.WriteUnauthorized(w, "missing bearer token")
				} else {
					respond.WriteUnauthorized(w, "malformed Authorization header")
				}
				return
			}
			claims, err := issuer.Parse(token)
			if err != nil {
				respond.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			householdID := mux.Vars(r)["householdId"]
			if err := validate.UUID("householdId", householdID); err != nil {
				respond.WriteBadRequest(w, err.Error())
				return
			}
			if claims.HouseholdID != householdID {
				respond.WriteForbidden(w, "token does not belong to this household")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// callerID returns the authenticated member id, if any.
func callerID(r *http.Request) *string {
	claims, ok := auth.FromContext(r.Context())
	if !ok || claims.UserID == "" {
		return nil
	}
	id := claims.UserID
	return &id
}
