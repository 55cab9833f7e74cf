package middleware

import (
	"context"
	"errors"
	"net/http"

	"rescuehub/errs"
	"rescuehub/utils"
)

// AuthMiddleware validates the bearer token issued by the identity provider
// and stores the caller's id and display name in the request context.
func AuthMiddleware(cfg utils.TokenConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := utils.BearerToken(r)
			if !ok {
				unauthorized(w, "Unauthorized")
				return
			}
			claims, err := utils.ValidateAccessToken(r.Context(), cfg, tokenStr)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					unauthorized(w, "Session expired, please sign in again")
					return
				}
				unauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), utils.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, utils.UserNameKey, claims.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
		Success: false,
		Message: msg,
		Code:    string(errs.Permission),
	})
}
