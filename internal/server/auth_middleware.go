package server

import (
	"net/http"
	"strings"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/auth"
)

// authMiddleware resolves the bearer token into an actor and stores it in
// the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="foodtrack"`)
			respondError(w, apperr.Unauthenticated("missing_token", "authentication required"))
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="foodtrack", error="invalid_token"`)
			respondError(w, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondError(w, apperr.Unauthenticated("invalid_token", "invalid session token"))
			return
		}

		actor, err := s.accounts.Authenticate(r.Context(), claims)
		if err != nil {
			respondError(w, err)
			return
		}

		recordActor(r.Context(), userID)
		ctx := auth.WithSession(auth.WithActor(r.Context(), actor), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
