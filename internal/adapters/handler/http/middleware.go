package http

import (
	"context"
	"net/http"
)

type contextKey string

const voterTokenKey contextKey = "voter_token"

const (
	voterTokenHeader = "X-Voter-Token"
	voterTokenCookie = "voter_token"
)

// RequireVoterToken puts the caller's opaque voter token in the request
// context. The header wins over the cookie. The token is resolved later, on
// the connection that serves the request.
func RequireVoterToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(voterTokenHeader)
		if token == "" {
			if cookie, err := r.Cookie(voterTokenCookie); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			errorJSON(w, http.StatusUnauthorized, "missing voter token")
			return
		}

		ctx := context.WithValue(r.Context(), voterTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func voterToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(voterTokenKey).(string)
	return token, ok && token != ""
}
