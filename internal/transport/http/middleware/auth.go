package httpmw

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyToken  ctxKey = "token"
	ctxKeyUserID ctxKey = "user_id"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"missing bearer token"}`))
				return
			}
			token := strings.TrimSpace(auth[7:])

			userID, err := verifier.VerifyToken(token)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid token"}`))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyToken, token)
			ctx = context.WithValue(ctx, ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromCtx(ctx context.Context) string {
	if v := ctx.Value(ctxKeyUserID); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func TokenFromCtx(ctx context.Context) string {
	if v := ctx.Value(ctxKeyToken); v != nil {
		if t, ok := v.(string); ok {
			return t
		}
	}
	return ""
}
