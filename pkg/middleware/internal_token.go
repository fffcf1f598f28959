package middleware

import (
	"net/http"

	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// InternalTokenHeader carries the shared token of the external scheduler.
const InternalTokenHeader = "X-Internal-Token"

// InternalToken admits requests whose token matches the bcrypt hash.
// Requests without the header go through otherwise instead, typically JWT
// auth plus a role check.
func InternalToken(hash string, otherwise func(http.Handler) http.Handler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fallback := otherwise(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(InternalTokenHeader)
			if token == "" {
				fallback.ServeHTTP(w, r)
				return
			}

			if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				logger.Warn("Rejected internal token",
					zap.String("path", r.URL.Path),
					zap.String("ip", clientIP(r)))
				utils.ResponseUnauthorized(w, "Invalid internal token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
