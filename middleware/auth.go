package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
)

// OperatorAuthMiddleware restricts the manual-trigger debug endpoints to the
// operator identity configured in the environment.
func OperatorAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()

		opUser := os.Getenv("OPERATOR_USER")
		opPass := os.Getenv("OPERATOR_PASS")
		if opUser == "" || opPass == "" {
			log.Warn().Msg("operator credentials not configured, rejecting admin request")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(opUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(opPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="Operator"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
