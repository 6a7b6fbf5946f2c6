package httpkit

import (
	"compress/flate"
	"net/http"

	perrs "tipjar/internal/platform/errors"
	phttp "tipjar/internal/platform/net/http"
	"tipjar/internal/platform/net/middleware"
)

// CommonStack returns a baseline per module middleware slice
// compose with BearerAuth or other guards as needed in main
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),

		// safety
		middleware.RecoverJSON,

		// cache / freshness
		middleware.NoCache(),

		// observability
		middleware.Logger(),

		// cross-origin (tweak config in main if needed)
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
		middleware.RedirectSlashes(),
		middleware.StripSlashes(),
		middleware.Timeout(30 * 1e9), // 30s
	}
}

// BearerAuth guards routes with a static operator token.
// An empty token disables the guard so local setups stay friction free
func BearerAuth(token string) func(http.Handler) http.Handler {
	port := NewPortFunc(func(tok string) (string, string, error) {
		if tok != token {
			return "", "", perrs.Unauthorizedf("invalid bearer token")
		}
		return "operator", "ops", nil
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, _, err := port.Parse(r); err != nil {
				phttp.JSON(w, http.StatusUnauthorized, phttp.Envelope{
					StatusCode: http.StatusUnauthorized,
					Status:     "error",
					Code:       perrs.ErrorCodeUnauthorized,
					Error:      "unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
