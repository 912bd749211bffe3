package httpserver

import (
	"crypto/subtle"
	"net/http"

	apierrors "github.com/CedrosPay/cardpay/internal/errors"
)

// adminMetricsAuth protects /metrics with an optional bearer key.
// With no key configured the endpoint is open.
func adminMetricsAuth(apiKey string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				apierrors.WriteSimpleError(w, apierrors.ErrCodeUnauthorized, "Invalid or missing admin API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
