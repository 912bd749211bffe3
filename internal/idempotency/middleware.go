package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	apierrors "github.com/CedrosPay/cardpay/internal/errors"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/metrics"
)

const (
	// HeaderKey is the request header carrying the client's idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplay is set to "true" on replayed responses.
	HeaderReplay = "X-Idempotency-Replay"

	// DefaultTTL is how long a response stays replayable.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxBodyBytes caps how much of a keyed request body is buffered.
	DefaultMaxBodyBytes = 64 << 10

	maxKeyLength = 255
)

// Options configures Middleware.
type Options struct {
	TTL          time.Duration
	MaxBodyBytes int64
	Route        string // metrics label
	Metrics      *metrics.Metrics
}

// recorder tees the response so it can be cached after the handler returns.
type recorder struct {
	http.ResponseWriter
	status  int
	headers map[string]string
	body    bytes.Buffer
	wrote   bool
}

func (rw *recorder) WriteHeader(status int) {
	if rw.wrote {
		return
	}
	rw.wrote = true
	rw.status = status
	for key := range rw.ResponseWriter.Header() {
		rw.headers[key] = rw.ResponseWriter.Header().Get(key)
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if !rw.wrote {
		rw.WriteHeader(http.StatusOK)
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Middleware replays the cached response of an earlier request that used the
// same Idempotency-Key on the same method and path. Only 2xx responses are
// cached, so declines and failures can be retried with the same key.
//
// Reusing a key with a different request body is rejected with 409.
func Middleware(store Store, opts Options) func(http.Handler) http.Handler {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get(HeaderKey)
			if rawKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(rawKey) > maxKeyLength {
				apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Idempotency-Key is too long")
				return
			}

			ctx := r.Context()
			log := logger.FromContext(ctx)

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeRequestTooLarge, "request body is too large", "max_bytes", maxBody)
					return
				}
				apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "unable to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintOf(body)

			// Scope by method and path so a key cannot leak across endpoints.
			key := r.Method + ":" + r.URL.Path + ":" + rawKey

			cached, found, err := store.Get(ctx, key)
			if err != nil {
				// A cache outage degrades to plain processing.
				log.Error().Err(err).Msg("idempotency.lookup_failed")
			}
			if found {
				if cached.Fingerprint != fingerprint {
					apierrors.WriteSimpleError(w, apierrors.ErrCodeIdempotencyReuse, "Idempotency-Key was already used with a different request")
					return
				}
				for k, v := range cached.Headers {
					if http.CanonicalHeaderKey(k) == "X-Request-Id" {
						continue
					}
					w.Header().Set(k, v)
				}
				w.Header().Set(HeaderReplay, "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				opts.Metrics.ObserveIdempotentReplay(opts.Route)
				log.Debug().Str("route", opts.Route).Msg("idempotency.replayed")
				return
			}

			rw := &recorder{ResponseWriter: w, status: http.StatusOK, headers: make(map[string]string)}
			next.ServeHTTP(rw, r)

			if rw.status < 200 || rw.status > 299 {
				return
			}
			err = store.Set(ctx, key, &Response{
				StatusCode:  rw.status,
				Headers:     rw.headers,
				Body:        rw.body.Bytes(),
				Fingerprint: fingerprint,
				CachedAt:    time.Now().UTC(),
			}, ttl)
			if err != nil {
				log.Error().Err(err).Msg("idempotency.store_failed")
			}
		})
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
