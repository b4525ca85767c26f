package httpserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logpkg "github.com/rzbill/ystore/pkg/log"
)

// requestID tags each request with a generated ID, echoes it in the response,
// and logs the request line with latency.
func requestID(next http.Handler, logger *logpkg.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

// rateLimit throttles mutating requests per remote host with a token bucket.
// ratePerSec <= 0 disables throttling.
func rateLimit(next http.Handler, ratePerSec float64, burst int) http.Handler {
	if ratePerSec <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	var (
		mu       sync.Mutex
		limiters = map[string]*rate.Limiter{}
	)
	limiterFor := func(host string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l := limiters[host]
		if l == nil {
			l = rate.NewLimiter(rate.Limit(ratePerSec), burst)
			limiters[host] = l
		}
		return l
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiterFor(host).Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
