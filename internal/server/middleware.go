package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TokenHeader carries the shared pipeline token on every POST request.
const TokenHeader = "X-Token"

// TokenAuth rejects requests whose X-Token header does not match token.
func TokenAuth(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(TokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteDetail(w, http.StatusUnauthorized, "Invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit allows one request per `every` interval (with the given burst)
// per client address. Stale client entries are dropped periodically.
type RateLimit struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	every    time.Duration
	burst    int
	lastSeen time.Duration
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimit creates a per-client limiter.
func NewRateLimit(every time.Duration, burst int) *RateLimit {
	return &RateLimit{
		clients:  make(map[string]*clientLimiter),
		every:    every,
		burst:    burst,
		lastSeen: 10 * every,
	}
}

// Middleware enforces the limit, answering 429 when a client is over it.
func (rl *RateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		if !rl.allow(host) {
			WriteDetail(w, http.StatusTooManyRequests, "Rate limit exceeded. Request blocked.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimit) allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cl, ok := rl.clients[host]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.clients[host] = cl
	}
	cl.seen = now

	// Opportunistic cleanup of clients not seen for a while.
	if len(rl.clients) > 1024 {
		for k, v := range rl.clients {
			if now.Sub(v.seen) > rl.lastSeen {
				delete(rl.clients, k)
			}
		}
	}

	return cl.limiter.Allow()
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
