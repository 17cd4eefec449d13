package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"golang.org/x/time/rate"

	"github.com/shineum/oft-eml-exporter/internal/logger"
	"github.com/shineum/oft-eml-exporter/internal/metrics"
)

var skipLogging = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

type Middleware struct {
	maxBodySize int64
	limiter     *ClientRateLimiter
}

// NewMiddleware creates the middleware set. A nil limiter disables rate
// limiting; maxBodySize <= 0 disables the body cap.
func NewMiddleware(maxBodySize int64, limiter *ClientRateLimiter) *Middleware {
	return &Middleware{
		maxBodySize: maxBodySize,
		limiter:     limiter,
	}
}

func (m *Middleware) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.Must(uuid.NewV4()).String()
		}

		ctx = logger.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-Id", requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())

		if _, ok := skipLogging[r.URL.Path]; !ok {
			slog.InfoContext(ctx, "request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(started),
			)
		}
	})
}

func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		defer func() {
			err := recover()
			if err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				slog.ErrorContext(ctx, "recovered from panic", "error", err, "stack", string(debug.Stack()))
				SendErr(ctx, w, http.StatusInternalServerError, nil, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Cors permits every origin, method and header.
func (m *Middleware) Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MaxBody caps the request body; decoding past the cap fails with
// *http.MaxBytesError.
func (m *Middleware) MaxBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.maxBodySize > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, m.maxBodySize)
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit rejects requests from clients over their token budget with 429.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		client := clientIP(r)
		if !m.limiter.Limiter(client).Allow() {
			metrics.RateLimitExceeded.Inc()
			SendErr(r.Context(), w, http.StatusTooManyRequests,
				errors.New("rate limit exceeded for "+client), "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientRateLimiter manages token buckets per client address. Buckets of
// clients that stay idle are dropped by Sweep.
type ClientRateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// NewClientRateLimiter creates a limiter allowing rps requests per second
// with the given burst for each client.
func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Limiter returns the token bucket for client, creating it on first use.
func (rl *ClientRateLimiter) Limiter(client string) *rate.Limiter {
	now := rl.now().UnixNano()

	rl.mu.RLock()
	cl, exists := rl.limiters[client]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		cl, exists = rl.limiters[client]
		if !exists {
			cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
			rl.limiters[client] = cl
		}
		rl.mu.Unlock()
	}

	cl.lastSeen.Store(now)
	return cl.limiter
}

// Sweep drops the buckets of clients not seen for idle and returns how many
// were removed.
func (rl *ClientRateLimiter) Sweep(idle time.Duration) int {
	cutoff := rl.now().Add(-idle).UnixNano()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for client, cl := range rl.limiters {
		if cl.lastSeen.Load() < cutoff {
			delete(rl.limiters, client)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (rl *ClientRateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (rl *ClientRateLimiter) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Sweep(idle); n > 0 {
				slog.Debug("rate limiter swept idle clients", "removed", n)
			}
		}
	}
}
