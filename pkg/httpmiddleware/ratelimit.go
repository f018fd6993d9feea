package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Decision is the outcome of one Limiter.Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// KeyFunc selects the rate limit bucket of a request.
type KeyFunc func(*http.Request) string

// RateLimit rejects requests over the limit with 429. Every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset. A failing
// limiter lets the request through.
func RateLimit(l Limiter, key KeyFunc) Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d, err := l.Allow(r.Context(), key(r), now)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				wait := max(d.ResetAt.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, X-Real-IP or the
// remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type window struct {
	start time.Time
	prev  float64
	curr  float64
}

// SlidingWindow is an in-process Limiter. The previous window's count is
// weighted by how much of it still overlaps the sliding window.
type SlidingWindow struct {
	max    int
	period time.Duration

	mu   sync.Mutex
	keys map[string]*window
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow allows max requests per period and key.
func NewSlidingWindow(max int, period time.Duration) *SlidingWindow {
	return &SlidingWindow{max: max, period: period, keys: make(map[string]*window)}
}

// Allow implements Limiter.
func (s *SlidingWindow) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := now.Truncate(s.period)
	w, ok := s.keys[key]
	switch {
	case !ok:
		w = &window{start: start}
		s.keys[key] = w
	case start.Sub(w.start) >= 2*s.period:
		*w = window{start: start}
	case start.After(w.start):
		*w = window{start: start, prev: w.curr}
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(s.period)
	used := w.prev*overlap + w.curr
	d := Decision{Limit: s.max, ResetAt: w.start.Add(s.period)}
	if used >= float64(s.max) {
		return d, nil
	}

	w.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(s.max)-used-1), 0)
	return d, nil
}

// Sweep drops keys idle for two periods.
func (s *SlidingWindow) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.keys {
		if now.Sub(w.start) >= 2*s.period {
			delete(s.keys, key)
		}
	}
}

// Run sweeps idle keys every two periods until ctx is done.
func (s *SlidingWindow) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
