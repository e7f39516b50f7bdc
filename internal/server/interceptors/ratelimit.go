package interceptors

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"server-actions/backend/internal/action"
)

const (
	defaultIdleTTL = 10 * time.Minute
	sweepEvery     = 512
)

// RateLimiter applies a token bucket per key and periodically evicts idle buckets.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*bucket
	hits  uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a limiter allowing rps requests per second with the given burst per key.
// It returns nil (no limiting) if rps or burst is not positive.
func NewRateLimiter(rps float64, burst int, idleTTL time.Duration) *RateLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*bucket),
	}
}

// Allow reports whether key may make one request at now.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%sweepEvery == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// Len returns the number of tracked keys.
func (l *RateLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// ErrRateLimited is returned when a caller exceeds its request budget.
var ErrRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// RateLimitUnary rejects requests over the per-caller budget with ResourceExhausted before the entry
// point runs. Callers are keyed by user id when authenticated, otherwise by client IP, so it must run
// after AuthUnary. onReject is called with the full method for each rejection and may be nil.
func RateLimitUnary(l *RateLimiter, skipMethods map[string]bool, onReject func(fullMethod string), log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if l == nil || skipMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		key := rateLimitKey(ctx)
		if !l.Allow(key, time.Now()) {
			log.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"key":    key,
			}).Info("rate limit: request rejected")
			if onReject != nil {
				onReject(info.FullMethod)
			}
			return nil, ErrRateLimited
		}
		return handler(ctx, req)
	}
}

func rateLimitKey(ctx context.Context) string {
	if uid := action.UserIDFromContext(ctx); uid != "" {
		return "user:" + uid
	}
	return "ip:" + strings.ToLower(ClientIP(ctx))
}
