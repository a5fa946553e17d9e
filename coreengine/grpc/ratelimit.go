package grpc

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// =============================================================================
// Rate Limit Config & Result
// =============================================================================

// RateLimitConfig bounds how many turns a session may run. Zero disables a window.
type RateLimitConfig struct {
	TurnsPerMinute int `yaml:"turns_per_minute" json:"turns_per_minute"`
	TurnsPerHour   int `yaml:"turns_per_hour" json:"turns_per_hour"`
}

// DefaultRateLimitConfig returns the server defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		TurnsPerMinute: 20,
		TurnsPerHour:   300,
	}
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool
	LimitType  string // "minute" or "hour"
	Current    int
	Limit      int
	RetryAfter time.Duration
}

// =============================================================================
// Sliding Window
// =============================================================================

// slidingWindow counts events in sub-buckets of one window.
type slidingWindow struct {
	window      time.Duration
	bucketCount int
	buckets     map[int64]int
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{window: window, bucketCount: 10, buckets: make(map[int64]int)}
}

func (w *slidingWindow) bucketOf(now time.Time) int64 {
	return now.UnixNano() / int64(w.window/time.Duration(w.bucketCount))
}

func (w *slidingWindow) prune(now time.Time) {
	minBucket := w.bucketOf(now) - int64(w.bucketCount) + 1
	for b := range w.buckets {
		if b < minBucket {
			delete(w.buckets, b)
		}
	}
}

func (w *slidingWindow) count(now time.Time) int {
	w.prune(now)
	total := 0
	for _, c := range w.buckets {
		total += c
	}
	return total
}

func (w *slidingWindow) record(now time.Time) {
	w.prune(now)
	w.buckets[w.bucketOf(now)]++
}

// retryAfter estimates when the count drops below limit.
func (w *slidingWindow) retryAfter(now time.Time, limit int) time.Duration {
	excess := w.count(now) - limit + 1
	if excess <= 0 {
		return 0
	}
	keys := make([]int64, 0, len(w.buckets))
	for b := range w.buckets {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	bucketSize := w.window / time.Duration(w.bucketCount)
	expired := 0
	for _, b := range keys {
		expired += w.buckets[b]
		if expired >= excess {
			// bucket b is pruned once the current bucket reaches b+bucketCount
			leaves := time.Unix(0, (b+int64(w.bucketCount))*int64(bucketSize))
			if d := leaves.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return w.window
}

// =============================================================================
// Rate Limiter
// =============================================================================

type windowKey struct {
	key        string
	windowType string
}

// RateLimiter applies per-key sliding-window limits. Safe for concurrent use.
type RateLimiter struct {
	cfg     RateLimitConfig
	windows map[windowKey]*slidingWindow
	now     func() time.Time
	calls   int
	mu      sync.Mutex
}

// sweepEvery is how many Allow calls pass between expired-window sweeps.
const sweepEvery = 256

// NewRateLimiter creates a limiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, windows: make(map[windowKey]*slidingWindow), now: time.Now}
}

// Allow checks key against every window and records the request when allowed.
func (r *RateLimiter) Allow(key string) RateLimitResult {
	now := r.now()
	checks := []struct {
		windowType string
		window     time.Duration
		limit      int
	}{
		{"minute", time.Minute, r.cfg.TurnsPerMinute},
		{"hour", time.Hour, r.cfg.TurnsPerHour},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls%sweepEvery == 0 {
		r.cleanupLocked(now)
	}

	for _, check := range checks {
		if check.limit <= 0 {
			continue
		}
		w := r.window(windowKey{key, check.windowType}, check.window)
		if current := w.count(now); current >= check.limit {
			return RateLimitResult{
				LimitType:  check.windowType,
				Current:    current,
				Limit:      check.limit,
				RetryAfter: w.retryAfter(now, check.limit),
			}
		}
	}

	for _, check := range checks {
		if check.limit > 0 {
			r.window(windowKey{key, check.windowType}, check.window).record(now)
		}
	}
	return RateLimitResult{Allowed: true}
}

func (r *RateLimiter) window(k windowKey, d time.Duration) *slidingWindow {
	w, ok := r.windows[k]
	if !ok {
		w = newSlidingWindow(d)
		r.windows[k] = w
	}
	return w
}

// CleanupExpired drops windows with no events left. Returns the number removed.
func (r *RateLimiter) CleanupExpired() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupLocked(now)
}

func (r *RateLimiter) cleanupLocked(now time.Time) int {
	cleaned := 0
	for k, w := range r.windows {
		if w.count(now) == 0 {
			delete(r.windows, k)
			cleaned++
		}
	}
	return cleaned
}

// =============================================================================
// Interceptor
// =============================================================================

// ResourceExhausted returns an error for a limit violation.
func ResourceExhausted(resourceType string, res RateLimitResult) error {
	return status.Errorf(codes.ResourceExhausted,
		"%s limit exceeded: %d/%d per %s, retry in %s",
		resourceType, res.Current, res.Limit, res.LimitType, res.RetryAfter.Round(time.Second))
}

// RateLimitInterceptor limits SendMessage calls per session_id. Other
// methods and requests without a session pass through.
func RateLimitInterceptor(limiter *RateLimiter) grpc.UnaryServerInterceptor {
	sendMessage := "/" + ServiceName + "/SendMessage"
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if info.FullMethod != sendMessage {
			return handler(ctx, req)
		}
		in, ok := req.(*structpb.Struct)
		if !ok {
			return handler(ctx, req)
		}
		key := stringField(in, "session_id")
		if key == "" {
			return handler(ctx, req)
		}
		if res := limiter.Allow(key); !res.Allowed {
			return nil, ResourceExhausted("turn", res)
		}
		return handler(ctx, req)
	}
}
