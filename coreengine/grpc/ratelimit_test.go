package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeClock returns a settable clock for the limiter.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(cfg)
	l.now = clock.now
	return l, clock
}

// =============================================================================
// RATE LIMITER TESTS
// =============================================================================

func TestRateLimiter_MinuteWindow(t *testing.T) {
	l, clock := newTestLimiter(RateLimitConfig{TurnsPerMinute: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("s-1").Allowed, "turn %d", i)
	}

	res := l.Allow("s-1")
	assert.False(t, res.Allowed)
	assert.Equal(t, "minute", res.LimitType)
	assert.Equal(t, 3, res.Current)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, time.Minute, res.RetryAfter)

	// other keys are independent
	assert.True(t, l.Allow("s-2").Allowed)

	clock.advance(59 * time.Second)
	assert.False(t, l.Allow("s-1").Allowed, "window still holds the turns")

	clock.advance(time.Second)
	assert.True(t, l.Allow("s-1").Allowed, "window is exactly one minute long")
}

func TestRateLimiter_HourWindow(t *testing.T) {
	l, clock := newTestLimiter(RateLimitConfig{TurnsPerMinute: 0, TurnsPerHour: 2})

	assert.True(t, l.Allow("s-1").Allowed)
	clock.advance(10 * time.Minute)
	assert.True(t, l.Allow("s-1").Allowed)
	clock.advance(10 * time.Minute)

	res := l.Allow("s-1")
	assert.False(t, res.Allowed)
	assert.Equal(t, "hour", res.LimitType)
}

func TestRateLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("s-1").Allowed)
	}
}

func TestRateLimiter_CleanupExpired(t *testing.T) {
	l, clock := newTestLimiter(RateLimitConfig{TurnsPerMinute: 5})
	l.Allow("s-1")
	l.Allow("s-2")

	assert.Equal(t, 0, l.CleanupExpired())
	clock.advance(2 * time.Minute)
	assert.Equal(t, 2, l.CleanupExpired())
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.Equal(t, 20, cfg.TurnsPerMinute)
	assert.Equal(t, 300, cfg.TurnsPerHour)
}

// =============================================================================
// INTERCEPTOR TESTS
// =============================================================================

func TestRateLimitInterceptor(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{TurnsPerMinute: 1})
	interceptor := RateLimitInterceptor(l)
	ok := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	send := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/SendMessage"}
	progress := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetProgress"}
	req, err := structpb.NewStruct(map[string]any{"session_id": "s-1", "text": "oi"})
	require.NoError(t, err)

	_, err = interceptor(context.Background(), req, send, ok)
	require.NoError(t, err)

	_, err = interceptor(context.Background(), req, send, ok)
	require.Error(t, err)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
	assert.Contains(t, st.Message(), "turn limit exceeded: 1/1 per minute")

	// other methods are not limited
	_, err = interceptor(context.Background(), req, progress, ok)
	assert.NoError(t, err)

	// without a session the handler validates the request
	empty, _ := structpb.NewStruct(map[string]any{})
	_, err = interceptor(context.Background(), empty, send, ok)
	assert.NoError(t, err)
}

func TestRateLimitOverGRPC(t *testing.T) {
	c := startLimitedServer(t, trMock(), NewRateLimiter(RateLimitConfig{TurnsPerMinute: 1}))
	id := startSession(t, c)

	call(t, c, "SendMessage", map[string]any{"session_id": id, "text": "gerar o TR"})
	assert.Equal(t, codes.ResourceExhausted, callErr(t, c, "SendMessage", map[string]any{"session_id": id, "text": "gerar o TR"}))

	// reads stay available
	call(t, c, "GetProgress", map[string]any{"session_id": id})
}
