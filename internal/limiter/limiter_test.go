package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLimiter(t *testing.T, rate int64, now *time.Time) *MemoryFixedWindowLimiter {
	t.Helper()
	l, err := NewMemoryFixedWindowLimiter(&Config{Rate: rate, Window: time.Minute})
	require.NoError(t, err)
	l.now = func() time.Time { return *now }
	return l
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Rate: 5, Window: time.Minute}, false},
		{"zero rate", Config{Rate: 0, Window: time.Minute}, true},
		{"sub-second window", Config{Rate: 5, Window: 500 * time.Millisecond}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryFixedWindowLimiter_Allow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	l := newTestMemoryLimiter(t, 3, &now)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := l.Allow(ctx, "c1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)

	// 其他 key 不受影响
	res, err = l.Allow(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// 进入下一个窗口后恢复
	now = now.Add(time.Minute)
	res, err = l.Allow(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), res.Remaining)
}

func TestMemoryFixedWindowLimiter_ResetAndInfo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	l := newTestMemoryLimiter(t, 2, &now)
	ctx := context.Background()

	_, err := l.AllowN(ctx, "k", 2)
	require.NoError(t, err)

	info, err := l.GetInfo(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Remaining)
	assert.Equal(t, now.Add(time.Minute).Unix(), info.ResetTime.Unix())

	require.NoError(t, l.Reset(ctx, "k"))
	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckoutKeyGenerator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "customerId", Value: "cli-1"}}
	assert.Equal(t, "checkout:customer:cli-1", CheckoutKeyGenerator(c))

	c.Params = nil
	c.Request.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "checkout:ip:10.0.0.1", CheckoutKeyGenerator(c))
}

func TestCheckoutRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	l := newTestMemoryLimiter(t, 1, &now)

	limited := 0
	r := gin.New()
	r.POST("/carts/:customerId/checkout",
		CheckoutRateLimitMiddleware(l, func(*gin.Context) { limited++ }),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)

	do := func(customer string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/carts/"+customer+"/checkout", nil)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, do("a").Code)

	w := do("a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "10029")
	assert.Equal(t, 1, limited)

	assert.Equal(t, http.StatusCreated, do("b").Code)
}

func TestFixedWindowLimiter_Redis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	l, err := NewFixedWindowLimiter(client, &Config{Rate: 2, Window: time.Minute, KeyPrefix: "test:limiter"})
	require.NoError(t, err)

	ctx = context.Background()
	require.NoError(t, l.Reset(ctx, "redis-key"))
	defer l.Reset(ctx, "redis-key")

	res, err := l.AllowN(ctx, "redis-key", 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "redis-key")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	info, err := l.GetInfo(ctx, "redis-key")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Remaining)
}

func TestNewFixedWindowLimiter_RequiresClient(t *testing.T) {
	_, err := NewFixedWindowLimiter(nil, &Config{Rate: 1, Window: time.Second})
	assert.Error(t, err)
}
