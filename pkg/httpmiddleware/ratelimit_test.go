package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(t *testing.T, h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsUpToMax(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(noopHandler())

	for i := range 3 {
		w := hit(t, h, "198.51.100.7:1000", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := hit(t, h, "198.51.100.7:1000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(noopHandler())

	assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.2:1", nil).Code)
	// Port changes do not change the key.
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.0.0.1:9", nil).Code)
}

func TestRateLimit_ForwardedForTakesPrecedence(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(noopHandler())

	fwd := map[string]string{"X-Forwarded-For": "203.0.113.9, 192.0.2.1"}
	assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.1:1", fwd).Code)
	// Different RemoteAddr, same originating client.
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.0.0.2:1", fwd).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})(noopHandler())

	assert.Equal(t, http.StatusOK, hit(t, h, "1.1.1.1:1", map[string]string{"X-API-Key": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "2.2.2.2:1", map[string]string{"X-API-Key": "a"}).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "1.1.1.1:1", map[string]string{"X-API-Key": "b"}).Code)
}

func TestLimiter_SweepDropsIdleBuckets(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	l.take("stale", now)
	l.take("fresh", now.Add(90*time.Second))
	l.sweep(now.Add(2 * time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "stale")
	assert.Contains(t, l.buckets, "fresh")
}

func TestLimiter_WindowRotation(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Now().Truncate(time.Minute)

	require.True(t, l.take("k", start).ok)
	require.True(t, l.take("k", start.Add(time.Second)).ok)
	require.False(t, l.take("k", start.Add(2*time.Second)).ok)

	// Two full windows later both counters are stale and the key is fresh.
	assert.True(t, l.take("k", start.Add(2*time.Minute)).ok)
}
