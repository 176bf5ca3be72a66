package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/woocommerce/order", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, wantRemaining := range []int{2, 1, 0} {
		allowed, remaining, reset := l.Allow("k", start.Add(time.Duration(i)*time.Second))
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, wantRemaining, remaining)
		assert.Equal(t, start.Add(time.Minute), reset)
	}
	allowed, _, _ := l.Allow("k", start.Add(10*time.Second))
	assert.False(t, allowed)

	// Halfway through the next window about half of the previous count
	// still applies.
	allowed, _, _ = l.Allow("k", start.Add(90*time.Second))
	assert.True(t, allowed)
	allowed, _, _ = l.Allow("k", start.Add(91*time.Second))
	assert.True(t, allowed)
	allowed, _, _ = l.Allow("k", start.Add(92*time.Second))
	assert.False(t, allowed)

	allowed, remaining, _ := l.Allow("k", start.Add(5*time.Minute))
	assert.True(t, allowed, "idle counters reset")
	assert.Equal(t, 2, remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Allow("a", now)
	l.Allow("b", now.Add(90*time.Second))

	l.Sweep(now.Add(2 * time.Minute))

	assert.NotContains(t, l.counters, "a")
	assert.Contains(t, l.counters, "b")
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		w := serve(h, "10.0.0.1:9999", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := serve(h, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	fields := map[string]string{}
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		fields[key] = v
		return err
	}))
	assert.Equal(t, map[string]string{"status": "error", "message": "rate limit exceeded"}, fields)
}

type client struct {
	addr    string
	headers map[string]string
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		first   client
		same    client
		another client
	}{
		{
			name:    "remote address",
			cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
			first:   client{addr: "10.0.0.1:1234"},
			same:    client{addr: "10.0.0.1:5678"},
			another: client{addr: "10.0.0.2:1234"},
		},
		{
			name:    "forwarded for",
			cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
			first:   client{addr: "192.168.1.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}},
			same:    client{addr: "192.168.1.2:2", headers: map[string]string{"X-Forwarded-For": "203.0.113.50"}},
			another: client{addr: "192.168.1.1:1", headers: map[string]string{"X-Real-IP": "198.51.100.7"}},
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: func(r *http.Request) string {
				return r.Header.Get("api_key")
			}},
			first:   client{addr: "10.0.0.1:1", headers: map[string]string{"api_key": "a"}},
			same:    client{addr: "10.0.0.9:1", headers: map[string]string{"api_key": "a"}},
			another: client{addr: "10.0.0.1:1", headers: map[string]string{"api_key": "b"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RateLimit(tt.cfg)(okHandler())
			assert.Equal(t, http.StatusOK, serve(h, tt.first.addr, tt.first.headers).Code)
			assert.Equal(t, http.StatusTooManyRequests, serve(h, tt.same.addr, tt.same.headers).Code)
			assert.Equal(t, http.StatusOK, serve(h, tt.another.addr, tt.another.headers).Code)
		})
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(RateLimitConfig{})(okHandler())
	for range 5 {
		w := serve(h, "10.0.0.1:1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
