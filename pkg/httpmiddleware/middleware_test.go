package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls = append(calls, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

func panicking(v any) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(v) })
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	inject := InjectLogger(zap.New(core))

	t.Run("plain", func(t *testing.T) {
		w := httptest.NewRecorder()
		Wrap(panicking("boom"), inject, Recovery(nil)).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/product", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "close", w.Header().Get("Connection"))
	})
	t.Run("responder", func(t *testing.T) {
		var got any
		respond := func(w http.ResponseWriter, _ *http.Request, rec any) {
			got = rec
			w.WriteHeader(http.StatusTeapot)
		}
		w := httptest.NewRecorder()
		Wrap(panicking("boom"), inject, Recovery(respond)).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "boom", got)
	})
	t.Run("abort", func(t *testing.T) {
		h := Recovery(nil)(panicking(http.ErrAbortHandler))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})

	entries := logs.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/api/product", entries[0].ContextMap()["path"])
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "generated", incoming: ""},
		{name: "reused", incoming: "wc-1234", reuse: true},
		{name: "too long", incoming: strings.Repeat("a", 129)},
		{name: "control characters", incoming: "id\x01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.Len(t, seen, 36)
			}
		})
	}
	assert.Empty(t, RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Debug("Handling")
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}), RequestID(), InjectLogger(zap.New(core)), LogRequests())

	for _, path := range []string{"/ok", "/missing", "/fail"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(RequestIDHeader, "req"+path)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	handling := logs.FilterMessage("Handling").All()
	require.Len(t, handling, 3)
	assert.Equal(t, "req/ok", handling[0].ContextMap()["request_id"])

	requests := logs.FilterMessage("Request").All()
	require.Len(t, requests, 3)
	wantLevels := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	wantStatus := []int64{200, 404, 500}
	for i, e := range requests {
		assert.Equal(t, wantLevels[i], e.Level)
		assert.Equal(t, wantStatus[i], e.ContextMap()["status"])
		assert.Equal(t, "GET", e.ContextMap()["method"])
	}
}

func TestInstrument(t *testing.T) {
	h := Instrument("leasing-bridge", tracenoop.NewTracerProvider(), noop.NewMeterProvider())(okHandler())

	for _, path := range []string{"/api/product", "/livez"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
