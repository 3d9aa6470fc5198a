package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/listening-monitor/internal/application"
	"github.com/example/listening-monitor/internal/testfixtures"
)

func TestClientAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "first forwarded hop", forwarded: "203.0.113.7, 10.0.0.1", realIP: "198.51.100.2", remoteAddr: "10.0.0.9:5555", want: "203.0.113.7"},
		{name: "real ip header", realIP: "198.51.100.2", remoteAddr: "10.0.0.9:5555", want: "198.51.100.2"},
		{name: "connection address", remoteAddr: "10.0.0.9:5555", want: "10.0.0.9"},
		{name: "address without port", remoteAddr: "10.0.0.9", want: "10.0.0.9"},
		{name: "blank forwarded header", forwarded: " ,10.0.0.1", remoteAddr: "10.0.0.9:5555", want: "10.0.0.9"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := clientAddress(req); got != tt.want {
				t.Fatalf("clientAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	handler := ClientIP()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = application.ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "198.51.100.2" {
		t.Fatalf("expected client ip in context, got %q", got)
	}
}

func TestRequestLoggerAttachesRequestScope(t *testing.T) {
	t.Parallel()

	var (
		id        string
		hasLogger bool
	)
	handler := RequestLogger(testfixtures.DiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ = RequestIDFromContext(r.Context())
		hasLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if id == "" || rec.Header().Get("X-Request-ID") != id {
		t.Fatalf("expected request id %q echoed in header, got %q", id, rec.Header().Get("X-Request-ID"))
	}
	if !hasLogger {
		t.Fatal("expected request scoped logger in context")
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected wrapped status to pass through, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests beyond the burst per client", func(t *testing.T) {
		t.Parallel()
		limiter := NewRateLimiter(0.001, 2)
		handler := limiter.Middleware(testfixtures.DiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		send := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/stop-listening/u1", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		for i := 0; i < 2; i++ {
			if rec := send("10.0.0.1:1000"); rec.Code != http.StatusNoContent {
				t.Fatalf("request %d: expected 204, got %d", i+1, rec.Code)
			}
		}
		rec := send("10.0.0.1:1001")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 once the burst is spent, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}
		if rec := send("10.0.0.2:1000"); rec.Code != http.StatusNoContent {
			t.Fatalf("expected other clients to be unaffected, got %d", rec.Code)
		}
	})

	t.Run("non-positive rate disables limiting", func(t *testing.T) {
		t.Parallel()
		limiter := NewRateLimiter(0, 1)
		for i := 0; i < 5; i++ {
			if !limiter.Allow("10.0.0.1") {
				t.Fatalf("request %d unexpectedly limited", i+1)
			}
		}
	})
}

func TestRouterAppliesRateLimitToWritesOnly(t *testing.T) {
	t.Parallel()

	logger := testfixtures.DiscardLogger()
	handler := NewRouter(RouterConfig{
		Maintenance: NewMaintenanceHandler(stubRetention{}, 30, "test", nil, logger),
		RateLimiter: NewRateLimiter(0.001, 1),
		Logger:      logger,
	})

	serve := func(method, target string) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec.Code
	}

	if code := serve(http.MethodPost, "/api/maintenance/cleanup?dry_run=true"); code != http.StatusOK {
		t.Fatalf("first cleanup: expected 200, got %d", code)
	}
	if code := serve(http.MethodPost, "/api/maintenance/cleanup?dry_run=true"); code != http.StatusTooManyRequests {
		t.Fatalf("second cleanup: expected 429, got %d", code)
	}
	for i := 0; i < 3; i++ {
		if code := serve(http.MethodGet, "/health"); code != http.StatusOK {
			t.Fatalf("liveness %d: expected 200, got %d", i+1, code)
		}
	}
}

type stubRetention struct{}

func (stubRetention) CleanupOldData(ctx context.Context, days int) (application.CleanupReport, error) {
	return application.CleanupReport{}, nil
}

func (stubRetention) PreviewCleanup(ctx context.Context, days int) (application.CleanupReport, error) {
	return application.CleanupReport{DryRun: true}, nil
}
