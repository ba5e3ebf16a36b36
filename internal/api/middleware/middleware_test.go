package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"honeypot-lab/internal/config"
	"honeypot-lab/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetAPIKey(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	keys := []string{"alpha", "beta"}

	tests := []struct {
		name       string
		keys       []string
		method     string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid header", keys, http.MethodPost, "beta", "", http.StatusOK, "beta"},
		{"valid query", keys, http.MethodGet, "", "?api_key=alpha", http.StatusOK, "alpha"},
		{"missing key", keys, http.MethodPost, "", "", http.StatusUnauthorized, ""},
		{"wrong key", keys, http.MethodPost, "gamma", "", http.StatusForbidden, ""},
		{"preflight", keys, http.MethodOptions, "", "", http.StatusOK, ""},
		{"auth disabled", nil, http.MethodPost, "", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/message"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("x-api-key", tt.header)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(tt.keys)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, limit int64, _ time.Duration) (bool, int64, time.Time, error) {
	f.keys = append(f.keys, key)
	return f.allowed, 0, time.Now().Add(time.Minute), f.err
}

func TestRateLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RequestsPerMinute: 10}

	tests := []struct {
		name       string
		limiter    *fakeLimiter
		wantStatus int
	}{
		{"allowed", &fakeLimiter{allowed: true}, http.StatusOK},
		{"limited", &fakeLimiter{allowed: false}, http.StatusTooManyRequests},
		{"store error fails open", &fakeLimiter{err: errors.New("redis down")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/message", nil)
			req.Header.Set("x-api-key", "alpha")
			rec := httptest.NewRecorder()

			RateLimiter(tt.limiter, cfg, logger.NewNop())(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != "key:alpha" {
				t.Errorf("limiter keys = %v", tt.limiter.keys)
			}
		})
	}
}

func TestRateLimiterFallsBackToIP(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "10.0.0.1"

	RateLimiter(limiter, config.RateLimitConfig{RequestsPerMinute: 1}, logger.NewNop())(okHandler()).
		ServeHTTP(httptest.NewRecorder(), req)

	if limiter.keys[0] != "ip:10.0.0.1" {
		t.Errorf("client id = %q", limiter.keys[0])
	}
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   zerolog.Level
	}{
		{"/message", 200, zerolog.InfoLevel},
		{"/health", 200, zerolog.DebugLevel},
		{"/message", 403, zerolog.WarnLevel},
		{"/health", 503, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("requestLevel(%s, %d) = %v, want %v", tt.path, tt.status, got, tt.want)
		}
	}
}
