package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/pause/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"localhost", "127.0.0.1", "*.pause.test"}, logger.NewNop())(okHandler)

	tests := []struct {
		host string
		want int
	}{
		{"localhost:8787", http.StatusOK},
		{"LOCALHOST", http.StatusOK},
		{"127.0.0.1:8787", http.StatusOK},
		{"ui.pause.test", http.StatusOK},
		{"pause.test", http.StatusForbidden},
		{"evil.example:8787", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("Host %q: code = %d, want %d", tt.host, rec.Code, tt.want)
			}
		})
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		remote     string
		xff        string
		trustProxy bool
		want       int
	}{
		{"empty list passes", nil, "203.0.113.1:1", "", false, http.StatusOK},
		{"loopback allowed", []string{"loopback"}, "127.0.0.1:1", "", false, http.StatusOK},
		{"outsider rejected", []string{"loopback"}, "203.0.113.1:1", "", false, http.StatusForbidden},
		{"spoofed header ignored", []string{"10.0.0.0/8"}, "203.0.113.1:1", "10.0.0.1", false, http.StatusForbidden},
		{"trusted proxy header", []string{"10.0.0.0/8"}, "127.0.0.1:1", "10.0.0.1", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, tt.trustProxy, logger.NewNop())(okHandler)
			r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("code = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
