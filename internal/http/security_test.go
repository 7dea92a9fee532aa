package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff, xri   string
		want       string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy xff", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy garbage", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSuspicious(t *testing.T) {
	m := &securityMetrics{}
	if isSuspicious(httptest.NewRequest("GET", "/api/accounts", nil), m) {
		t.Error("plain request flagged")
	}
	if !isSuspicious(httptest.NewRequest("GET", "/api/../../etc/passwd", nil), m) {
		t.Error("traversal not flagged")
	}
	if m.suspiciousRequests != 1 {
		t.Errorf("suspiciousRequests = %d, want 1", m.suspiciousRequests)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	metrics := &securityMetrics{}
	if !rl.allow("a", metrics) || rl.allow("a", metrics) {
		t.Fatal("expected first request allowed and second denied")
	}
	if !rl.allow("b", metrics) {
		t.Fatal("other client should be allowed")
	}
	now = now.Add(61 * time.Second)
	if !rl.allow("a", metrics) {
		t.Fatal("new window should allow")
	}
	if metrics.rateLimitHits != 1 {
		t.Errorf("rateLimitHits = %d, want 1", metrics.rateLimitHits)
	}

	now = now.Add(time.Hour)
	if n := rl.cleanupStaleEntries(); n != 2 {
		t.Errorf("cleanupStaleEntries = %d, want 2", n)
	}
	rl.stop()
}
