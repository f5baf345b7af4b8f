package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusOK},
		{"valid", "secret", "Bearer secret", http.StatusOK},
		{"missing", "secret", "", http.StatusUnauthorized},
		{"wrong", "secret", "Bearer other", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic secret", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/identities", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			RequireToken(tc.token)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://kiosk.example.com", " "})(okHandler)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://kiosk.example.com", "https://kiosk.example.com"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"http://localhost.evil.com", ""},
		{"https://other.example.com", ""},
		{"", ""},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
			t.Errorf("origin %q: Allow-Origin = %q, want %q", tc.origin, got, tc.want)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recognize", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || called {
		t.Errorf("preflight should be answered by the middleware, code %d called %v", rec.Code, called)
	}
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(1)(okHandler)

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/recognize", nil))
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusOK {
		t.Errorf("first request = %d, want 200", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("burst over the limit should be rejected, got %v", codes)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(0)(okHandler)
	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
}
