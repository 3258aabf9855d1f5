package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", []string{"https://app.example.com/"}, http.MethodGet, "https://app.example.com", "https://app.example.com", http.StatusTeapot},
		{"unknown origin", []string{"https://app.example.com"}, http.MethodGet, "https://evil.example.com", "", http.StatusTeapot},
		{"wildcard", []string{"*"}, http.MethodGet, "https://any.example.com", "https://any.example.com", http.StatusTeapot},
		{"no list", nil, http.MethodGet, "https://app.example.com", "", http.StatusTeapot},
		{"preflight", []string{"*"}, http.MethodOptions, "https://app.example.com", "https://app.example.com", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Middleware(tt.allowed)(next)
			req := httptest.NewRequest(tt.method, "/registry/out", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if rr.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("Access-Control-Allow-Methods not set")
			}
		})
	}
}
