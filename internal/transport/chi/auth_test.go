package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func authRecorder(keys []string, path, header string) *httptest.ResponseRecorder {
	handler := BearerAuthMiddleware(keys)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{"no keys", nil, "/documents", "", http.StatusOK},
		{"blank keys", []string{"", "  "}, "/triples", "", http.StatusOK},
		{"missing header", []string{"secret"}, "/documents", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "/documents", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", []string{"secret"}, "/documents", "Bearer ", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, "/convergence", "Bearer wrong", http.StatusUnauthorized},
		{"valid key", []string{"secret"}, "/convergence", "Bearer secret", http.StatusOK},
		{"lowercase scheme", []string{"secret"}, "/refinements", "bearer secret", http.StatusOK},
		{"second key", []string{"k1", "k2"}, "/triples", "Bearer k2", http.StatusOK},
		{"health is public", []string{"secret"}, "/health", "", http.StatusOK},
		{"metrics is public", []string{"secret"}, "/metrics", "", http.StatusOK},
		{"events need a key", []string{"secret"}, "/events", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := authRecorder(tc.keys, tc.path, tc.header)
			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d", rr.Code, tc.want)
			}
			if tc.want != http.StatusUnauthorized {
				return
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate challenge")
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Code != CodeUnauthorized {
				t.Errorf("code = %s, want %s", resp.Code, CodeUnauthorized)
			}
		})
	}
}
