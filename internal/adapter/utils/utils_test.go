package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRouter_Fallbacks(t *testing.T) {
	r := GetRouter().Router
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/ping", http.StatusMethodNotAllowed},
		{http.MethodGet, "/swagger", http.StatusMovedPermanently},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code == http.StatusNotFound || tt.code == http.StatusMethodNotAllowed {
				var body map[string]any
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Errorf("fallback should be JSON: %v", err)
				}
			}
		})
	}
}

func TestGetNewUUID_Unique(t *testing.T) {
	if GetNewUUID() == GetNewUUID() {
		t.Error("ids should differ")
	}
}
