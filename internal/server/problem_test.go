package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, want %q", ct, "application/problem+json")
	}
	var p Problem
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return p
}

func TestBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/targets", nil)
	BadRequest(w, r, "form field target is required")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	p := decodeProblem(t, w)
	if p.Type != ProblemTypeBadRequest {
		t.Errorf("type = %q, want %q", p.Type, ProblemTypeBadRequest)
	}
	if p.Title != "Bad Request" {
		t.Errorf("title = %q, want %q", p.Title, "Bad Request")
	}
	if p.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", p.Status, http.StatusBadRequest)
	}
	if p.Detail != "form field target is required" {
		t.Errorf("detail = %q, want %q", p.Detail, "form field target is required")
	}
	if p.Instance != "/api/v1/targets" {
		t.Errorf("instance = %q, want %q", p.Instance, "/api/v1/targets")
	}
}

func TestInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/silent/toggle", nil)
	InternalError(w, r, "unknown silent toggle label")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	p := decodeProblem(t, w)
	if p.Type != ProblemTypeInternal {
		t.Errorf("type = %q, want %q", p.Type, ProblemTypeInternal)
	}
	if p.Title != "Internal Server Error" {
		t.Errorf("title = %q, want %q", p.Title, "Internal Server Error")
	}
}

func TestRateLimited_RetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		after time.Duration
		want  string
	}{
		{"rounds up", 1500 * time.Millisecond, "2"},
		{"sub-second", 10 * time.Millisecond, "1"},
		{"unknown", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", nil)
			RateLimited(w, r, tt.after)

			if w.Code != http.StatusTooManyRequests {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
			}
			if got := w.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
			if p := decodeProblem(t, w); p.Type != ProblemTypeRateLimited {
				t.Errorf("type = %q, want %q", p.Type, ProblemTypeRateLimited)
			}
		})
	}
}

func TestWriteProblem_OmitsEmptyOptionalFields(t *testing.T) {
	w := httptest.NewRecorder()

	WriteProblem(w, Problem{
		Type:   ProblemTypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	})

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := raw["detail"]; ok {
		t.Error("expected detail to be omitted when empty")
	}
	if _, ok := raw["instance"]; ok {
		t.Error("expected instance to be omitted when empty")
	}
}
