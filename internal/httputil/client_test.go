package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		var in map[string]int
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"doubled": in["value"] * 2})
	}))
	defer srv.Close()

	var out struct {
		Doubled int `json:"doubled"`
	}
	err := PostJSON(context.Background(), NewClient(time.Second), srv.URL, map[string]int{"value": 21}, &out)
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.Doubled != 42 {
		t.Errorf("expected 42, got %d", out.Doubled)
	}
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"outcome":"service_unavailable"}`))
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), NewClient(time.Second), srv.URL, nil, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", statusErr.StatusCode)
	}
	if string(statusErr.Body) != `{"outcome":"service_unavailable"}` {
		t.Errorf("unexpected body %q", statusErr.Body)
	}
}

func TestPostJSON_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]string
	if err := PostJSON(context.Background(), NewClient(time.Second), srv.URL, nil, &out); err != nil {
		t.Fatalf("expected no error for empty body, got %v", err)
	}
}
