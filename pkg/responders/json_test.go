package responders

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestData(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusCreated, map[string]string{"id": "<p1>"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"data":{"id":"<p1>"}}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec, http.StatusNoContent)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("expected empty 204, got %d %q", rec.Code, rec.Body.String())
	}
}
