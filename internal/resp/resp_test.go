package resp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}
	OK(w, &data, "req-1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("expected X-Request-ID req-1, got %q", got)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"].(float64) != CodeOK {
		t.Errorf("expected code 0, got %v", body["code"])
	}
	if body["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", body["request_id"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, CodeNotFound, "product not found", "", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := body["data"]; ok {
		t.Errorf("error response must not carry data")
	}
	if body["message"] != "product not found" {
		t.Errorf("unexpected message %v", body["message"])
	}
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{CodeOK, http.StatusOK},
		{CodeInvalidParam, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInsufficientStock, http.StatusConflict},
		{CodeInvalidTransition, http.StatusConflict},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternalError, http.StatusInternalServerError},
		{-1, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatusFromCode(tt.code); got != tt.want {
			t.Errorf("HTTPStatusFromCode(%d) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
