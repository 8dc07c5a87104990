package bizengine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func healthContext(t *testing.T, s *Store) (*App, echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	a := &App{Store: s, Log: zap.NewNop()}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	return a, e.NewContext(req, rec), rec
}

func TestHandleHealthOK(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	a, c, rec := healthContext(t, s)
	if err := a.handleHealth(c); err != nil {
		t.Fatalf("handleHealth: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.Status != "ok" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	s, cleanup := setupTestStore(t)
	cleanup()

	a, c, rec := healthContext(t, s)
	if err := a.handleHealth(c); err != nil {
		t.Fatalf("handleHealth: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Error("degraded health reported success = true")
	}
	if resp.Code != codeUnavailable {
		t.Errorf("code = %q, want %q", resp.Code, codeUnavailable)
	}
}
