// internal/api/handler/api/backtest_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/zhunle/internal/api/response"
	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/config"
	"github.com/newthinker/zhunle/internal/session"
)

const upstreamResult = `{
	"bt_id": "bt-1",
	"window": {"start": "2024-01-02", "end": "2024-01-05", "trading_days": 4},
	"benchmark": "HS300",
	"summary": {"win_rate": 0.5, "ret": 0.03},
	"items": [
		{"code": "600519", "name": "贵州茅台", "buy_date": "2024-01-02", "ret": 0.08, "grade": "秀"},
		{"code": "000002", "name": "万科A", "buy_date": "2024-01-02", "ret": -0.02, "grade": "拉完了"}
	],
	"item_equities": [
		{"code": "600519", "name": "贵州茅台", "points": [{"date": "2024-01-02", "ret": 0.01}, {"date": "2024-01-03", "ret": 0.0234}]},
		{"code": "000002", "name": "万科A", "points": [{"date": "2024-01-03", "ret": -0.01}]}
	]
}`

func newTestHandler(t *testing.T) *BacktestHandler {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/backtest/bt-1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(upstreamResult))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "回测不存在"}`))
		}
	}))
	t.Cleanup(upstream.Close)

	c := client.New(upstream.URL, client.WithMaxRetries(0), client.WithCache(time.Minute, 10))
	a := app.New(config.Defaults(), c, nil)
	return NewBacktestHandler(a, time.Hour)
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp response.SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v, body: %s", err, w.Body.String())
	}
	return resp.Data.(map[string]any)
}

func TestBacktestHandler_View(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/backtest/bt-1/view", nil)
	req.SetPathValue("id", "bt-1")
	w := httptest.NewRecorder()

	handler.View(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	data := decodeView(t, w)
	if data["session_id"] == "" {
		t.Error("expected session_id")
	}
	if w.Header().Get(session.HeaderName) != data["session_id"] {
		t.Error("expected session header to match body")
	}

	items := data["items"].([]any)
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	chart := data["chart"].(map[string]any)
	rows := chart["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("expected 2 aligned rows, got %d", len(rows))
	}
	second := rows[1].(map[string]any)
	values := second["values"].(map[string]any)
	if values["600519"] != 2.34 || values["000002"] != -1.0 {
		t.Errorf("unexpected values on 2024-01-03: %v", values)
	}
	first := rows[0].(map[string]any)["values"].(map[string]any)
	if _, ok := first["000002"]; ok {
		t.Error("missing observation must not be filled")
	}

	sel := data["selection"].(map[string]any)
	if sel["all_selected"] != true || sel["only_selected"] != true {
		t.Errorf("expected everything selected, got %v", sel)
	}
}

func TestBacktestHandler_ViewNotFound(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/backtest/missing/view", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.View(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	var resp response.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "BACKTEST_NOT_FOUND" {
		t.Errorf("expected BACKTEST_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestBacktestHandler_Select(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/backtest/bt-1/view", nil)
	req.SetPathValue("id", "bt-1")
	w := httptest.NewRecorder()
	handler.View(w, req)
	sid := w.Header().Get(session.HeaderName)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/v1/backtest/bt-1/selection", bytes.NewBufferString(body))
		req.SetPathValue("id", "bt-1")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(session.HeaderName, sid)
		w := httptest.NewRecorder()
		handler.Select(w, req)
		return w
	}

	w = post(`{"action": "toggle", "code": "000002"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeView(t, w)
	if data["session_id"] != sid {
		t.Errorf("expected session %s to be kept, got %v", sid, data["session_id"])
	}
	items := data["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["code"] != "600519" {
		t.Errorf("expected only 600519 visible, got %v", items)
	}
	codes := data["chart"].(map[string]any)["codes"].([]any)
	if len(codes) != 1 || codes[0] != "600519" {
		t.Errorf("expected chart for 600519 only, got %v", codes)
	}

	w = post(`{"action": "only_selected", "value": false}`)
	data = decodeView(t, w)
	if len(data["items"].([]any)) != 2 {
		t.Error("turning the filter off should show every item")
	}
}

func TestBacktestHandler_SelectBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"action":`},
		{"unknown action", `{"action": "select_some"}`},
		{"toggle without code", `{"action": "toggle"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/backtest/bt-1/selection", bytes.NewBufferString(tt.body))
			req.SetPathValue("id", "bt-1")
			w := httptest.NewRecorder()

			handler.Select(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			var resp response.ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Error.Code != "INVALID_REQUEST" {
				t.Errorf("expected INVALID_REQUEST, got %s", resp.Error.Code)
			}
		})
	}
}
