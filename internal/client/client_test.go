package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/zhunle/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const backtestJSON = `{
	"bt_id": "bt-1",
	"window": {"start": "2024-01-02", "end": "2024-01-31", "trading_days": 21},
	"benchmark": "HS300",
	"summary": {"win_rate": 0.5, "ret": 0.031, "sharpe": 1.2},
	"item_equities": [
		{"code": "600519", "name": "贵州茅台", "points": [{"date": "2024-01-02", "ret": 0.01}]}
	],
	"items": [
		{"code": "600519", "name": "贵州茅台", "buy_date": "2024-01-02", "ret": 0.05, "grade": "秀", "flags": ["ST"]},
		{"code": "000002", "name": "万科A", "buy_date": "2024-01-02"}
	]
}`

type recorder struct {
	calls atomic.Int64
}

func (r *recorder) RecordUpstream(endpoint, status string, duration float64) {
	r.calls.Add(1)
}

func TestClient_GetBacktest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/backtest/bt-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(backtestJSON))
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(srv.URL+"/api/", WithRecorder(rec))
	result, err := c.GetBacktest(context.Background(), "bt-1")
	if err != nil {
		t.Fatalf("GetBacktest failed: %v", err)
	}

	if result.ID != "bt-1" || result.Benchmark != "HS300" {
		t.Errorf("unexpected result header: %+v", result)
	}
	if len(result.Items) != 2 || len(result.ItemEquities) != 1 {
		t.Fatalf("expected 2 items and 1 series, got %d and %d", len(result.Items), len(result.ItemEquities))
	}
	if result.Items[0].Grade != core.GradeExcellent {
		t.Errorf("expected grade 秀, got %s", result.Items[0].Grade)
	}
	if result.Items[1].Return != nil {
		t.Error("absent return must stay nil")
	}
	if result.Items[0].Return == nil || *result.Items[0].Return != 0.05 {
		t.Error("expected return 0.05")
	}
	if rec.calls.Load() != 1 {
		t.Errorf("expected 1 recorded call, got %d", rec.calls.Load())
	}
}

func TestClient_GetBacktest_Cached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(backtestJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, WithCache(time.Minute, 10))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.GetBacktest(ctx, "bt-1"); err != nil {
			t.Fatalf("GetBacktest failed: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}

	c.Refresh("bt-1")
	if _, err := c.GetBacktest(ctx, "bt-1"); err != nil {
		t.Fatalf("GetBacktest failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected refresh to refetch, got %d hits", hits.Load())
	}
}

func TestClient_GetBacktest_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "回测不存在"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetBacktest(context.Background(), "missing")
	if !errors.Is(err, core.ErrBacktestNotFound) {
		t.Fatalf("expected ErrBacktestNotFound, got %v", err)
	}
	if UserMessage(err) != "回测不存在" {
		t.Errorf("expected service detail, got %q", UserMessage(err))
	}
}

func TestClient_GetBacktest_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(backtestJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, WithMaxRetries(2))
	if _, err := c.GetBacktest(context.Background(), "bt-1"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestClient_GetBacktest_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, WithMaxRetries(3))
	c.GetBacktest(context.Background(), "bt-1")
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestClient_GetBacktest_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"bt_id": `},
		{"missing id", `{"items": []}`},
		{"item without code", `{"bt_id": "bt-1", "items": [{"name": "x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, WithCache(time.Minute, 10))
			_, err := c.GetBacktest(context.Background(), "bt-1")
			if !errors.Is(err, core.ErrInvalidResponse) {
				t.Errorf("expected ErrInvalidResponse, got %v", err)
			}
			if c.cache.len() != 0 {
				t.Error("invalid body must not stay cached")
			}
		})
	}
}

func TestClient_GetBacktest_UnknownGrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bt_id": "bt-1", "items": [
			{"code": "600519", "grade": "秀"},
			{"code": "000002", "grade": "神"},
			{"code": "300750"}
		]}`))
	}))
	defer srv.Close()

	obs, logs := observer.New(zapcore.WarnLevel)
	c := New(srv.URL, WithLogger(zap.New(obs)))
	result, err := c.GetBacktest(context.Background(), "bt-1")
	if err != nil {
		t.Fatalf("unknown grade must not fail the fetch: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected all 3 items kept, got %d", len(result.Items))
	}

	warned := logs.FilterMessage("unknown grade from backtest service").All()
	if len(warned) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warned))
	}
	if code := warned[0].ContextMap()["code"]; code != "000002" {
		t.Errorf("expected warning for 000002, got %v", code)
	}
}

func TestClient_GetBacktest_EmptyID(t *testing.T) {
	c := New("http://127.0.0.1:0")
	_, err := c.GetBacktest(context.Background(), "")
	if !errors.Is(err, core.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestClient_GetBacktest_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(backtestJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(20*time.Millisecond), WithMaxRetries(0))
	_, err := c.GetBacktest(context.Background(), "bt-1")
	if !errors.Is(err, core.ErrUpstreamTimeout) {
		t.Errorf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestClient_CreateBacktest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			var req CreateRequest
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.PriceAdjust != "post" || len(req.Stocks) != 2 {
				t.Errorf("unexpected payload: %+v", req)
			}
		}
		w.Write([]byte(backtestJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, WithCache(time.Minute, 10))
	ctx := context.Background()
	result, err := c.CreateBacktest(ctx, CreateRequest{
		Stocks:        []string{"600519", "万科A"},
		RecommendDate: "2024-01-01",
		Benchmark:     "HS300",
	})
	if err != nil {
		t.Fatalf("CreateBacktest failed: %v", err)
	}
	if result.ID != "bt-1" {
		t.Errorf("expected bt-1, got %s", result.ID)
	}

	// created result is primed into the cache
	if _, err := c.GetBacktest(ctx, "bt-1"); err != nil {
		t.Fatalf("GetBacktest failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestClient_CreateBacktest_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"no stocks", CreateRequest{RecommendDate: "2024-01-01", Benchmark: "HS300"}},
		{"blank stock", CreateRequest{Stocks: []string{""}, RecommendDate: "2024-01-01", Benchmark: "HS300"}},
		{"bad date", CreateRequest{Stocks: []string{"600519"}, RecommendDate: "01/01/2024", Benchmark: "HS300"}},
		{"unknown benchmark", CreateRequest{Stocks: []string{"600519"}, RecommendDate: "2024-01-01", Benchmark: "SPX"}},
	}

	c := New("http://127.0.0.1:0")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateBacktest(context.Background(), tt.req)
			if !errors.Is(err, core.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestClient_CreateBacktest_QuotaExhausted(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail": "今日配额已用完"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.CreateBacktest(context.Background(), CreateRequest{
		Stocks: []string{"600519"}, RecommendDate: "2024-01-01", Benchmark: "SSE",
	})
	if !errors.Is(err, core.ErrUpstreamFailed) {
		t.Errorf("expected ErrUpstreamFailed, got %v", err)
	}
	if UserMessage(err) != "今日配额已用完" {
		t.Errorf("unexpected message %q", UserMessage(err))
	}
	if hits.Load() != 1 {
		t.Errorf("POST must not be retried, got %d attempts", hits.Load())
	}
}

func TestClient_GetRank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/rank/hot":
			if q.Has("k") {
				t.Error("hot board must not send k")
			}
		case "/rank/best":
			if q.Get("k") != "5" {
				t.Errorf("expected k=5, got %s", q.Get("k"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"type": "best", "days": 10, "limit": 20, "items": [{"code": "600519", "name": "贵州茅台", "grade": "秀"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	for _, kind := range []RankKind{RankHot, RankBest} {
		resp, err := c.GetRank(context.Background(), RankQuery{Kind: kind, Days: 10, Limit: 20, K: 5})
		if err != nil {
			t.Fatalf("GetRank(%s) failed: %v", kind, err)
		}
		if len(resp.Items) != 1 || resp.Items[0].Name != "贵州茅台" {
			t.Errorf("unexpected items: %+v", resp.Items)
		}
	}
}

func TestClient_GetQuotaAndRandomPick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quota":
			w.Write([]byte(`{"guest_remaining": 3, "login_remaining": 10, "quota_day": "2024-01-02"}`))
		case "/random":
			w.Write([]byte(`{"code": "000002", "name": "万科A", "grade": "NPC"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	q, err := c.GetQuota(context.Background())
	if err != nil {
		t.Fatalf("GetQuota failed: %v", err)
	}
	if q.GuestRemaining != 3 || q.LoginRemaining != 10 {
		t.Errorf("unexpected quota: %+v", q)
	}

	p, err := c.RandomPick(context.Background())
	if err != nil {
		t.Fatalf("RandomPick failed: %v", err)
	}
	if p.Code != "000002" || p.Grade != "NPC" {
		t.Errorf("unexpected pick: %+v", p)
	}
}

func TestDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail": "boom"}`, "boom"},
		{`{"detail": [{"msg": "field required"}]}`, `[{"msg": "field required"}]`},
		{`plain failure`, "plain failure"},
		{``, ""},
	}
	for _, tt := range tests {
		if got := detail([]byte(tt.body)); got != tt.want {
			t.Errorf("detail(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusBadGateway}
	if err.Error() != "status 502: Bad Gateway" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
