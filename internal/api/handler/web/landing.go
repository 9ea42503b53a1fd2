package web

import (
	"fmt"
	"net/http"

	"github.com/newthinker/zhunle/internal/api/response"
	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/client"
	"go.uber.org/zap"
)

const maxFormBytes = 64 << 10

// LandingData holds data for the landing template
type LandingData struct {
	Title         string
	Stocks        string
	StockCount    int
	RecommendDate string
	Benchmark     string
	Benchmarks    []app.Benchmark
	QuotaText     string
	Boards        []app.Board
	Random        *client.RandomPick
	RandomErr     string
	Error         string
}

// Landing renders the backtest form and the leaderboards. With ?random=1
// it also shows a random stock suggestion.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	data := h.landingData(r, "", h.defaultDate(), "HS300")

	if r.URL.Query().Get("random") != "" {
		pick, err := h.service.RandomPick(r.Context())
		if err != nil {
			data.RandomErr = client.UserMessage(err)
		} else {
			data.Random = pick
		}
	}

	h.render(w, http.StatusOK, "landing.html", data)
}

// CreateBacktest submits the form and redirects to the new result.
func (h *Handler) CreateBacktest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	stocksInput := r.PostFormValue("stocks")
	recommendDate := r.PostFormValue("recommend_date")
	if recommendDate == "" {
		recommendDate = h.defaultDate()
	}
	benchmark := r.PostFormValue("benchmark")
	if benchmark == "" {
		benchmark = "HS300"
	}

	stocks := app.ParseStocks(stocksInput)
	if len(stocks) == 0 {
		data := h.landingData(r, stocksInput, recommendDate, benchmark)
		data.Error = "请至少输入一只股票或代码"
		h.render(w, http.StatusBadRequest, "landing.html", data)
		return
	}

	result, err := h.service.Create(r.Context(), client.CreateRequest{
		Stocks:        stocks,
		RecommendDate: recommendDate,
		Benchmark:     benchmark,
		PriceAdjust:   "post",
	})
	if err != nil {
		h.logger.Warn("backtest form rejected", zap.Error(err))
		data := h.landingData(r, stocksInput, recommendDate, benchmark)
		data.Error = client.UserMessage(err)
		h.render(w, response.StatusFor(err), "landing.html", data)
		return
	}

	http.Redirect(w, r, backtestURL(result.ID), http.StatusSeeOther)
}

func (h *Handler) landingData(r *http.Request, stocks, date, benchmark string) LandingData {
	landing := h.service.Landing(r.Context())
	return LandingData{
		Title:         "准了么",
		Stocks:        stocks,
		StockCount:    len(app.ParseStocks(stocks)),
		RecommendDate: date,
		Benchmark:     benchmark,
		Benchmarks:    app.Benchmarks,
		QuotaText:     quotaText(landing),
		Boards:        landing.Boards,
	}
}

func (h *Handler) defaultDate() string {
	return app.DefaultRecommendDate(h.now())
}

func quotaText(l app.Landing) string {
	if l.Quota == nil {
		return "游客剩余 - / 登录剩余 -"
	}
	return fmt.Sprintf("游客剩余 %d / 登录剩余 %d", l.Quota.GuestRemaining, l.Quota.LoginRemaining)
}
