// internal/api/handler/web/backtest.go
package web

import (
	"net/http"
	"net/url"

	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/session"
	"github.com/newthinker/zhunle/internal/view"
	"go.uber.org/zap"
)

// SummaryStat is one card of the summary grid.
type SummaryStat struct {
	Label string
	Value string
}

// BacktestData holds data for the backtest template
type BacktestData struct {
	Title     string
	ID        string
	Window    string
	Benchmark string
	Summary   []SummaryStat
	View      view.Backtest
	Error     string
}

// Backtest renders a backtest result filtered by the session's selection.
func (h *Handler) Backtest(w http.ResponseWriter, r *http.Request) {
	btID := r.PathValue("id")

	sid, v, err := h.service.View(r.Context(), session.FromRequest(r), btID)
	session.SetCookie(w, sid, h.sessionTTL)

	data := BacktestData{
		Title:     "回测结果",
		ID:        btID,
		Window:    view.Placeholder + " 至 " + view.Placeholder,
		Benchmark: view.Placeholder,
		Summary:   summaryStats(nil),
		View:      v,
	}
	if err != nil {
		data.Error = client.UserMessage(err)
	}
	if res := v.Result; res != nil {
		data.Window = deref(res.Window.Start) + " 至 " + deref(res.Window.End)
		data.Benchmark = view.FormatText(res.Benchmark)
		data.Summary = summaryStats(&res.Summary)
	}

	h.render(w, http.StatusOK, "backtest.html", data)
}

// Selection applies a selection form post and redirects back to the page.
func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	btID := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	action := view.Action{
		Kind:  r.PostFormValue("action"),
		Code:  r.PostFormValue("code"),
		Value: r.PostFormValue("value") == "true",
	}

	sid, _, err := h.service.Select(r.Context(), session.FromRequest(r), btID, action)
	if sid != "" {
		session.SetCookie(w, sid, h.sessionTTL)
	}
	if err != nil {
		h.logger.Warn("selection change failed",
			zap.String("bt_id", btID),
			zap.String("action", action.Kind),
			zap.Error(err),
		)
	}

	http.Redirect(w, r, backtestURL(btID), http.StatusSeeOther)
}

// Refresh drops the cached result and reloads the page.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	btID := r.PathValue("id")
	h.service.Refresh(btID)
	http.Redirect(w, r, backtestURL(btID), http.StatusSeeOther)
}

func summaryStats(s *core.Summary) []SummaryStat {
	if s == nil {
		s = &core.Summary{}
	}
	return []SummaryStat{
		{"胜率统计", view.FormatPercent(s.WinRate)},
		{"最大回撤", view.FormatPercent(s.MDD)},
		{"回测收益", view.FormatPercent(s.Return)},
		{"回测年化", view.FormatPercent(s.Ann)},
		{"大盘收益", view.FormatPercent(s.BenchRet)},
		{"大盘年化", view.FormatPercent(s.BenchAnn)},
		{"Sharpe", view.FormatNumber(s.Sharpe)},
		{"Calmar", view.FormatNumber(s.Calmar)},
	}
}

func deref(s *string) string {
	if s == nil {
		return view.Placeholder
	}
	return view.FormatText(*s)
}

func backtestURL(id string) string {
	return "/backtest/" + url.PathEscape(id)
}
