package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/config"
	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/selection"
	"github.com/newthinker/zhunle/internal/session"
	"github.com/newthinker/zhunle/internal/view"
	"go.uber.org/zap"
)

// Benchmark options offered by the backtest form.
var Benchmarks = []Benchmark{
	{Value: "HS300", Label: "沪深300"},
	{Value: "SSE", Label: "上证指数"},
	{Value: "CSI1000", Label: "中证1000"},
}

// Benchmark is a selectable benchmark index.
type Benchmark struct {
	Value string
	Label string
}

// Backend is the remote backtest service.
type Backend interface {
	GetBacktest(ctx context.Context, id string) (*core.BacktestResult, error)
	CreateBacktest(ctx context.Context, req client.CreateRequest) (*core.BacktestResult, error)
	Refresh(id string)
	GetRank(ctx context.Context, q client.RankQuery) (*client.RankResponse, error)
	GetQuota(ctx context.Context) (*client.Quota, error)
	RandomPick(ctx context.Context) (*client.RandomPick, error)
}

// Recorder receives business metrics.
type Recorder interface {
	RecordBacktestView(status string)
	RecordBacktestCreated(status string)
	RecordSelection(action string)
	SetSessionsActive(count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordBacktestView(string)    {}
func (nopRecorder) RecordBacktestCreated(string) {}
func (nopRecorder) RecordSelection(string)       {}
func (nopRecorder) SetSessionsActive(int)        {}

// App is the main application orchestrator. It owns the per-session
// selection state and feeds it with results from the backend.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	backend  Backend
	sessions *session.Store
	recorder Recorder

	sweepInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// DefaultSweepInterval is how often expired sessions are dropped unless
// SetSweepInterval says otherwise.
const DefaultSweepInterval = 5 * time.Minute

// New creates a new App instance
func New(cfg *config.Config, backend Backend, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		backend:       backend,
		sessions:      session.NewStore(cfg.Server.MaxSessions, cfg.Server.SessionTTL()),
		recorder:      nopRecorder{},
		sweepInterval: DefaultSweepInterval,
	}
}

// SetRecorder sets the metrics recorder.
func (a *App) SetRecorder(r Recorder) {
	if r != nil {
		a.recorder = r
	}
}

// SetSweepInterval sets how often expired sessions are dropped. A
// non-positive interval restores DefaultSweepInterval.
func (a *App) SetSweepInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultSweepInterval
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepInterval = d
}

// Start runs the session sweep loop until ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	interval := a.sweepInterval
	a.mu.Unlock()

	a.logger.Info("zhunle starting",
		zap.String("backend", a.cfg.Backend.BaseURL),
		zap.Duration("sweep_interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("zhunle shutting down")
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			a.Sweep()
		}
	}
}

// Stop stops the sweep loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Sweep drops expired sessions and updates the session gauge.
func (a *App) Sweep() int {
	removed := a.sessions.Sweep()
	a.recorder.SetSessionsActive(a.sessions.Len())
	if removed > 0 {
		a.logger.Debug("expired sessions removed", zap.Int("count", removed))
	}
	return removed
}

// View loads backtest btID into the session and composes what the page
// shows. It returns the session id in use, which differs from sessionID
// when that session was unknown or expired. A fetch failure is returned
// alongside a view composed without data.
func (a *App) View(ctx context.Context, sessionID, btID string) (string, view.Backtest, error) {
	result, fetchErr := a.backend.GetBacktest(ctx, btID)
	a.recordView(fetchErr)
	if fetchErr != nil {
		a.logger.Warn("fetching backtest failed",
			zap.String("bt_id", btID),
			zap.Error(fetchErr),
		)
		result = nil
	}

	var v view.Backtest
	id := a.sessions.Ensure(sessionID, func(c *selection.Controller) {
		c.Observe(btID)
		if result != nil {
			c.DataArrived(result.Items)
		}
		v = view.Compose(result, c)
	})
	a.recorder.SetSessionsActive(a.sessions.Len())
	return id, v, fetchErr
}

// Select applies action to the session's selection for btID and returns
// the resulting view.
func (a *App) Select(ctx context.Context, sessionID, btID string, action view.Action) (string, view.Backtest, error) {
	result, err := a.backend.GetBacktest(ctx, btID)
	if err != nil {
		return sessionID, view.Backtest{}, err
	}

	var (
		v        view.Backtest
		applyErr error
	)
	id := a.sessions.Ensure(sessionID, func(c *selection.Controller) {
		c.Observe(btID)
		c.DataArrived(result.Items)
		if applyErr = view.Apply(c, action); applyErr != nil {
			return
		}
		v = view.Compose(result, c)
	})
	if applyErr != nil {
		return id, view.Backtest{}, applyErr
	}

	a.recorder.SetSessionsActive(a.sessions.Len())
	a.recorder.RecordSelection(action.Kind)
	a.logger.Debug("selection changed",
		zap.String("bt_id", btID),
		zap.String("action", action.Kind),
		zap.String("code", action.Code),
		zap.Int("selected", len(v.Selection.Selected)),
	)
	return id, v, nil
}

// Refresh drops the cached result of btID so the next view refetches it.
func (a *App) Refresh(btID string) {
	a.backend.Refresh(btID)
}

// Create submits a new backtest.
func (a *App) Create(ctx context.Context, req client.CreateRequest) (*core.BacktestResult, error) {
	result, err := a.backend.CreateBacktest(ctx, req)
	if err != nil {
		a.recorder.RecordBacktestCreated("error")
		a.logger.Warn("creating backtest failed",
			zap.Int("stocks", len(req.Stocks)),
			zap.Error(err),
		)
		return nil, err
	}
	a.recorder.RecordBacktestCreated("success")
	a.logger.Info("backtest created",
		zap.String("bt_id", result.ID),
		zap.Int("stocks", len(req.Stocks)),
	)
	return result, nil
}

// RandomPick asks the backend for a random stock suggestion.
func (a *App) RandomPick(ctx context.Context) (*client.RandomPick, error) {
	return a.backend.RandomPick(ctx)
}

// Stats returns application statistics
func (a *App) Stats() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	return map[string]any{
		"running":  a.running,
		"sessions": a.sessions.Len(),
	}
}

func (a *App) recordView(err error) {
	switch {
	case err == nil:
		a.recorder.RecordBacktestView("success")
	case errors.Is(err, core.ErrBacktestNotFound):
		a.recorder.RecordBacktestView("not_found")
	default:
		a.recorder.RecordBacktestView("error")
	}
}

var stockSeparators = regexp.MustCompile(`[\s,，；;]+`)

// ParseStocks splits free-form input on whitespace, ASCII or full-width
// commas and semicolons.
func ParseStocks(input string) []string {
	stocks := []string{}
	for _, s := range stockSeparators.Split(input, -1) {
		if s != "" {
			stocks = append(stocks, s)
		}
	}
	return stocks
}

// DefaultRecommendDate is the form default: one week before now.
func DefaultRecommendDate(now time.Time) string {
	return now.AddDate(0, 0, -7).Format("2006-01-02")
}
