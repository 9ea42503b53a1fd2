package app

import (
	"context"
	"sync"

	"github.com/newthinker/zhunle/internal/client"
	"go.uber.org/zap"
)

// Board is one leaderboard card. Err holds the message shown in place of
// the list when the board could not be loaded.
type Board struct {
	Kind  client.RankKind
	Title string
	Color string
	Days  int
	Limit int
	Items []client.RankItem
	Err   string
}

// Landing is the data behind the landing page.
type Landing struct {
	Quota    *client.Quota
	QuotaErr string
	Boards   []Board
}

var boardTitles = map[client.RankKind]struct{ title, color string }{
	client.RankHot:   {"热门回测", "#1d4ed8"},
	client.RankBest:  {"最夯回测", "#d97706"},
	client.RankWorst: {"最拉回测", "#dc2626"},
}

// Landing loads the quota and the leaderboards concurrently. Failures are
// reported per card and never fail the page.
func (a *App) Landing(ctx context.Context) Landing {
	kinds := client.RankKinds()
	out := Landing{Boards: make([]Board, len(kinds))}

	var wg sync.WaitGroup
	wg.Add(1 + len(kinds))

	go func() {
		defer wg.Done()
		quota, err := a.backend.GetQuota(ctx)
		if err != nil {
			a.logger.Warn("fetching quota failed", zap.Error(err))
			out.QuotaErr = client.UserMessage(err)
			return
		}
		out.Quota = quota
	}()

	for i, kind := range kinds {
		go func() {
			defer wg.Done()
			out.Boards[i] = a.board(ctx, kind)
		}()
	}

	wg.Wait()
	return out
}

func (a *App) board(ctx context.Context, kind client.RankKind) Board {
	lc := a.cfg.Landing
	meta := boardTitles[kind]
	b := Board{
		Kind:  kind,
		Title: meta.title,
		Color: meta.color,
		Days:  lc.RankDays,
		Limit: lc.RankLimit,
		Items: []client.RankItem{},
	}

	resp, err := a.backend.GetRank(ctx, client.RankQuery{
		Kind:  kind,
		Days:  lc.RankDays,
		Limit: lc.RankLimit,
		K:     lc.RankK,
	})
	if err != nil {
		a.logger.Warn("fetching rank failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		b.Err = client.UserMessage(err)
		return b
	}

	if resp.Days > 0 {
		b.Days = resp.Days
	}
	if resp.Limit > 0 {
		b.Limit = resp.Limit
	}
	if resp.Items != nil {
		b.Items = resp.Items
	}
	return b
}
