package client

// CreateRequest is the payload for starting a backtest.
type CreateRequest struct {
	Stocks        []string `json:"stocks" validate:"required,min=1,dive,required"`
	RecommendDate string   `json:"recommend_date" validate:"required,datetime=2006-01-02"`
	EndDate       *string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Benchmark     string   `json:"benchmark" validate:"required,oneof=HS300 SSE CSI1000"`
	PriceAdjust   string   `json:"price_adjust" validate:"omitempty,oneof=post pre none"`
}

// RankKind selects a leaderboard.
type RankKind string

const (
	RankHot   RankKind = "hot"
	RankBest  RankKind = "best"
	RankWorst RankKind = "worst"
)

// RankKinds returns the leaderboards shown on the landing page.
func RankKinds() []RankKind {
	return []RankKind{RankHot, RankBest, RankWorst}
}

// RankItem is one entry of a leaderboard.
type RankItem struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Score  *float64 `json:"score,omitempty"`
	Grade  string   `json:"grade,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// RankResponse is a leaderboard.
type RankResponse struct {
	Type      RankKind   `json:"type"`
	Days      int        `json:"days"`
	K         *int       `json:"k,omitempty"`
	Limit     int        `json:"limit"`
	UpdatedAt string     `json:"updated_at,omitempty"`
	Items     []RankItem `json:"items"`
}

// RankQuery parameterizes a leaderboard request. K is ignored for the
// hot board.
type RankQuery struct {
	Kind  RankKind
	Days  int
	Limit int
	K     int
}

// Quota is the number of backtests left today.
type Quota struct {
	GuestRemaining int    `json:"guest_remaining"`
	LoginRemaining int    `json:"login_remaining"`
	QuotaDay       string `json:"quota_day,omitempty"`
}

// RandomPick is a randomly suggested stock.
type RandomPick struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Grade  string   `json:"grade,omitempty"`
	Reason string   `json:"reason,omitempty"`
	Flags  []string `json:"flags,omitempty"`
	BtID   string   `json:"bt_id,omitempty"`
}
