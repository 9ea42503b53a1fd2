package core

// Grade is the backend's verdict on a single recommendation.
// Values are the labels the backtest service emits.
type Grade string

const (
	GradeExcellent    Grade = "秀"
	GradeTop          Grade = "顶级"
	GradeAboveAverage Grade = "人上人"
	GradeNeutral      Grade = "NPC"
	GradePoor         Grade = "拉完了"
)

// Grades returns all grades from best to worst.
func Grades() []Grade {
	return []Grade{GradeExcellent, GradeTop, GradeAboveAverage, GradeNeutral, GradePoor}
}

// IsValid reports whether g is one of the known grades.
func (g Grade) IsValid() bool {
	for _, known := range Grades() {
		if g == known {
			return true
		}
	}
	return false
}

// Label returns the board label for a grade. The best grade is shown
// under a different name than the value the backend sends.
func (g Grade) Label() string {
	if g == GradeExcellent {
		return "夯"
	}
	return string(g)
}

// AssetMetrics holds the backtest outcome of one recommended stock.
// Absent numeric fields are nil and must not be treated as zero.
type AssetMetrics struct {
	Code             string   `json:"code" validate:"required"`
	Name             string   `json:"name"`
	BuyDate          string   `json:"buy_date"`
	BuyPrice         *float64 `json:"buy_price,omitempty"`
	SellDate         string   `json:"sell_date,omitempty"`
	SellPrice        *float64 `json:"sell_price,omitempty"`
	Return           *float64 `json:"ret,omitempty"`
	ExcessReturn     *float64 `json:"excess,omitempty"`
	AnnualizedReturn *float64 `json:"ann,omitempty"`
	Sharpe           *float64 `json:"sharpe,omitempty"`
	MaxDrawdown      *float64 `json:"mdd,omitempty"`
	Calmar           *float64 `json:"calmar,omitempty"`
	Score            *float64 `json:"score,omitempty"`
	Grade            Grade    `json:"grade,omitempty"`
	Flags            []string `json:"flags,omitempty"`
}

// AssetCode returns the stock code.
func (a AssetMetrics) AssetCode() string {
	return a.Code
}

// DisplayName returns the name, or the code when the name is empty.
func (a AssetMetrics) DisplayName() string {
	if a.Name == "" {
		return a.Code
	}
	return a.Name
}

// EquityPoint is one cumulative return observation.
type EquityPoint struct {
	Date   string  `json:"date"`
	Return float64 `json:"ret"`
}

// EquitySeries is the cumulative return curve of one stock.
// Dates are strictly increasing within a series.
type EquitySeries struct {
	Code   string        `json:"code" validate:"required"`
	Name   string        `json:"name"`
	Points []EquityPoint `json:"points"`
}

// AssetCode returns the stock code.
func (s EquitySeries) AssetCode() string {
	return s.Code
}

// Window is the date range a backtest covers.
type Window struct {
	Start       *string `json:"start"`
	End         *string `json:"end"`
	TradingDays int     `json:"trading_days"`
}

// Summary holds portfolio level metrics.
type Summary struct {
	WinRate  *float64 `json:"win_rate,omitempty"`
	Return   *float64 `json:"ret,omitempty"`
	Ann      *float64 `json:"ann,omitempty"`
	BenchRet *float64 `json:"bench_ret,omitempty"`
	BenchAnn *float64 `json:"bench_ann,omitempty"`
	Excess   *float64 `json:"excess,omitempty"`
	Sharpe   *float64 `json:"sharpe,omitempty"`
	MDD      *float64 `json:"mdd,omitempty"`
	Calmar   *float64 `json:"calmar,omitempty"`
	Grade    Grade    `json:"grade,omitempty"`
}

// PortfolioPoint is one point of the portfolio vs benchmark curve.
type PortfolioPoint struct {
	Date        string  `json:"date"`
	PortfolioNV float64 `json:"portfolio_nv"`
	BenchNV     float64 `json:"bench_nv"`
}

// BacktestResult is the complete result of one backtest as returned by
// the backtest service.
type BacktestResult struct {
	ID           string           `json:"bt_id" validate:"required"`
	Window       Window           `json:"window"`
	Benchmark    string           `json:"benchmark"`
	Summary      Summary          `json:"summary"`
	Equity       []PortfolioPoint `json:"equity,omitempty"`
	ItemEquities []EquitySeries   `json:"item_equities" validate:"dive"`
	Items        []AssetMetrics   `json:"items" validate:"dive"`
}

// Codes returns the item codes in their original order.
func (r *BacktestResult) Codes() []string {
	codes := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		codes = append(codes, item.Code)
	}
	return codes
}

// Float returns a pointer to v. Handy for building results in tests.
func Float(v float64) *float64 {
	return &v
}
