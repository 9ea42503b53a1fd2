// Package selection tracks which stocks of a backtest the user has picked
// and derives the filtered views shared by the table, chart and grade board.
package selection

import (
	"sort"

	"github.com/newthinker/zhunle/internal/core"
)

// Phase is the lifecycle state of a controller for its current backtest.
type Phase int

const (
	// Uninitialized means no data has been applied for the identity yet.
	Uninitialized Phase = iota
	// AllSelected is entered once per identity on the first non-empty data.
	AllSelected
	// UserAdjusted is entered on any explicit toggle.
	UserAdjusted
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case AllSelected:
		return "all_selected"
	case UserAdjusted:
		return "user_adjusted"
	default:
		return "unknown"
	}
}

// Coded is anything keyed by a stock code.
type Coded interface {
	AssetCode() string
}

// Controller owns the selection state for one displayed backtest.
//
// The zero value is an uninitialized controller with no identity. A
// Controller is not safe for concurrent use.
type Controller struct {
	identity     string
	phase        Phase
	initialized  bool
	known        []string
	selected     map[string]struct{}
	onlySelected bool
}

// New returns a controller scoped to the given backtest identity.
func New(identity string) *Controller {
	c := &Controller{}
	c.IdentityChanged(identity)
	return c
}

// Identity returns the backtest identity the state belongs to.
func (c *Controller) Identity() string {
	return c.identity
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// IdentityChanged resets all state for a new backtest, including the
// marker that lets the next data arrival select everything.
func (c *Controller) IdentityChanged(identity string) {
	c.identity = identity
	c.phase = Uninitialized
	c.initialized = false
	c.known = nil
	c.selected = make(map[string]struct{})
	c.onlySelected = false
}

// Observe switches to identity if it differs from the current one and
// reports whether a reset happened.
func (c *Controller) Observe(identity string) bool {
	if c.selected != nil && identity == c.identity {
		return false
	}
	c.IdentityChanged(identity)
	return true
}

// DataArrived records the asset list for the current identity. The first
// non-empty list selects every code and turns on OnlySelected; later
// arrivals only refresh the known codes.
func (c *Controller) DataArrived(assets []core.AssetMetrics) {
	c.ensure()
	if len(assets) > 0 {
		c.known = distinct(assets)
	}
	if c.initialized || len(assets) == 0 {
		return
	}

	c.initialized = true
	c.phase = AllSelected
	c.selectKnown()
	c.onlySelected = true
	c.enforce()
}

// ToggleCode adds code to the selection or removes it. Unknown codes are
// added and removed like any other.
func (c *Controller) ToggleCode(code string) {
	c.ensure()
	c.adjusted()
	if _, ok := c.selected[code]; ok {
		delete(c.selected, code)
	} else {
		c.selected[code] = struct{}{}
	}
	c.enforce()
}

// ToggleAll clears the selection when every known code is selected and
// selects every known code otherwise.
func (c *Controller) ToggleAll() {
	c.ensure()
	c.adjusted()
	if c.IsAllSelected(c.known) {
		c.selected = make(map[string]struct{})
		c.onlySelected = false
	} else {
		c.selectKnown()
		c.onlySelected = true
	}
	c.enforce()
}

// SetOnlySelected sets the filter flag. A true value is clamped to false
// while nothing is selected.
func (c *Controller) SetOnlySelected(flag bool) {
	c.ensure()
	c.onlySelected = flag
	c.enforce()
}

// OnlySelected reports whether views are filtered to the selection.
func (c *Controller) OnlySelected() bool {
	return c.onlySelected
}

// CanFilter reports whether OnlySelected may be switched on.
func (c *Controller) CanFilter() bool {
	return len(c.selected) > 0
}

// IsSelected reports whether code is selected.
func (c *Controller) IsSelected(code string) bool {
	_, ok := c.selected[code]
	return ok
}

// Selected returns the selected codes in sorted order.
func (c *Controller) Selected() []string {
	codes := make([]string, 0, len(c.selected))
	for code := range c.selected {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// KnownCodes returns the codes of the latest asset list, original order.
func (c *Controller) KnownCodes() []string {
	return append([]string(nil), c.known...)
}

// IsAllSelected reports whether codes is non-empty and the selection holds
// exactly those codes.
func (c *Controller) IsAllSelected(codes []string) bool {
	if len(codes) == 0 {
		return false
	}
	unique := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, ok := c.selected[code]; !ok {
			return false
		}
		unique[code] = struct{}{}
	}
	return len(unique) == len(c.selected)
}

// VisibleItems returns the items the table and grade board should show.
func (c *Controller) VisibleItems(items []core.AssetMetrics) []core.AssetMetrics {
	return visible(c, items)
}

// VisibleSeries returns the series the chart should show.
func (c *Controller) VisibleSeries(series []core.EquitySeries) []core.EquitySeries {
	return visible(c, series)
}

// Filtering reports whether views are currently narrowed to the selection.
func (c *Controller) Filtering() bool {
	return c.onlySelected && len(c.selected) > 0
}

func visible[T Coded](c *Controller, all []T) []T {
	if !c.Filtering() {
		return all
	}
	out := make([]T, 0, len(c.selected))
	for _, v := range all {
		if c.IsSelected(v.AssetCode()) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Controller) ensure() {
	if c.selected == nil {
		c.selected = make(map[string]struct{})
	}
}

// adjusted moves to UserAdjusted; data arriving later for the same
// identity no longer selects everything.
func (c *Controller) adjusted() {
	c.phase = UserAdjusted
	c.initialized = true
}

func (c *Controller) selectKnown() {
	c.selected = make(map[string]struct{}, len(c.known))
	for _, code := range c.known {
		c.selected[code] = struct{}{}
	}
}

// enforce keeps OnlySelected off while nothing is selected.
func (c *Controller) enforce() {
	if len(c.selected) == 0 {
		c.onlySelected = false
	}
}

func distinct(assets []core.AssetMetrics) []string {
	seen := make(map[string]struct{}, len(assets))
	codes := make([]string, 0, len(assets))
	for _, a := range assets {
		if _, ok := seen[a.Code]; ok {
			continue
		}
		seen[a.Code] = struct{}{}
		codes = append(codes, a.Code)
	}
	return codes
}
