package view

import (
	"fmt"

	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/selection"
)

// Action kinds understood by Apply.
const (
	ActionToggle       = "toggle"
	ActionToggleAll    = "toggle_all"
	ActionOnlySelected = "only_selected"
)

// Action is a user edit of the selection.
type Action struct {
	Kind  string `json:"action"`
	Code  string `json:"code,omitempty"`
	Value bool   `json:"value,omitempty"`
}

// Apply performs a on c.
func Apply(c *selection.Controller, a Action) error {
	switch a.Kind {
	case ActionToggle:
		if a.Code == "" {
			return core.WrapError(core.ErrInvalidRequest, fmt.Errorf("toggle needs a code"))
		}
		c.ToggleCode(a.Code)
	case ActionToggleAll:
		c.ToggleAll()
	case ActionOnlySelected:
		c.SetOnlySelected(a.Value)
	default:
		return core.WrapError(core.ErrInvalidRequest, fmt.Errorf("unknown action %q", a.Kind))
	}
	return nil
}
