// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/newthinker/zhunle/internal/api/response"
	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/session"
	"github.com/newthinker/zhunle/internal/view"
)

const maxActionBytes = 4 << 10

// Viewer composes backtest views for a session.
type Viewer interface {
	View(ctx context.Context, sessionID, btID string) (string, view.Backtest, error)
	Select(ctx context.Context, sessionID, btID string, action view.Action) (string, view.Backtest, error)
}

// ViewResponse is a composed backtest view plus the session it belongs to.
type ViewResponse struct {
	SessionID string `json:"session_id"`
	view.Backtest
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	viewer     Viewer
	sessionTTL time.Duration
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(viewer Viewer, sessionTTL time.Duration) *BacktestHandler {
	return &BacktestHandler{viewer: viewer, sessionTTL: sessionTTL}
}

// View returns the filtered items, aligned chart rows, grade board and
// selection state of a backtest.
func (h *BacktestHandler) View(w http.ResponseWriter, r *http.Request) {
	btID := r.PathValue("id")

	sid, v, err := h.viewer.View(r.Context(), session.FromRequest(r), btID)
	session.SetCookie(w, sid, h.sessionTTL)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	response.JSON(w, http.StatusOK, ViewResponse{SessionID: sid, Backtest: v})
}

// Select applies a selection action and returns the updated view.
func (h *BacktestHandler) Select(w http.ResponseWriter, r *http.Request) {
	btID := r.PathValue("id")

	var action view.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBytes)).Decode(&action); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	sid, v, err := h.viewer.Select(r.Context(), session.FromRequest(r), btID, action)
	if sid != "" {
		session.SetCookie(w, sid, h.sessionTTL)
	}
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	response.JSON(w, http.StatusOK, ViewResponse{SessionID: sid, Backtest: v})
}
