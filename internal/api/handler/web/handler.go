// internal/api/handler/web/handler.go
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/view"
	"go.uber.org/zap"
)

//go:embed templates/*
var templateFS embed.FS

// pages lists the page templates (excluding layout.html)
var pages = []string{"landing.html", "backtest.html"}

// Service is what the pages need from the application.
type Service interface {
	View(ctx context.Context, sessionID, btID string) (string, view.Backtest, error)
	Select(ctx context.Context, sessionID, btID string, action view.Action) (string, view.Backtest, error)
	Refresh(btID string)
	Create(ctx context.Context, req client.CreateRequest) (*core.BacktestResult, error)
	Landing(ctx context.Context) app.Landing
	RandomPick(ctx context.Context) (*client.RandomPick, error)
}

// Handler provides web UI handlers with template rendering
type Handler struct {
	// pageTemplates holds separate template instances for each page
	// Each instance contains layout.html + the specific page template
	pageTemplates map[string]*template.Template
	service       Service
	sessionTTL    time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

var funcs = template.FuncMap{
	"pct":   view.FormatPercent,
	"num":   view.FormatNumber,
	"text":  view.FormatText,
	"flags": view.FormatFlags,
	"join":  strings.Join,
	"value": func(values map[string]float64, code string) string {
		v, ok := values[code]
		if !ok {
			return view.Placeholder
		}
		return fmt.Sprintf("%.2f", v)
	},
}

// NewHandler creates a new web handler with templates loaded from the given directory.
// If templatesDir is empty, it falls back to embedded templates.
func NewHandler(templatesDir string, service Service, sessionTTL time.Duration, logger *zap.Logger) (*Handler, error) {
	var fsys fs.FS
	if templatesDir != "" {
		fsys = os.DirFS(templatesDir)
	} else {
		fsys = TemplateFS()
	}
	return NewHandlerWithFS(fsys, service, sessionTTL, logger)
}

// NewHandlerWithFS creates a new web handler using a custom filesystem.
// This is useful for testing or custom template sources.
func NewHandlerWithFS(fsys fs.FS, service Service, sessionTTL time.Duration, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pageTemplates := make(map[string]*template.Template)
	for _, page := range pages {
		// Parse layout first, then the page template
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		pageTemplates[page] = tmpl
	}

	return &Handler{
		pageTemplates: pageTemplates,
		service:       service,
		sessionTTL:    sessionTTL,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// render executes the specified page template with the given data
func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := h.pageTemplates[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		h.logger.Error("rendering template failed", zap.String("page", page), zap.Error(err))
	}
}

// TemplateFS returns the embedded template filesystem for external use.
func TemplateFS() fs.FS {
	subFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		// This should never happen with valid embed directive
		return templateFS
	}
	return subFS
}
