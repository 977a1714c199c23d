package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/logger"
	"github.com/hpungsan/rutina/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// RoutinePageData is the template data for the routine view.
type RoutinePageData struct {
	PageData
	Day          string
	HasRoutine   bool
	Content      template.HTML
	TotalSteps   int
	DoneSteps    int
	TotalMinutes int
	Events       []ops.PlannedEvent
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	markdown  goldmark.Markdown
	version   string
	log       *logger.Logger
}

// NewRenderer parses the page templates from fsys. Each page is parsed
// on top of its own clone of layout.html.
func NewRenderer(fsys fs.FS, version string, log *logger.Logger) (*Renderer, error) {
	funcMap := template.FuncMap{
		"percent": func(done, total int) int {
			if total == 0 {
				return 0
			}
			return done * 100 / total
		},
	}

	layout, err := template.New("layout").Funcs(funcMap).ParseFS(fsys, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"routine": "routine.html",
		"error":   "error.html",
	}
	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
		version:   version,
		log:       log,
	}, nil
}

// renderPage renders a named page template with the given HTTP status.
func (r *Renderer) renderPage(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.log.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders the HTML error page. INTERNAL causes are logged, not shown.
func (r *Renderer) renderError(w http.ResponseWriter, err error) {
	rErr := errors.As(err)
	message := rErr.Message
	if rErr.Code == errors.ErrInternal {
		r.log.Error("page failed", "error", err)
		message = "Something went wrong."
	}

	r.renderPage(w, rErr.Status, "error", ErrorPageData{
		PageData:   PageData{Title: fmt.Sprintf("Error %d", rErr.Status), Version: r.version},
		StatusCode: rErr.Status,
		Message:    message,
	})
}

// renderMarkdown converts markdown to HTML. Raw HTML in the source is not
// passed through.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the JSON error envelope. INTERNAL errors carry a generic
// message and no details.
func writeError(w http.ResponseWriter, err error) {
	rErr := errors.As(err)

	errorObj := map[string]any{
		"code":    rErr.Code,
		"message": rErr.Message,
		"status":  rErr.Status,
	}
	if rErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if rErr.Details != nil {
		errorObj["details"] = rErr.Details
	}
	renderJSON(w, rErr.Status, map[string]any{"error": errorObj})
}
