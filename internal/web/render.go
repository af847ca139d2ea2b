package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "dashboard", "leads", "approved", "conversations", "meetings", "content"
}

// DashboardPageData is the template data for the dashboard.
type DashboardPageData struct {
	PageData
	Analytics *ops.AnalyticsOutput
	Next      *crm.Lead
	Remaining int
	Upcoming  []crm.Meeting
	NextSync  time.Time
	Source    string
}

// LeadsPageData is the template data for the review queue.
type LeadsPageData struct {
	PageData
	Next       *crm.Lead
	Remaining  int
	Items      []crm.Lead
	Pagination ops.Pagination
	Status     string
	Industry   string
	PrevOffset int
	NextOffset int
}

// ApprovedPageData is the template data for the approved leads page.
type ApprovedPageData struct {
	PageData
	Items    []crm.Lead
	Industry string
	Query    string
}

// ConversationsPageData is the template data for the inbox.
type ConversationsPageData struct {
	PageData
	Items   []crm.Conversation
	Status  string
	Channel string
}

// ThreadPageData is the template data for a single conversation.
type ThreadPageData struct {
	PageData
	Conversation *crm.Conversation
	Messages     []crm.Message
}

// MeetingsPageData is the template data for the meetings page.
type MeetingsPageData struct {
	PageData
	View  ops.MeetingView
	Items []crm.Meeting
}

// ContentPageData is the template data for the content page.
type ContentPageData struct {
	PageData
	Items  []crm.ContentPost
	Status string
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
	version   string
	log       zerolog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log zerolog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"formatTime": formatTime,
		"percent":    func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		"score":      func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"markdown":   renderMarkdown,
		"deref":      deref,
		"hasValue":   hasValue,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"dashboard":     "dashboard.html",
		"leads":         "leads.html",
		"approved":      "approved.html",
		"conversations": "conversations.html",
		"thread":        "thread.html",
		"meetings":      "meetings.html",
		"content":       "content.html",
		"error":         "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// page returns PageData for a page with the renderer's version filled in.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given status code.
// For HTMX requests only the "content" block is rendered.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error().Err(err).Str("template", name).Msg("template execution failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error with content negotiation. API callers and
// clients asking for JSON get the coded envelope; browsers get the error page.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	tErr, ok := errors.As(err)
	if !ok {
		tErr = errors.NewInternal(err)
	}
	if tErr.Code == errors.ErrInternal {
		r.log.Error().Err(err).Interface("details", tErr.Details).Str("path", req.URL.Path).Msg("request failed")
	}

	status := tErr.Status
	message := tErr.Message

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(tErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// wantsJSON reports whether a response should be JSON. Form posts to the API
// come from the HTML pages and are answered as pages.
func wantsJSON(req *http.Request) bool {
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(req.URL.Path, "/api/") && !isForm(req)
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the source is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a time.Time or *time.Time as "2006-01-02 15:04" UTC.
// Nil and zero times render as a dash.
func formatTime(v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv != nil {
			t = *tv
		}
	}
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// deref dereferences a pointer, returning the zero value if nil.
func deref(v any) any {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(rv.Type().Elem()).Interface()
		}
		return rv.Elem().Interface()
	}
	return v
}

// hasValue checks if a pointer value is non-nil.
func hasValue(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return !rv.IsNil()
	}
	return true
}
