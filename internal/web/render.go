package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/skinguardian/client/internal/gate"
	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/types"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

// mdRenderer escapes raw HTML in advisory text.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var pageTemplates = map[gate.Page]string{
	gate.PageLogin:        "credentials.html",
	gate.PageSignUp:       "credentials.html",
	gate.PageProfile:      "profile.html",
	gate.PageNewDiagnosis: "diagnosis.html",
	gate.PageHistory:      "history.html",
}

func parseTemplates() (map[gate.Page]*template.Template, error) {
	funcs := template.FuncMap{"renderMarkdown": renderMarkdown}
	out := make(map[gate.Page]*template.Template, len(pageTemplates))
	for page, file := range pageTemplates {
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		out[page] = tpl
	}
	return out, nil
}

// pageData is the model every page template renders.
type pageData struct {
	Title         string
	Page          gate.Page
	Action        string
	Authenticated bool
	CSRFField     template.HTML
	Notice        string
	FieldErrors   map[string]string
	Form          map[string]string

	Profile       *types.UserProfile
	Diagnoses     []diagnosisCard
	Localizations []types.Localization
	Result        *services.Result
	InFlight      bool
}

type diagnosisCard struct {
	Record      types.DiagnosisRecord
	ImageSrc    string
	Advisory    string
	HasAdvisory bool
}

var pageTitles = map[gate.Page]string{
	gate.PageLogin:        "Log In",
	gate.PageSignUp:       "Sign Up",
	gate.PageProfile:      "Profile",
	gate.PageNewDiagnosis: "New Diagnosis",
	gate.PageHistory:      "History",
}

func (s *Server) newPageData(r *http.Request, page gate.Page) *pageData {
	return &pageData{
		Title:         pageTitles[page],
		Page:          page,
		Action:        page.Path(),
		Authenticated: s.session.Authenticated(),
		CSRFField:     csrf.TemplateField(r),
		FieldErrors:   map[string]string{},
		Form:          map[string]string{},
	}
}

// render buffers the page so a template error never leaves a half-written
// response.
func (s *Server) render(w http.ResponseWriter, status int, data *pageData) {
	tpl, ok := s.templates[data.Page]
	if !ok {
		s.internalError(w, fmt.Errorf("no template for page %q", data.Page))
		return
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// internalError logs the real error and answers with a generic message.
func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("internal_error", slog.String("error", err.Error()))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, page gate.Page) {
	http.Redirect(w, r, page.Path(), http.StatusSeeOther)
}
