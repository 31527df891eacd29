package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/session"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// pages rendered inside the console layout, keyed by template file
var pageFiles = []string{
	"login.html",
	"loading.html",
	"dashboard.html",
	"users.html",
	"fund_requests.html",
	"withdrawals.html",
	"bids.html",
	"games.html",
	"results.html",
	"banners.html",
	"settings.html",
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string {
		return fmt.Sprintf("₹%.2f", v)
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("02 Jan 2006 15:04")
	},
	"result": func(r backoffice.Result) string {
		return r.Display()
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// parsePages parses the layout together with each page so every page owns its "content"
func parsePages() (map[string]*template.Template, error) {
	fsys := TemplateFilesFS()
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

type flash struct {
	Message string
	Error   bool
}

// pageData is what every console template receives
type pageData struct {
	AppName   string
	Title     string
	Active    string
	Operator  string
	ExpiresAt time.Time
	Flash     flash
	// Error is set when the page's data could not be loaded; RetryURL reloads it
	Error    string
	RetryURL string
	Data     any
}

func (s *Server) newPageData(r *http.Request, active, title string) pageData {
	current := s.app.Store.Current()
	d := pageData{
		AppName:  s.appName,
		Title:    title,
		Active:   active,
		Operator: current.User.DisplayName(),
		Flash: flash{
			Message: r.URL.Query().Get("flash"),
			Error:   r.URL.Query().Get("level") == "error",
		},
	}
	if claims, ok := session.TokenClaims(current.Token); ok {
		d.ExpiresAt = claims.ExpiresAt
	}
	return d
}

// renderPage executes the named page into a buffer first so a template error never
// produces half a page
func (s *Server) renderPage(w http.ResponseWriter, status int, name, layout string, data pageData) {
	tmpl, ok := s.pages[name]
	if !ok {
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layout, data); err != nil {
		log.Err(err).Str("page", name).Msg("failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "", "Loading")
	data.RetryURL = r.URL.RequestURI()
	w.Header().Set("Retry-After", "1")
	s.renderPage(w, http.StatusOK, "loading.html", "bare", data)
}

// redirectWithFlash sends the browser back to target with a toast message
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string, isError bool) {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: target}
	}
	q := u.Query()
	q.Set("flash", message)
	if isError {
		q.Set("level", "error")
	} else {
		q.Del("level")
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
