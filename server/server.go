package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/matka-backoffice/app"
	"github.com/jrsteele09/matka-backoffice/internal/config"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Server is the operator console: server-rendered pages over one app.Context
type Server struct {
	env     string
	appName string
	mux     *http.ServeMux
	routes  []string
	app     *app.Context
	metrics *metrics.Metrics
	pages   map[string]*template.Template
}

func New(cfg config.EnvConfig, appCtx *app.Context, m *metrics.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if appCtx == nil {
		return nil, errors.New("[server.New] app context is required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[server.New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:     cfg.GetEnv(),
		appName: cfg.GetAppName(),
		mux:     http.NewServeMux(),
		app:     appCtx,
		metrics: m,
		pages:   pages,
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}
