package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteRoot+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	protected := s.HTMLMiddleWare(s.RequireSession())
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteUsers, ChainMiddleware(s.UsersHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteUserStatus, ChainMiddleware(s.UserStatusHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteFundRequests, ChainMiddleware(s.FundRequestsHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteFundDecision, ChainMiddleware(s.FundDecisionHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteWithdrawals, ChainMiddleware(s.WithdrawalsHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteWithdrawal, ChainMiddleware(s.WithdrawalDecisionHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteBids, ChainMiddleware(s.BidsHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteGames, ChainMiddleware(s.GamesHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteGame, ChainMiddleware(s.UpdateGameHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteResults, ChainMiddleware(s.ResultsHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteDeclare, ChainMiddleware(s.DeclareResultHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteWinners, ChainMiddleware(s.CheckWinnersHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteBanners, ChainMiddleware(s.BannersHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteBanners, ChainMiddleware(s.UploadBannerHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteBannerDelete, ChainMiddleware(s.DeleteBannerHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteSettings, ChainMiddleware(s.SettingsHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteSettings, ChainMiddleware(s.UpdateSettingsHandler(), protected...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
	s.RegisterRouteFunc("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare(s.CacheMiddleware)...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.PathValue("file"), "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("static file not found")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
