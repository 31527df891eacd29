package server

import (
	"net/http"

	"github.com/jrsteele09/matka-backoffice/guard"
	"github.com/rs/zerolog/log"
)

// RequireSession routes every request through the session guard. Protected pages redirect
// to the login route when no valid session is held; while the session is still being
// verified a loading screen is shown instead of the page. Public pages such as the login
// form redirect an authenticated operator to the landing route.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := s.app.Guard.Decide(r.URL.Path)
			switch d.Action {
			case guard.Redirect:
				log.Debug().Str("path", r.URL.Path).Str("location", d.Location).Msg("guard redirect")
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			case guard.Loading:
				s.renderLoading(w, r)
			default:
				next(w, r)
			}
		}
	}
}
