package server

import (
	"net/http"
)

// IndexHandler sends the browser wherever the guard would: the landing page for an
// authenticated operator, the login page otherwise
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := s.app.Guard.LoginRoute()
		if s.app.Store.IsLoggedIn() {
			target = s.app.Guard.LandingRoute()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}
