package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	Error    string
	Username string // preserved on error
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "", "Sign in")
		data.Data = LoginPageData{
			Error:    r.URL.Query().Get("error"),
			Username: r.URL.Query().Get("username"),
		}
		s.renderPage(w, http.StatusOK, "login.html", "bare", data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")

		if username == "" || password == "" {
			redirectLoginError(w, r, "Username and password are required", username)
			return
		}

		if _, err := s.app.Login(r.Context(), username, password); err != nil {
			var verr *backoffice.ValidationError
			switch {
			case errors.Is(err, errors.ErrInvalidCredentials):
				redirectLoginError(w, r, "Invalid username or password", username)
			case errors.As(err, &verr):
				redirectLoginError(w, r, verr.Error(), username)
			default:
				log.Err(err).Msg("login failed")
				redirectLoginError(w, r, "Could not reach the server, please try again", username)
			}
			return
		}
		// the guard decides where an authenticated operator lands
		http.Redirect(w, r, s.app.Guard.LandingRoute(), http.StatusSeeOther)
	}
}

// LogoutHandler ends the session explicitly and returns to the login page
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.app.Logout(r.Context())
		http.Redirect(w, r, s.app.Guard.LoginRoute(), http.StatusSeeOther)
	}
}

func redirectLoginError(w http.ResponseWriter, r *http.Request, errorMsg, username string) {
	redirectURL := RouteLogin + "?error=" + url.QueryEscape(errorMsg)
	if username != "" {
		redirectURL += "&username=" + url.QueryEscape(username)
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}
