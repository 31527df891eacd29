package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/querycache"
	"github.com/rs/zerolog/log"
)

// HealthHandler reports liveness and the guard's view of the session
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"session": s.app.Guard.State().String(),
		})
	}
}

// sessionLost reports whether err means the page can no longer be served because the
// session ended underneath it. The auth interceptor has already logged out by then.
func sessionLost(err error) bool {
	return apiclient.IsAuthFailure(err) || errors.Is(err, querycache.ErrReset) || errors.Is(err, errors.ErrSessionRejected)
}

// userMessage turns an API error into something an operator can act on
func userMessage(err error) string {
	var verr *backoffice.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if f := apiErr.FieldErrors(); f != "" {
			return f
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	if apiclient.IsTransport(err) {
		return "Could not reach the server"
	}
	return "Something went wrong"
}

// loadFailed renders the page's error panel, or sends the operator to the login page when
// the session is gone
func (s *Server) loadFailed(w http.ResponseWriter, r *http.Request, page string, data pageData, err error) {
	if sessionLost(err) {
		http.Redirect(w, r, s.app.Guard.LoginRoute(), http.StatusSeeOther)
		return
	}
	log.Warn().Err(err).Str("page", page).Msg("page data failed to load")
	data.Error = userMessage(err)
	data.RetryURL = r.URL.RequestURI()
	s.renderPage(w, http.StatusOK, page, "layout", data)
}

// mutationDone redirects back to target with the outcome as a toast
func (s *Server) mutationDone(w http.ResponseWriter, r *http.Request, target, msg string, err error) {
	if err != nil {
		if sessionLost(err) {
			http.Redirect(w, r, s.app.Guard.LoginRoute(), http.StatusSeeOther)
			return
		}
		redirectWithFlash(w, r, target, userMessage(err), true)
		return
	}
	if msg == "" {
		msg = "Saved"
	}
	redirectWithFlash(w, r, target, msg, false)
}

// parseForm rejects a malformed form body with 400 and reports whether the handler may continue
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("invalid form data")
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return false
	}
	return true
}

func pathInt(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id
}

func queryPage(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		return 0
	}
	return page
}

// backTo returns the referring console page, falling back to fallback
func backTo(r *http.Request, fallback string) string {
	if ret := r.FormValue("return"); ret != "" && ret[0] == '/' && (len(ret) == 1 || ret[1] != '/') {
		return ret
	}
	return fallback
}
