package apiclient

import "net/http"

// AuthPolicy decides which error responses end the session
type AuthPolicy struct {
	// Statuses that signal an invalid session when a bearer token was attached
	Statuses []int
	// Validation422IsAuth treats every 422 as an auth failure, even ones carrying field errors
	Validation422IsAuth bool
}

// DefaultAuthPolicy treats 401, 403 and 422 as auth failures, except a 422 that carries a
// non-empty "errors" object, which is a form validation failure.
func DefaultAuthPolicy() AuthPolicy {
	return AuthPolicy{
		Statuses: []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity},
	}
}

func (p AuthPolicy) classify(apiErr *APIError, tokenAttached bool) ErrorKind {
	status := apiErr.Status
	if status == http.StatusUnprocessableEntity && len(apiErr.Fields) > 0 && !p.Validation422IsAuth {
		return KindValidation
	}
	if tokenAttached && p.isAuthStatus(status) {
		return KindAuth
	}
	switch {
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

func (p AuthPolicy) isAuthStatus(status int) bool {
	for _, s := range p.Statuses {
		if s == status {
			return true
		}
	}
	return false
}
