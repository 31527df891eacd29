package apiclient

import (
	"context"

	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Call is what interceptors see after each exchange. Token is the bearer token that was
// attached, or "" for an anonymous request.
type Call struct {
	Request  *Request
	Response *Response
	Token    string
}

type Interceptor interface {
	Intercept(ctx context.Context, call Call)
}

// InterceptorFunc adapts a function to Interceptor
type InterceptorFunc func(ctx context.Context, call Call)

func (f InterceptorFunc) Intercept(ctx context.Context, call Call) {
	f(ctx, call)
}

// SessionEnder is the part of the auth store the interceptor needs
type SessionEnder interface {
	AccessToken() string
	Logout(ctx context.Context) bool
}

// CacheResetter drops every cached response
type CacheResetter interface {
	Reset()
}

// Navigator performs a hard navigation to a route
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// AuthFailureInterceptor is the single cross-cutting error policy: an auth-failure response
// to a request that carried the current token logs the operator out, wipes the cache and
// navigates to loginRoute, in that order. A stale token (the operator already logged out or
// in again) is ignored so a late response cannot end a newer session.
func AuthFailureInterceptor(store SessionEnder, cache CacheResetter, nav Navigator, loginRoute string, m *metrics.Metrics) Interceptor {
	return InterceptorFunc(func(ctx context.Context, call Call) {
		if call.Response == nil || call.Response.Err == nil || call.Response.Err.Kind != KindAuth {
			return
		}
		if call.Token == "" || call.Token != store.AccessToken() {
			return
		}

		changed := store.Logout(ctx)
		cache.Reset()
		if !changed {
			return
		}
		m.AuthLogout()
		log.Info().Int("status", call.Response.Status).Str("endpoint", call.Request.Endpoint).
			Msg("session rejected by backend, logged out")
		if nav != nil {
			nav.Navigate(loginRoute)
		}
	})
}
