package apiclient_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/session"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Reset() { r.add("reset") }

func (r *recorder) Navigate(route string) { r.add("navigate " + route) }

func setupInterceptor(t *testing.T, status int, body map[string]any) (*fixture, *recorder) {
	t.Helper()
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, body)
	})
	rec := &recorder{}
	f.store.OnChange(func(s session.Session) {
		if !s.IsLoggedIn {
			rec.add("logout")
		}
	})
	f.client.Use(apiclient.AuthFailureInterceptor(f.store, rec, rec, "/login", nil))
	return f, rec
}

func TestAuthFailureInterceptor_LogsOutResetsThenNavigates(t *testing.T) {
	f, rec := setupInterceptor(t, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc", User: &session.AdminUser{Name: "Asha"}}))

	resp, err := f.client.Do(ctx, &apiclient.Request{Endpoint: "/api/users"})
	require.NoError(t, err)
	require.True(t, apiclient.IsAuthFailure(resp.Err))

	require.False(t, f.store.IsLoggedIn())
	require.Equal(t, []string{"logout", "reset", "navigate /login"}, rec.Events())
}

func TestAuthFailureInterceptor_StaleTokenIgnored(t *testing.T) {
	f, rec := setupInterceptor(t, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "new"}))

	icpt := apiclient.AuthFailureInterceptor(f.store, rec, rec, "/login", nil)
	icpt.Intercept(ctx, apiclient.Call{
		Request:  &apiclient.Request{Endpoint: "/api/users"},
		Response: &apiclient.Response{Status: http.StatusUnauthorized, Err: &apiclient.APIError{Status: http.StatusUnauthorized, Kind: apiclient.KindAuth}},
		Token:    "old",
	})

	require.True(t, f.store.IsLoggedIn())
	require.Empty(t, rec.Events())
}

func TestAuthFailureInterceptor_ValidationIsNotFatal(t *testing.T) {
	f, rec := setupInterceptor(t, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  map[string][]string{"digits": {"required"}},
	})
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc"}))

	resp, err := f.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Endpoint: "/api/declare-result"})
	require.NoError(t, err)
	require.True(t, apiclient.IsValidation(resp.Err))
	require.True(t, f.store.IsLoggedIn())
	require.Empty(t, rec.Events())
}

func TestAuthFailureInterceptor_AnonymousRequestIgnored(t *testing.T) {
	f, rec := setupInterceptor(t, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})

	_, err := f.client.Do(context.Background(), &apiclient.Request{Method: http.MethodPost, Endpoint: "/api/admin-login"})
	require.NoError(t, err)
	require.Empty(t, rec.Events())
}

func TestAuthFailureInterceptor_ConcurrentFailuresNavigateOnce(t *testing.T) {
	f, rec := setupInterceptor(t, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc"}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.client.Do(ctx, &apiclient.Request{Endpoint: "/api/users"})
		}()
	}
	wg.Wait()

	navigations := 0
	for _, e := range rec.Events() {
		if e == "navigate /login" {
			navigations++
		}
	}
	require.Equal(t, 1, navigations)
	require.False(t, f.store.IsLoggedIn())
}
