package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/app"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/devbackend"
	"github.com/jrsteele09/matka-backoffice/guard"
	"github.com/jrsteele09/matka-backoffice/internal/config"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/session"
	sessionrepofake "github.com/jrsteele09/matka-backoffice/session/repofake"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "operator"
	testPassword = "s3cret-pass"
)

type navigations struct {
	mu     sync.Mutex
	routes []string
}

func (n *navigations) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *navigations) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type testFixture struct {
	backend *devbackend.Backend
	server  *httptest.Server
	repo    *sessionrepofake.FakeSessionRepo
	nav     *navigations
	app     *app.Context
}

func newBackend(t *testing.T) (*devbackend.Backend, *httptest.Server) {
	t.Helper()
	b, err := devbackend.New(devbackend.Options{
		AdminUsername: testUsername,
		AdminPassword: testPassword,
		AdminName:     "Test Operator",
		JWTSecret:     "app-test",
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	b, srv := newBackend(t)
	f := &testFixture{backend: b, server: srv, repo: sessionrepofake.NewFakeSessionRepo(), nav: &navigations{}}
	f.app = f.newApp(t)
	return f
}

func (f *testFixture) newApp(t *testing.T) *app.Context {
	t.Helper()
	c, err := app.New(app.Options{
		BaseURL:       f.server.URL,
		Repo:          f.repo,
		Navigator:     f.nav,
		PollInterval:  50 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitForState(t *testing.T, g *guard.Guard, want guard.State) {
	t.Helper()
	require.Eventually(t, func() bool { return g.State() == want }, 2*time.Second, 5*time.Millisecond,
		"guard never reached %s", want)
}

func TestNewRequiresRepo(t *testing.T) {
	_, err := app.New(app.Options{BaseURL: "http://localhost:9090"})
	require.Error(t, err)

	_, err = app.New(app.Options{BaseURL: "::bad", Repo: sessionrepofake.NewFakeSessionRepo()})
	require.Error(t, err)
}

func TestFreshStartRedirectsToLogin(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, guard.Loading, f.app.Guard.Decide("/dashboard").Action)

	require.NoError(t, f.app.Start(context.Background()))

	waitForState(t, f.app.Guard, guard.Anonymous)
	d := f.app.Guard.Decide("/dashboard")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/login", d.Location)
	require.Equal(t, guard.Render, f.app.Guard.Decide("/login").Action)
}

func TestLoginAuthenticates(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))

	user, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, "Test Operator", user.DisplayName())

	current := f.app.Store.Current()
	require.True(t, current.IsLoggedIn)
	require.NotEmpty(t, current.Token)

	waitForState(t, f.app.Guard, guard.Authenticated)
	require.Equal(t, guard.Render, f.app.Guard.Decide("/dashboard").Action)
	d := f.app.Guard.Decide("/login")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/dashboard", d.Location)

	_, ok := f.repo.Raw(session.Key("persist"))
	require.True(t, ok)
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))

	_, err := f.app.Login(ctx, testUsername, "wrong")
	require.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	require.False(t, f.app.Store.IsLoggedIn())
	require.Empty(t, f.nav.Routes())
}

func TestExpiredTokenLogsOutOnce(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))
	_, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	waitForState(t, f.app.Guard, guard.Authenticated)

	_, err = f.app.API.ListUsers(ctx, backoffice.ListParams{})
	require.NoError(t, err)
	require.Positive(t, f.app.Cache.Len())

	f.backend.RevokeAll()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.app.API.Dashboard(ctx)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(f.nav.Routes()) > 0 }, time.Second, 5*time.Millisecond)
	require.False(t, f.app.Store.IsLoggedIn())
	require.Zero(t, f.app.Cache.Len())
	_, ok := f.repo.Raw(session.Key("persist"))
	require.False(t, ok)

	waitForState(t, f.app.Guard, guard.Anonymous)
	// give any trailing poll a chance to misbehave
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, []string{"/login"}, f.nav.Routes())
}

func TestWrongPasswordKeepsLiveSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))
	_, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	waitForState(t, f.app.Guard, guard.Authenticated)

	_, err = f.app.Login(ctx, testUsername, "wrong")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	require.True(t, f.app.Store.IsLoggedIn())
	require.Equal(t, guard.Authenticated, f.app.Guard.State())
	require.Empty(t, f.nav.Routes())
}

func TestRevokedTokenPassesThroughRejected(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))
	_, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	waitForState(t, f.app.Guard, guard.Authenticated)

	var mu sync.Mutex
	var states []guard.State
	unsubscribe := f.app.Guard.Subscribe(func(s guard.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})
	defer unsubscribe()

	f.backend.RevokeAll()
	require.ErrorIs(t, f.app.Guard.Check(ctx), errors.ErrSessionRejected)
	waitForState(t, f.app.Guard, guard.Anonymous)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, states, guard.Rejected)
	require.Equal(t, guard.Anonymous, states[len(states)-1])
	rejectedAt := -1
	for i, s := range states {
		if s == guard.Rejected {
			rejectedAt = i
		}
	}
	require.Positive(t, rejectedAt)
	require.Equal(t, guard.Verifying, states[rejectedAt-1])
	require.Equal(t, guard.Anonymous, states[rejectedAt+1])
	require.Equal(t, []string{"/login"}, f.nav.Routes())
}

func TestValidationErrorKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))
	_, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)

	// the raw client bypasses request validation, so the backend answers 422 with field errors
	resp, err := f.app.Client.Do(ctx, &apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: backoffice.PathDeclareResult,
		Body:     map[string]any{"game_id": 1},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	require.True(t, f.app.Store.IsLoggedIn())
	require.Empty(t, f.nav.Routes())
}

func TestLogoutDropsCache(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))
	_, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)

	_, err = f.app.API.ListGames(ctx)
	require.NoError(t, err)
	require.Positive(t, f.app.Cache.Len())

	require.True(t, f.app.Logout(ctx))
	require.Zero(t, f.app.Cache.Len())
	waitForState(t, f.app.Guard, guard.Anonymous)

	require.False(t, f.app.Logout(ctx))
	require.Empty(t, f.nav.Routes())
}

func TestRehydratedSessionIsVerified(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.Start(ctx))
	_, err := f.app.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	require.NoError(t, f.app.Close())

	restarted := f.newApp(t)
	require.NoError(t, restarted.Start(ctx))
	require.True(t, restarted.Store.IsLoggedIn())
	waitForState(t, restarted.Guard, guard.Authenticated)
}

func TestFromConfigFileStorage(t *testing.T) {
	_, srv := newBackend(t)
	v := viper.New()
	v.Set("api.base_url", srv.URL+"/")
	v.Set("session.storage", "file")
	v.Set("session.file", filepath.Join(t.TempDir(), "session.json"))

	c, err := app.FromConfig(config.FromViper(v), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	_, err = c.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, "/login", c.LoginRoute())
}

func TestFromConfigRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	_, srv := newBackend(t)
	v := viper.New()
	v.Set("api.base_url", srv.URL)
	v.Set("session.storage", "redis")
	v.Set("session.redis.addr", mr.Addr())

	c, err := app.FromConfig(config.FromViper(v), nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	_, err = c.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	require.True(t, mr.Exists(session.Key("persist")))
	require.NoError(t, c.Close())
}

func TestFromConfigUnknownStorage(t *testing.T) {
	v := viper.New()
	v.Set("session.storage", "etcd")
	_, err := app.FromConfig(config.FromViper(v), nil, nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
