package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/guard"
	"github.com/jrsteele09/matka-backoffice/internal/config"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/jrsteele09/matka-backoffice/querycache"
	"github.com/jrsteele09/matka-backoffice/session"
	"github.com/rs/zerolog/log"
)

const (
	StorageFile  = "file"
	StorageRedis = "redis"
)

// Options wires one application context. Zero values fall back to package defaults.
type Options struct {
	BaseURL   string
	Repo      session.Repo
	Namespace string
	Navigator apiclient.Navigator
	Policy    *apiclient.AuthPolicy
	Transport http.RoundTripper
	Metrics   *metrics.Metrics

	LoginPath        string
	CheckSessionPath string
	LoginRoute       string
	LandingRoute     string
	PublicRoutes     []string

	PollInterval     time.Duration
	RetryInterval    time.Duration
	UnsubscribeGrace time.Duration
}

// Context owns the operator session and everything that depends on it. Each instance is
// isolated; nothing is shared through package state.
type Context struct {
	Store   *session.Store
	Cache   *querycache.Cache
	Client  *apiclient.Client
	API     *backoffice.API
	Guard   *guard.Guard
	Metrics *metrics.Metrics

	loginRoute  string
	unsubscribe func()
	closers     []func() error
}

func New(opts Options) (*Context, error) {
	if opts.Repo == nil {
		return nil, errors.New("[app.New] session repo is required")
	}
	store, err := session.NewStore(opts.Repo, opts.Namespace)
	if err != nil {
		return nil, errors.Wrapf(err, "[app.New] session store")
	}

	cacheOpts := []querycache.CacheOption{querycache.WithMetrics(opts.Metrics)}
	if opts.UnsubscribeGrace > 0 {
		cacheOpts = append(cacheOpts, querycache.WithUnsubscribeGrace(opts.UnsubscribeGrace))
	}
	cache := querycache.New(cacheOpts...)

	clientOpts := []apiclient.ClientOption{apiclient.WithMetrics(opts.Metrics)}
	if opts.Transport != nil {
		clientOpts = append(clientOpts, apiclient.WithTransport(opts.Transport))
	}
	if opts.Policy != nil {
		clientOpts = append(clientOpts, apiclient.WithAuthPolicy(*opts.Policy))
	}
	client, err := apiclient.New(opts.BaseURL, store, clientOpts...)
	if err != nil {
		return nil, err
	}

	api, err := backoffice.New(client, cache, backoffice.WithAuthPaths(opts.LoginPath, opts.CheckSessionPath))
	if err != nil {
		return nil, err
	}

	loginRoute := opts.LoginRoute
	if loginRoute == "" {
		loginRoute = guard.DefaultLoginRoute
	}
	guardOpts := []guard.GuardOption{
		guard.WithMetrics(opts.Metrics),
		guard.WithRoutes(loginRoute, opts.LandingRoute),
		guard.WithPublicRoutes(opts.PublicRoutes...),
	}
	if opts.Navigator != nil {
		guardOpts = append(guardOpts, guard.WithNavigator(opts.Navigator))
	}
	if opts.PollInterval > 0 {
		guardOpts = append(guardOpts, guard.WithPollInterval(opts.PollInterval))
	}
	if opts.RetryInterval > 0 {
		guardOpts = append(guardOpts, guard.WithRetryInterval(opts.RetryInterval))
	}
	g, err := guard.New(store, api, guardOpts...)
	if err != nil {
		return nil, err
	}

	client.Use(apiclient.AuthFailureInterceptor(store, cache, opts.Navigator, loginRoute, opts.Metrics))

	c := &Context{
		Store:      store,
		Cache:      cache,
		Client:     client,
		API:        api,
		Guard:      g,
		Metrics:    opts.Metrics,
		loginRoute: loginRoute,
	}
	// any path to logged out drops every cached response
	c.unsubscribe = store.OnChange(func(s session.Session) {
		if !s.IsLoggedIn {
			cache.Reset()
		}
	})
	return c, nil
}

// FromConfig builds a context from configuration, choosing the session repo by
// GetSessionStorage.
func FromConfig(cfg config.Config, nav apiclient.Navigator, m *metrics.Metrics) (*Context, error) {
	repo, closer, err := repoFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := Options{
		BaseURL:          cfg.GetAPIBaseURL(),
		Repo:             repo,
		Namespace:        cfg.GetSessionNamespace(),
		Navigator:        nav,
		Metrics:          m,
		LoginPath:        cfg.GetLoginPath(),
		CheckSessionPath: cfg.GetCheckSessionPath(),
		LandingRoute:     cfg.GetLandingRoute(),
		PollInterval:     cfg.GetPollInterval(),
		RetryInterval:    cfg.GetRetryInterval(),
		UnsubscribeGrace: cfg.GetUnsubscribeGrace(),
	}
	if cfg.GetValidation422IsAuth() {
		p := apiclient.DefaultAuthPolicy()
		p.Validation422IsAuth = true
		opts.Policy = &p
	}
	c, err := New(opts)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	return c, nil
}

func repoFromConfig(cfg config.SessionConfig) (session.Repo, func() error, error) {
	switch strings.ToLower(cfg.GetSessionStorage()) {
	case "", StorageFile:
		return session.NewFileRepo(cfg.GetSessionFile()), nil, nil
	case StorageRedis:
		if cfg.GetRedisAddr() == "" {
			return nil, nil, errors.New("[app.FromConfig] redis storage needs session.redis.addr")
		}
		repo := session.NewRedisRepo(session.RedisOptions{
			Addr:     cfg.GetRedisAddr(),
			DB:       cfg.GetRedisDB(),
			Password: cfg.GetRedisPassword(),
		})
		return repo, repo.Close, nil
	default:
		return nil, nil, errors.Wrapf(errors.ErrInvalidRequest, "[app.FromConfig] unknown session storage %q", cfg.GetSessionStorage())
	}
}

// Start rehydrates the persisted session and starts the guard
func (c *Context) Start(ctx context.Context) error {
	s := c.Store.Rehydrate(ctx)
	log.Debug().Bool("logged_in", s.IsLoggedIn).Msg("session rehydrated")
	return c.Guard.Start(ctx)
}

// Login exchanges credentials for a token and stores the session
func (c *Context) Login(ctx context.Context, username, password string) (*session.AdminUser, error) {
	resp, err := c.API.Login(ctx, backoffice.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	user := resp.Operator()
	if err := c.Store.Login(ctx, session.LoginPayload{User: user, Token: resp.Token}); err != nil {
		return nil, err
	}
	log.Info().Str("operator", user.DisplayName()).Msg("operator logged in")
	return user, nil
}

// Logout ends the session on request of the operator. It reports whether a session was held.
func (c *Context) Logout(ctx context.Context) bool {
	changed := c.Store.Logout(ctx)
	if changed {
		log.Info().Msg("operator logged out")
	}
	return changed
}

func (c *Context) LoginRoute() string {
	return c.loginRoute
}

// Close stops the guard and releases the session repo
func (c *Context) Close() error {
	c.Guard.Stop()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
