package guard

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/jrsteele09/matka-backoffice/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultRetryInterval = 5 * time.Second
	DefaultLoginRoute    = "/login"
	DefaultLandingRoute  = "/dashboard"
)

// Checker validates the current token against the backend. An error wrapping
// errors.ErrSessionRejected means the backend refused the token; anything else is transient.
type Checker interface {
	CheckSession(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) CheckSession(ctx context.Context) error {
	return f(ctx)
}

// SessionStore is the part of the auth store the guard observes
type SessionStore interface {
	Ready() <-chan struct{}
	AccessToken() string
	Logout(ctx context.Context) bool
	OnChange(fn session.Listener) func()
}

// Guard tracks whether the held session is valid and decides what each route may show.
// While a token is held it re-checks the session on a cancellable polling goroutine.
type Guard struct {
	store   SessionStore
	checker Checker
	nav     apiclient.Navigator
	metrics *metrics.Metrics

	pollInterval  time.Duration
	retryInterval time.Duration
	loginRoute    string
	landingRoute  string
	public        map[string]struct{}

	sf singleflight.Group

	mu          sync.RWMutex
	state       State
	token       string
	verified    bool
	checking    map[string]int // in-flight checks per token
	cancelPoll  context.CancelFunc
	unsubscribe func()
	listeners   []func(State)
	pending     []State
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

func WithPollInterval(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.pollInterval = d
	}
}

// WithRetryInterval sets the delay before retrying a first check that failed transiently
func WithRetryInterval(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.retryInterval = d
	}
}

func WithNavigator(nav apiclient.Navigator) GuardOption {
	return func(g *Guard) {
		g.nav = nav
	}
}

func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// WithRoutes sets the login route and the landing route authenticated operators are sent to
func WithRoutes(login, landing string) GuardOption {
	return func(g *Guard) {
		if login != "" {
			g.loginRoute = login
		}
		if landing != "" {
			g.landingRoute = landing
		}
	}
}

// WithPublicRoutes adds routes that render without a session. The login route is always public.
func WithPublicRoutes(paths ...string) GuardOption {
	return func(g *Guard) {
		for _, p := range paths {
			g.public[p] = struct{}{}
		}
	}
}

func New(store SessionStore, checker Checker, options ...GuardOption) (*Guard, error) {
	if store == nil {
		return nil, errors.New("[guard.New] session store is required")
	}
	if checker == nil {
		return nil, errors.New("[guard.New] checker is required")
	}
	g := &Guard{
		store:         store,
		checker:       checker,
		pollInterval:  DefaultPollInterval,
		retryInterval: DefaultRetryInterval,
		loginRoute:    DefaultLoginRoute,
		landingRoute:  DefaultLandingRoute,
		public:        make(map[string]struct{}),
		state:         Unknown,
	}
	for _, opt := range options {
		opt(g)
	}
	g.public[g.loginRoute] = struct{}{}
	g.metrics.GuardState(Unknown.String(), allStates)
	return g, nil
}

// Start waits for the store to finish rehydrating, then leaves Unknown and, when a token is
// held, begins verifying it.
func (g *Guard) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.store.Ready():
	}

	unsubscribe := g.store.OnChange(g.onSessionChange)
	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.unlock()

	if token := g.store.AccessToken(); token != "" {
		g.beginVerifying(token)
		return nil
	}
	g.setState(Anonymous)
	return nil
}

// Stop cancels polling and stops observing the store
func (g *Guard) Stop() {
	g.mu.Lock()
	if g.cancelPoll != nil {
		g.cancelPoll()
		g.cancelPoll = nil
	}
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Subscribe registers fn for state changes and returns a function that removes it
func (g *Guard) Subscribe(fn func(State)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
	idx := len(g.listeners) - 1
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if idx < len(g.listeners) {
			g.listeners[idx] = nil
		}
	}
}

// IsPublic reports whether path renders without a session
func (g *Guard) IsPublic(path string) bool {
	_, ok := g.public[path]
	return ok
}

func (g *Guard) LoginRoute() string {
	return g.loginRoute
}

func (g *Guard) LandingRoute() string {
	return g.landingRoute
}

// Decide maps the current state onto an action for path. A refresh check after an earlier
// success keeps rendering; only Rejected or a logout demotes the operator.
func (g *Guard) Decide(path string) Decision {
	g.mu.RLock()
	state, verified := g.state, g.verified
	g.mu.RUnlock()

	authenticated := state == Authenticated || (state == Verifying && verified)

	if g.IsPublic(path) {
		switch {
		case authenticated:
			return Decision{Action: Redirect, Location: g.landingRoute}
		case state == Unknown || state == Verifying:
			return Decision{Action: Loading}
		default:
			return Decision{Action: Render}
		}
	}

	switch {
	case authenticated:
		return Decision{Action: Render}
	case state == Unknown || state == Verifying:
		return Decision{Action: Loading}
	default:
		return Decision{Action: Redirect, Location: g.loginRoute}
	}
}

// Check runs one session check now. Concurrent checks for the same token share one request.
func (g *Guard) Check(ctx context.Context) error {
	token := g.store.AccessToken()
	if token == "" {
		return errors.ErrNotLoggedIn
	}

	g.mu.Lock()
	if g.token != token {
		g.unlock()
		return errors.ErrNotLoggedIn
	}
	previous := g.state
	g.setStateLocked(Verifying)
	if g.checking == nil {
		g.checking = make(map[string]int)
	}
	g.checking[token]++
	g.unlock()

	_, err, _ := g.sf.Do(token, func() (interface{}, error) {
		return nil, g.checker.CheckSession(ctx)
	})

	g.mu.Lock()
	if g.checking[token]--; g.checking[token] <= 0 {
		delete(g.checking, token)
	}
	g.unlock()

	if g.store.AccessToken() != token {
		// logged out or replaced while the check was in flight
		return err
	}

	switch {
	case err == nil:
		g.mu.Lock()
		if g.token == token {
			g.verified = true
			g.setStateLocked(Authenticated)
		}
		g.unlock()
		return nil

	case errors.Is(err, errors.ErrSessionRejected):
		g.reject(ctx, token)
		return err

	default:
		log.Warn().Err(err).Msg("session check failed, will retry")
		g.mu.Lock()
		if g.token == token && g.state == Verifying {
			g.setStateLocked(previous)
		}
		g.unlock()
		return err
	}
}

func (g *Guard) reject(ctx context.Context, token string) {
	g.mu.Lock()
	if g.token != token {
		g.unlock()
		return
	}
	g.setStateLocked(Rejected)
	g.unlock()

	log.Info().Msg("session rejected by backend")
	changed := g.store.Logout(ctx)

	g.mu.Lock()
	if g.state == Rejected {
		g.resetLocked()
	}
	g.unlock()

	if changed && g.nav != nil {
		g.nav.Navigate(g.loginRoute)
	}
}

func (g *Guard) onSessionChange(s session.Session) {
	if !s.IsLoggedIn {
		g.mu.Lock()
		// a logout landing while the held token is being checked means the backend refused
		// it; the client's auth interceptor got there before the check returned
		if g.token != "" && g.checking[g.token] > 0 {
			log.Info().Msg("session rejected by backend")
			g.setStateLocked(Rejected)
		}
		g.resetLocked()
		g.unlock()
		return
	}

	g.mu.RLock()
	same := g.token == s.Token
	g.mu.RUnlock()
	if !same {
		g.beginVerifying(s.Token)
	}
}

// beginVerifying adopts token and restarts polling with an immediate first check
func (g *Guard) beginVerifying(token string) {
	ctx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	if g.cancelPoll != nil {
		g.cancelPoll()
	}
	g.token = token
	g.verified = false
	g.cancelPoll = cancel
	g.setStateLocked(Verifying)
	g.unlock()

	go g.poll(ctx)
}

// resetLocked moves to Anonymous and tears polling down. Must be called with g.mu held.
func (g *Guard) resetLocked() {
	if g.cancelPoll != nil {
		g.cancelPoll()
		g.cancelPoll = nil
	}
	g.token = ""
	g.verified = false
	g.setStateLocked(Anonymous)
}

func (g *Guard) poll(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := g.Check(ctx)
		if ctx.Err() != nil {
			return
		}

		next := g.pollInterval
		g.mu.RLock()
		verified := g.verified
		g.mu.RUnlock()
		if err != nil && !verified {
			next = g.retryInterval
		}
		timer.Reset(next)
	}
}

func (g *Guard) setState(s State) {
	g.mu.Lock()
	defer g.unlock()
	g.setStateLocked(s)
}

// setStateLocked records s; listeners are told once the lock is released by unlock.
// Must be called with g.mu held.
func (g *Guard) setStateLocked(s State) {
	if g.state == s {
		return
	}
	log.Debug().Str("from", g.state.String()).Str("to", s.String()).Msg("session guard state")
	g.state = s
	g.metrics.GuardState(s.String(), allStates)
	g.pending = append(g.pending, s)
}

// unlock releases g.mu and then notifies listeners of the states recorded while it was held
func (g *Guard) unlock() {
	pending := g.pending
	g.pending = nil
	var listeners []func(State)
	if len(pending) > 0 {
		listeners = make([]func(State), 0, len(g.listeners))
		for _, fn := range g.listeners {
			if fn != nil {
				listeners = append(listeners, fn)
			}
		}
	}
	g.mu.Unlock()

	for _, s := range pending {
		for _, fn := range listeners {
			fn(s)
		}
	}
}
