package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Listener is called after every session change, outside the store's lock
type Listener func(Session)

type registered struct {
	id int
	fn Listener
}

// Store is the single source of truth for the operator session. Every mutation is persisted
// under one namespaced key so the session survives restarts.
type Store struct {
	// writeMu serialises mutate+persist+notify so listeners observe changes in order
	writeMu   sync.Mutex
	mu        sync.RWMutex
	repo      Repo
	key       string
	current   Session
	listeners []registered
	nextID    int

	ready     chan struct{}
	readyOnce sync.Once
}

var _ oauth2.TokenSource = (*Store)(nil)

// NewStore creates a store persisting to repo under Key(namespace). The store starts logged
// out and not ready; call Rehydrate before making routing decisions.
func NewStore(repo Repo, namespace string) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repo is required")
	}
	return &Store{
		repo:  repo,
		key:   Key(namespace),
		ready: make(chan struct{}),
	}, nil
}

// Rehydrate loads the persisted session. Missing, unreadable or corrupted state yields a logged
// out session; it never fails. Ready is closed once this returns.
func (s *Store) Rehydrate(ctx context.Context) Session {
	defer s.readyOnce.Do(func() { close(s.ready) })
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loaded := s.load(ctx)

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.notify(loaded)
	return loaded
}

func (s *Store) load(ctx context.Context) Session {
	data, err := s.repo.Load(ctx, s.key)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return Session{}
	}
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("persisted session unreadable, starting logged out")
		return Session{}
	}

	var stored Session
	if err := json.Unmarshal(data, &stored); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("persisted session corrupted, starting logged out")
		if err := s.repo.Delete(ctx, s.key); err != nil {
			log.Err(err).Msg("failed to clear corrupted session")
		}
		return Session{}
	}
	return stored.normalised()
}

// Ready is closed when rehydration has completed
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Login stores the user and token. Subsequent API calls attach the token as a bearer credential.
func (s *Store) Login(ctx context.Context, payload LoginPayload) error {
	if payload.Token == "" {
		return errors.Wrapf(errors.ErrInvalidToken, "[Store.Login] empty token")
	}
	next := Session{Token: payload.Token, User: payload.User, IsLoggedIn: true}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.persist(ctx, next)
	s.notify(next)
	return nil
}

// Logout clears the session. It reports whether anything changed; logging out while already
// logged out does nothing.
func (s *Store) Logout(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.current.IsLoggedIn && s.current.Token == "" && s.current.User == nil {
		s.mu.Unlock()
		return false
	}
	s.current = Session{}
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, s.key); err != nil {
		log.Err(err).Str("key", s.key).Msg("failed to clear persisted session")
	}
	s.notify(Session{})
	return true
}

// Current returns a copy of the session
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.current
	if c.User != nil {
		u := *c.User
		c.User = &u
	}
	return c
}

// IsLoggedIn reports whether a token is held
func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsLoggedIn
}

// AccessToken returns the raw bearer token, or "" when logged out
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Token implements oauth2.TokenSource so the store can drive an oauth2.Transport
func (s *Store) Token() (*oauth2.Token, error) {
	token := s.AccessToken()
	if token == "" {
		return nil, errors.ErrNotLoggedIn
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// OnChange registers a listener and returns a function that removes it
func (s *Store) OnChange(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, registered{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) persist(ctx context.Context, sess Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		log.Err(err).Msg("failed to encode session")
		return
	}
	if err := s.repo.Save(ctx, s.key, data); err != nil {
		log.Err(err).Str("key", s.key).Msg("failed to persist session")
	}
}

func (s *Store) notify(sess Session) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l.fn)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(sess)
	}
}
