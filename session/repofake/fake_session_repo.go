package sessionrepofake

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/session"
)

var _ session.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory session.Repo. Fail makes every call return an error.
type FakeSessionRepo struct {
	data  map[string][]byte
	saves int
	Fail  bool
	lock  sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		data: make(map[string][]byte),
	}
}

func (r *FakeSessionRepo) Load(_ context.Context, key string) ([]byte, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.Fail {
		return nil, errors.New("storage unavailable")
	}
	data, ok := r.data[key]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return append([]byte(nil), data...), nil
}

func (r *FakeSessionRepo) Save(_ context.Context, key string, data []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.Fail {
		return errors.New("storage unavailable")
	}
	r.data[key] = append([]byte(nil), data...)
	r.saves++
	return nil
}

func (r *FakeSessionRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.Fail {
		return errors.New("storage unavailable")
	}
	delete(r.data, key)
	return nil
}

// Put stores raw bytes, e.g. to simulate a corrupted payload
func (r *FakeSessionRepo) Put(key string, data []byte) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.data[key] = data
}

// Raw returns what is stored under key
func (r *FakeSessionRepo) Raw(key string) ([]byte, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	data, ok := r.data[key]
	return data, ok
}

// Saves counts successful Save calls
func (r *FakeSessionRepo) Saves() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.saves
}
