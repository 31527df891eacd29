package session

import "context"

// Repo is durable storage for the serialised Session. Load returns
// errors.ErrSessionNotFound when nothing is stored under key.
type Repo interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
