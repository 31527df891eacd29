package querycache

import (
	"encoding/json"

	"github.com/jrsteele09/matka-backoffice/internal/errors"
)

// Tag groups cache entries for invalidation
type Tag string

// Key identifies a cached query: the endpoint plus its arguments in canonical JSON form.
// Two subscriptions with equal keys share one entry and one in-flight request.
type Key struct {
	Endpoint string
	Args     string
}

// NewKey builds a Key. Maps are encoded with sorted keys by encoding/json, so equal
// argument values always produce the same key.
func NewKey(endpoint string, args any) (Key, error) {
	if endpoint == "" {
		return Key{}, errors.Wrapf(errors.ErrInvalidRequest, "[querycache.NewKey] endpoint is required")
	}
	if args == nil {
		return Key{Endpoint: endpoint}, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return Key{}, errors.Wrapf(err, "[querycache.NewKey] encode args for %s", endpoint)
	}
	if string(b) == "null" || string(b) == "{}" {
		return Key{Endpoint: endpoint}, nil
	}
	return Key{Endpoint: endpoint, Args: string(b)}, nil
}

func (k Key) String() string {
	if k.Args == "" {
		return k.Endpoint
	}
	return k.Endpoint + " " + k.Args
}
