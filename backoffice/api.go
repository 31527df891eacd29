package backoffice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/querycache"
	"github.com/rs/zerolog/log"
)

// Cache tags. A mutation lists the tags whose queries it makes stale.
const (
	TagUsers          querycache.Tag = "Users"
	TagFundRequests   querycache.Tag = "FundRequests"
	TagWithdrawals    querycache.Tag = "Withdrawals"
	TagBiddingHistory querycache.Tag = "BiddingHistory"
	TagResults        querycache.Tag = "Results"
	TagBanners        querycache.Tag = "Banners"
	TagSettings       querycache.Tag = "Settings"
	TagGames          querycache.Tag = "Games"
	TagDashboard      querycache.Tag = "Dashboard"
)

// Backend endpoints
const (
	PathLogin          = "/api/admin-login"
	PathCheckSession   = "/api/check-session"
	PathDashboard      = "/api/dashboard"
	PathUsers          = "/api/users"
	PathFundRequests   = "/api/fund-requests"
	PathWithdrawals    = "/api/withdrawals"
	PathBiddingHistory = "/api/bidding-history"
	PathGames          = "/api/games"
	PathResults        = "/api/results"
	PathDeclareResult  = "/api/declare-result"
	PathCheckWinners   = "/api/check-winners"
	PathBanners        = "/api/banners"
	PathSettings       = "/api/settings"
	PathUpdateConfig   = "/api/update-config"
)

// API is the typed surface of the back-office REST backend. Reads go through the query
// cache; writes go through Cache.Mutate so their tags are invalidated on success.
type API struct {
	client    *apiclient.Client
	cache     *querycache.Cache
	validate  *validator.Validate
	loginPath string
	checkPath string
}

// APIOption defines a function type to modify the API instance.
type APIOption func(*API)

// WithAuthPaths overrides the login and session-check endpoints
func WithAuthPaths(login, check string) APIOption {
	return func(a *API) {
		if login != "" {
			a.loginPath = login
		}
		if check != "" {
			a.checkPath = check
		}
	}
}

func New(client *apiclient.Client, cache *querycache.Cache, options ...APIOption) (*API, error) {
	if client == nil {
		return nil, errors.New("[backoffice.New] client is required")
	}
	if cache == nil {
		return nil, errors.New("[backoffice.New] cache is required")
	}
	a := &API{
		client:    client,
		cache:     cache,
		validate:  validator.New(),
		loginPath: PathLogin,
		checkPath: PathCheckSession,
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// ValidationError reports request fields that failed validation before sending
type ValidationError struct {
	Fields map[string]string
	order  []string
}

func (e *ValidationError) Error() string {
	msg := ""
	for i, f := range e.order {
		if i > 0 {
			msg += "; "
		}
		msg += f + " " + e.Fields[f]
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return errors.ErrInvalidRequest
}

// Validate checks a request DTO before anything is sent
func (a *API) Validate(v any) error {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrapf(errors.ErrInvalidRequest, "[API.Validate] %v", err)
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fe.Field()] = fieldMessage(fe)
		ve.order = append(ve.order, fe.Field())
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return "must be " + fe.Param() + " characters"
	case "numeric":
		return "must contain digits only"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must match " + fe.Param()
	case "gtefield":
		return "must not be less than " + fe.Param()
	default:
		return fmt.Sprintf("failed %s %s", fe.Tag(), fe.Param())
	}
}

// call performs one request and returns the backend error as a Go error
func (a *API) call(ctx context.Context, req *apiclient.Request, out any) (*apiclient.Response, error) {
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return resp, resp.Err
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// query builds a cache query that decodes the endpoint's payload into a fresh T
func query[T any](a *API, endpoint string, params url.Values, tags ...querycache.Tag) (querycache.Query, error) {
	key, err := querycache.NewKey(endpoint, params)
	if err != nil {
		return querycache.Query{}, err
	}
	return querycache.Query{
		Key:  key,
		Tags: tags,
		Fetch: func(ctx context.Context) (any, error) {
			out := new(T)
			if _, err := a.call(ctx, &apiclient.Request{Method: http.MethodGet, Endpoint: endpoint, Query: params}, out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}, nil
}

// fetch resolves q through the cache and unwraps its payload
func fetch[T any](ctx context.Context, a *API, q querycache.Query, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	snap, err := a.cache.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if snap.Err != nil {
		return nil, snap.Err
	}
	out, ok := snap.Data.(*T)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInternal, "[backoffice] unexpected payload %T for %s", snap.Data, q.Key)
	}
	return out, nil
}

// mutate sends a write through the cache and returns the backend's message
func (a *API) mutate(ctx context.Context, name string, req *apiclient.Request, tags ...querycache.Tag) (string, error) {
	res, err := a.cache.Mutate(ctx, querycache.Mutation{
		Name:        name,
		Invalidates: tags,
		Run: func(ctx context.Context) (any, error) {
			resp, err := a.call(ctx, req, nil)
			if err != nil {
				return nil, err
			}
			return resp.Message(), nil
		},
	})
	if err != nil {
		log.Debug().Err(err).Str("mutation", name).Msg("mutation rejected")
		return "", err
	}
	msg, _ := res.(string)
	return msg, nil
}

func listValues(p ListParams) url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	return v
}

func idPath(base string, id int64, action string) string {
	p := base + "/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}
