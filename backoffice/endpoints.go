package backoffice

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/querycache"
)

// Login exchanges operator credentials for a token. It is a public call: a 401 here means
// bad credentials, not an expired session.
func (a *API) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := a.Validate(req); err != nil {
		return nil, err
	}
	var out LoginResponse
	resp, err := a.call(ctx, &apiclient.Request{Method: http.MethodPost, Endpoint: a.loginPath, Body: req, Anonymous: true}, &out)
	if err != nil {
		if resp != nil && resp.Err != nil && (resp.Status == http.StatusUnauthorized || resp.Status == http.StatusUnprocessableEntity) {
			return nil, errors.Wrapf(errors.ErrInvalidCredentials, "%s", resp.Err.Message)
		}
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[API.Login] backend returned no token")
	}
	return &out, nil
}

// CheckSession asks the backend whether the held token is still valid. A rejected token
// yields an error wrapping errors.ErrSessionRejected; other failures are transient.
func (a *API) CheckSession(ctx context.Context) error {
	resp, err := a.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Endpoint: a.checkPath})
	if err != nil {
		return err
	}
	if resp.Err == nil {
		return nil
	}
	if resp.Err.Kind == apiclient.KindAuth {
		return errors.Wrapf(errors.ErrSessionRejected, "check session: %v", resp.Err)
	}
	return resp.Err
}

func (a *API) DashboardQuery() (querycache.Query, error) {
	return query[DashboardStats](a, PathDashboard, nil, TagDashboard)
}

func (a *API) Dashboard(ctx context.Context) (*DashboardStats, error) {
	q, err := a.DashboardQuery()
	return fetch[DashboardStats](ctx, a, q, err)
}

func (a *API) UsersQuery(p ListParams) (querycache.Query, error) {
	if err := a.Validate(p); err != nil {
		return querycache.Query{}, err
	}
	return query[UserList](a, PathUsers, listValues(p), TagUsers)
}

func (a *API) ListUsers(ctx context.Context, p ListParams) (*UserList, error) {
	q, err := a.UsersQuery(p)
	return fetch[UserList](ctx, a, q, err)
}

// SetUserStatus blocks or re-activates a user account
func (a *API) SetUserStatus(ctx context.Context, req SetUserStatusRequest) (string, error) {
	if err := a.Validate(req); err != nil {
		return "", err
	}
	return a.mutate(ctx, "set user status",
		&apiclient.Request{Method: http.MethodPost, Endpoint: idPath(PathUsers, req.UserID, "status"), Body: req},
		TagUsers, TagDashboard)
}

func (a *API) FundRequestsQuery(p ListParams) (querycache.Query, error) {
	if err := a.Validate(p); err != nil {
		return querycache.Query{}, err
	}
	return query[FundRequestList](a, PathFundRequests, listValues(p), TagFundRequests)
}

func (a *API) ListFundRequests(ctx context.Context, p ListParams) (*FundRequestList, error) {
	q, err := a.FundRequestsQuery(p)
	return fetch[FundRequestList](ctx, a, q, err)
}

// ApproveFundRequest credits the user's wallet; the backend owns the ledger change
func (a *API) ApproveFundRequest(ctx context.Context, id int64) (string, error) {
	return a.decide(ctx, "approve fund request", PathFundRequests, id, "approve", TagFundRequests)
}

func (a *API) RejectFundRequest(ctx context.Context, id int64) (string, error) {
	return a.decide(ctx, "reject fund request", PathFundRequests, id, "reject", TagFundRequests)
}

func (a *API) WithdrawalsQuery(p ListParams) (querycache.Query, error) {
	if err := a.Validate(p); err != nil {
		return querycache.Query{}, err
	}
	return query[WithdrawalList](a, PathWithdrawals, listValues(p), TagWithdrawals)
}

func (a *API) ListWithdrawals(ctx context.Context, p ListParams) (*WithdrawalList, error) {
	q, err := a.WithdrawalsQuery(p)
	return fetch[WithdrawalList](ctx, a, q, err)
}

func (a *API) ApproveWithdrawal(ctx context.Context, id int64) (string, error) {
	return a.decide(ctx, "approve withdrawal", PathWithdrawals, id, "approve", TagWithdrawals)
}

func (a *API) RejectWithdrawal(ctx context.Context, id int64) (string, error) {
	return a.decide(ctx, "reject withdrawal", PathWithdrawals, id, "reject", TagWithdrawals)
}

func (a *API) decide(ctx context.Context, name, base string, id int64, action string, tag querycache.Tag) (string, error) {
	if id <= 0 {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "[API.%s] invalid id %d", action, id)
	}
	return a.mutate(ctx, name, &apiclient.Request{Method: http.MethodPost, Endpoint: idPath(base, id, action)},
		tag, TagUsers, TagDashboard)
}

func (a *API) BidsQuery(p BidParams) (querycache.Query, error) {
	if err := a.Validate(p); err != nil {
		return querycache.Query{}, err
	}
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.GameID > 0 {
		v.Set("game_id", strconv.FormatInt(p.GameID, 10))
	}
	if p.Date != "" {
		v.Set("date", p.Date)
	}
	return query[BidList](a, PathBiddingHistory, v, TagBiddingHistory)
}

func (a *API) ListBids(ctx context.Context, p BidParams) (*BidList, error) {
	q, err := a.BidsQuery(p)
	return fetch[BidList](ctx, a, q, err)
}

func (a *API) GamesQuery() (querycache.Query, error) {
	return query[GameList](a, PathGames, nil, TagGames)
}

func (a *API) ListGames(ctx context.Context) (*GameList, error) {
	q, err := a.GamesQuery()
	return fetch[GameList](ctx, a, q, err)
}

// UpdateGame changes a market's timings or takes it offline
func (a *API) UpdateGame(ctx context.Context, req UpdateGameRequest) (string, error) {
	if err := a.Validate(req); err != nil {
		return "", err
	}
	return a.mutate(ctx, "update game",
		&apiclient.Request{Method: http.MethodPut, Endpoint: idPath(PathGames, req.GameID, ""), Body: req},
		TagGames)
}

func (a *API) ResultsQuery(date string) (querycache.Query, error) {
	v := url.Values{}
	if date != "" {
		v.Set("date", date)
	}
	return query[ResultList](a, PathResults, v, TagResults)
}

func (a *API) ListResults(ctx context.Context, date string) (*ResultList, error) {
	q, err := a.ResultsQuery(date)
	return fetch[ResultList](ctx, a, q, err)
}

// DeclareResult publishes a panna for one session; the backend settles the bids
func (a *API) DeclareResult(ctx context.Context, req ResultRequest) (string, error) {
	if err := a.Validate(req); err != nil {
		return "", err
	}
	return a.mutate(ctx, "declare result",
		&apiclient.Request{Method: http.MethodPost, Endpoint: PathDeclareResult, Body: req},
		TagResults, TagBiddingHistory, TagDashboard, TagUsers)
}

// CheckWinners previews who would win if req were declared. Nothing is cached.
func (a *API) CheckWinners(ctx context.Context, req ResultRequest) (*WinnersReport, error) {
	if err := a.Validate(req); err != nil {
		return nil, err
	}
	var out WinnersReport
	if _, err := a.call(ctx, &apiclient.Request{Method: http.MethodPost, Endpoint: PathCheckWinners, Body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) BannersQuery() (querycache.Query, error) {
	return query[BannerList](a, PathBanners, nil, TagBanners)
}

func (a *API) ListBanners(ctx context.Context) (*BannerList, error) {
	q, err := a.BannersQuery()
	return fetch[BannerList](ctx, a, q, err)
}

// UploadBanner sends the image as multipart form data
func (a *API) UploadBanner(ctx context.Context, req UploadBannerRequest) (string, error) {
	if err := a.Validate(req); err != nil {
		return "", err
	}
	form := map[string]string{}
	if req.Title != "" {
		form["title"] = req.Title
	}
	return a.mutate(ctx, "upload banner", &apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: PathBanners,
		Form:     form,
		Files:    []apiclient.File{{Field: "image", Name: req.FileName, ContentType: req.ContentType, Content: req.Content}},
	}, TagBanners)
}

func (a *API) DeleteBanner(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "[API.DeleteBanner] id is required")
	}
	return a.mutate(ctx, "delete banner",
		&apiclient.Request{Method: http.MethodDelete, Endpoint: PathBanners + "/" + url.PathEscape(id)},
		TagBanners)
}

func (a *API) SettingsQuery() (querycache.Query, error) {
	return query[SettingsResponse](a, PathSettings, nil, TagSettings)
}

func (a *API) GetSettings(ctx context.Context) (*Settings, error) {
	q, err := a.SettingsQuery()
	out, err := fetch[SettingsResponse](ctx, a, q, err)
	if err != nil {
		return nil, err
	}
	return &out.Settings, nil
}

func (a *API) UpdateSettings(ctx context.Context, s Settings) (string, error) {
	if err := a.Validate(s); err != nil {
		return "", err
	}
	return a.mutate(ctx, "update settings",
		&apiclient.Request{Method: http.MethodPost, Endpoint: PathUpdateConfig, Body: s},
		TagSettings)
}
