package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/matka-backoffice/backoffice"
	"golang.org/x/sync/errgroup"
)

const maxBannerUpload = 5 << 20

// DashboardPage holds the headline figures plus the queues waiting on an operator
type DashboardPage struct {
	Stats       *backoffice.DashboardStats
	Funds       []backoffice.FundRequest
	Withdrawals []backoffice.Withdrawal
}

// DashboardHandler loads the stats and both pending queues concurrently
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "dashboard", "Dashboard")
		api := s.app.API
		pending := backoffice.ListParams{Status: backoffice.StatusPending}

		var page DashboardPage
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			stats, err := api.Dashboard(ctx)
			page.Stats = stats
			return err
		})
		g.Go(func() error {
			funds, err := api.ListFundRequests(ctx, pending)
			if funds != nil {
				page.Funds = funds.FundRequests
			}
			return err
		})
		g.Go(func() error {
			wds, err := api.ListWithdrawals(ctx, pending)
			if wds != nil {
				page.Withdrawals = wds.Withdrawals
			}
			return err
		})
		if err := g.Wait(); err != nil {
			s.loadFailed(w, r, "dashboard.html", data, err)
			return
		}
		data.Data = page
		s.renderPage(w, http.StatusOK, "dashboard.html", "layout", data)
	}
}

// ListPage is shared by the paged list screens
type ListPage[T any] struct {
	Items      []T
	Params     backoffice.ListParams
	Pagination *backoffice.Pagination
	Statuses   []string
}

func listParams(r *http.Request) backoffice.ListParams {
	q := r.URL.Query()
	return backoffice.ListParams{
		Page:   queryPage(r),
		Search: strings.TrimSpace(q.Get("search")),
		Status: q.Get("status"),
	}
}

func (s *Server) UsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "users", "Users")
		p := listParams(r)
		list, err := s.app.API.ListUsers(r.Context(), p)
		if err != nil {
			s.loadFailed(w, r, "users.html", data, err)
			return
		}
		data.Data = ListPage[backoffice.User]{
			Items:      list.Users,
			Params:     p,
			Pagination: list.Pagination,
			Statuses:   []string{backoffice.UserActive, backoffice.UserBlocked},
		}
		s.renderPage(w, http.StatusOK, "users.html", "layout", data)
	}
}

// UserStatusHandler blocks or reactivates a user account
func (s *Server) UserStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		msg, err := s.app.API.SetUserStatus(r.Context(), backoffice.SetUserStatusRequest{
			UserID: pathInt(r, "id"),
			Status: r.FormValue("status"),
		})
		s.mutationDone(w, r, backTo(r, RouteUsers), msg, err)
	}
}

func (s *Server) FundRequestsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "fund-requests", "Fund requests")
		p := listParams(r)
		list, err := s.app.API.ListFundRequests(r.Context(), p)
		if err != nil {
			s.loadFailed(w, r, "fund_requests.html", data, err)
			return
		}
		data.Data = ListPage[backoffice.FundRequest]{
			Items:      list.FundRequests,
			Params:     p,
			Pagination: list.Pagination,
			Statuses:   requestStatuses,
		}
		s.renderPage(w, http.StatusOK, "fund_requests.html", "layout", data)
	}
}

var requestStatuses = []string{backoffice.StatusPending, backoffice.StatusApproved, backoffice.StatusRejected}

// FundDecisionHandler approves or rejects a fund request
func (s *Server) FundDecisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		id := pathInt(r, "id")
		api := s.app.API
		var msg string
		var err error
		switch r.PathValue("decision") {
		case "approve":
			msg, err = api.ApproveFundRequest(r.Context(), id)
		case "reject":
			msg, err = api.RejectFundRequest(r.Context(), id)
		default:
			http.NotFound(w, r)
			return
		}
		s.mutationDone(w, r, backTo(r, RouteFundRequests), msg, err)
	}
}

func (s *Server) WithdrawalsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "withdrawals", "Withdrawals")
		p := listParams(r)
		list, err := s.app.API.ListWithdrawals(r.Context(), p)
		if err != nil {
			s.loadFailed(w, r, "withdrawals.html", data, err)
			return
		}
		data.Data = ListPage[backoffice.Withdrawal]{
			Items:      list.Withdrawals,
			Params:     p,
			Pagination: list.Pagination,
			Statuses:   requestStatuses,
		}
		s.renderPage(w, http.StatusOK, "withdrawals.html", "layout", data)
	}
}

func (s *Server) WithdrawalDecisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		id := pathInt(r, "id")
		api := s.app.API
		var msg string
		var err error
		switch r.PathValue("decision") {
		case "approve":
			msg, err = api.ApproveWithdrawal(r.Context(), id)
		case "reject":
			msg, err = api.RejectWithdrawal(r.Context(), id)
		default:
			http.NotFound(w, r)
			return
		}
		s.mutationDone(w, r, backTo(r, RouteWithdrawals), msg, err)
	}
}

// BidsPage carries the filter alongside the games it can select from
type BidsPage struct {
	Items      []backoffice.Bid
	Params     backoffice.BidParams
	Pagination *backoffice.Pagination
	Games      []backoffice.Game
}

func (s *Server) BidsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "bids", "Bidding history")
		q := r.URL.Query()
		gameID, _ := strconv.ParseInt(q.Get("game_id"), 10, 64)
		p := backoffice.BidParams{Page: queryPage(r), GameID: gameID, Date: q.Get("date")}

		var page BidsPage
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			bids, err := s.app.API.ListBids(ctx, p)
			if bids != nil {
				page.Items, page.Pagination = bids.Bids, bids.Pagination
			}
			return err
		})
		g.Go(func() error {
			games, err := s.app.API.ListGames(ctx)
			if games != nil {
				page.Games = games.Games
			}
			return err
		})
		if err := g.Wait(); err != nil {
			s.loadFailed(w, r, "bids.html", data, err)
			return
		}
		page.Params = p
		data.Data = page
		s.renderPage(w, http.StatusOK, "bids.html", "layout", data)
	}
}

func (s *Server) GamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "games", "Games")
		games, err := s.app.API.ListGames(r.Context())
		if err != nil {
			s.loadFailed(w, r, "games.html", data, err)
			return
		}
		data.Data = games.Games
		s.renderPage(w, http.StatusOK, "games.html", "layout", data)
	}
}

// UpdateGameHandler changes a game's market times or takes it offline
func (s *Server) UpdateGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		msg, err := s.app.API.UpdateGame(r.Context(), backoffice.UpdateGameRequest{
			GameID:    pathInt(r, "id"),
			OpenTime:  r.FormValue("open_time"),
			CloseTime: r.FormValue("close_time"),
			Active:    r.FormValue("active") == "on" || r.FormValue("active") == "true",
		})
		s.mutationDone(w, r, RouteGames, msg, err)
	}
}

// ResultsPage lists a day's results. Winners is filled only after a winners preview.
type ResultsPage struct {
	Date    string
	Results []backoffice.Result
	Games   []backoffice.Game
	Form    backoffice.ResultRequest
	Winners *backoffice.WinnersReport
}

func today() string {
	return time.Now().UTC().Format(time.DateOnly)
}

func (s *Server) ResultsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderResults(w, r, nil, backoffice.ResultRequest{})
	}
}

func (s *Server) renderResults(w http.ResponseWriter, r *http.Request, winners *backoffice.WinnersReport, form backoffice.ResultRequest) {
	data := s.newPageData(r, "results", "Results")
	date := r.URL.Query().Get("date")
	if form.Date != "" {
		date = form.Date
	}
	if date == "" {
		date = today()
	}
	page := ResultsPage{Date: date, Winners: winners, Form: form}
	if page.Form.Session == "" {
		page.Form.Session = backoffice.SessionOpen
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		results, err := s.app.API.ListResults(ctx, date)
		if results != nil {
			page.Results = results.Results
		}
		return err
	})
	g.Go(func() error {
		games, err := s.app.API.ListGames(ctx)
		if games != nil {
			page.Games = games.Games
		}
		return err
	})
	if err := g.Wait(); err != nil {
		s.loadFailed(w, r, "results.html", data, err)
		return
	}
	data.Data = page
	s.renderPage(w, http.StatusOK, "results.html", "layout", data)
}

func resultForm(r *http.Request) backoffice.ResultRequest {
	gameID, _ := strconv.ParseInt(r.FormValue("game_id"), 10, 64)
	date := r.FormValue("date")
	if date == "" {
		date = today()
	}
	return backoffice.ResultRequest{
		GameID:  gameID,
		Date:    date,
		Session: r.FormValue("session"),
		Panna:   strings.TrimSpace(r.FormValue("panna")),
	}
}

// DeclareResultHandler publishes a result; the results list refreshes through the cache
func (s *Server) DeclareResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		req := resultForm(r)
		msg, err := s.app.API.DeclareResult(r.Context(), req)
		s.mutationDone(w, r, RouteResults+"?date="+req.Date, msg, err)
	}
}

// CheckWinnersHandler previews the winners of a result without declaring it
func (s *Server) CheckWinnersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		req := resultForm(r)
		report, err := s.app.API.CheckWinners(r.Context(), req)
		if err != nil {
			s.mutationDone(w, r, RouteResults+"?date="+req.Date, "", err)
			return
		}
		s.renderResults(w, r, report, req)
	}
}

func (s *Server) BannersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "banners", "Banners")
		banners, err := s.app.API.ListBanners(r.Context())
		if err != nil {
			s.loadFailed(w, r, "banners.html", data, err)
			return
		}
		data.Data = banners.Banners
		s.renderPage(w, http.StatusOK, "banners.html", "layout", data)
	}
}

// UploadBannerHandler forwards an uploaded image to the backend
func (s *Server) UploadBannerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxBannerUpload); err != nil {
			redirectWithFlash(w, r, RouteBanners, "Choose an image under 5 MB", true)
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			redirectWithFlash(w, r, RouteBanners, "Choose an image to upload", true)
			return
		}
		defer file.Close()

		msg, err := s.app.API.UploadBanner(r.Context(), backoffice.UploadBannerRequest{
			Title:       strings.TrimSpace(r.FormValue("title")),
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		})
		s.mutationDone(w, r, RouteBanners, msg, err)
	}
}

func (s *Server) DeleteBannerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := s.app.API.DeleteBanner(r.Context(), r.PathValue("id"))
		s.mutationDone(w, r, RouteBanners, msg, err)
	}
}

func (s *Server) SettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "settings", "Settings")
		settings, err := s.app.API.GetSettings(r.Context())
		if err != nil {
			s.loadFailed(w, r, "settings.html", data, err)
			return
		}
		data.Data = settings
		s.renderPage(w, http.StatusOK, "settings.html", "layout", data)
	}
}

func (s *Server) UpdateSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			return
		}
		amount := func(field string) float64 {
			v, _ := strconv.ParseFloat(strings.TrimSpace(r.FormValue(field)), 64)
			return v
		}
		msg, err := s.app.API.UpdateSettings(r.Context(), backoffice.Settings{
			MinDeposit:        amount("min_deposit"),
			MinWithdraw:       amount("min_withdraw"),
			MaxWithdraw:       amount("max_withdraw"),
			WithdrawOpenTime:  r.FormValue("withdraw_open_time"),
			WithdrawCloseTime: r.FormValue("withdraw_close_time"),
			UPIID:             strings.TrimSpace(r.FormValue("upi_id")),
			WhatsappNumber:    strings.TrimSpace(r.FormValue("whatsapp_number")),
		})
		s.mutationDone(w, r, RouteSettings, msg, err)
	}
}
