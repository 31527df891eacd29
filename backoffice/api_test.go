package backoffice_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/devbackend"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/querycache"
	"github.com/jrsteele09/matka-backoffice/session"
	sessionrepofake "github.com/jrsteele09/matka-backoffice/session/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "operator"
	testPassword = "s3cret-pass"
)

type testFixture struct {
	backend  *devbackend.Backend
	server   *httptest.Server
	requests *atomic.Int32
	store    *session.Store
	cache    *querycache.Cache
	api      *backoffice.API
}

func setupTestFixture(t *testing.T, options ...backoffice.APIOption) *testFixture {
	t.Helper()
	b, err := devbackend.New(devbackend.Options{
		AdminUsername: testUsername,
		AdminPassword: testPassword,
		AdminName:     "Test Operator",
		JWTSecret:     "backoffice-test",
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)

	requests := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		b.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := session.NewStore(sessionrepofake.NewFakeSessionRepo(), "persist")
	require.NoError(t, err)
	store.Rehydrate(context.Background())

	client, err := apiclient.New(srv.URL, store)
	require.NoError(t, err)
	cache := querycache.New()
	api, err := backoffice.New(client, cache, options...)
	require.NoError(t, err)

	return &testFixture{backend: b, server: srv, requests: requests, store: store, cache: cache, api: api}
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	resp, err := f.api.Login(context.Background(), backoffice.LoginRequest{Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, f.store.Login(context.Background(), session.LoginPayload{User: resp.Operator(), Token: resp.Token}))
}

func today() string {
	return devbackend.NowTimeFunc().UTC().Format("2006-01-02")
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := backoffice.New(nil, querycache.New())
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := f.api.Login(context.Background(), backoffice.LoginRequest{Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "Test Operator", resp.Operator().DisplayName())

	require.NoError(t, f.store.Login(context.Background(), session.LoginPayload{User: resp.Operator(), Token: resp.Token}))
	current := f.store.Current()
	require.True(t, current.IsLoggedIn)
	require.Equal(t, resp.Token, current.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.api.Login(context.Background(), backoffice.LoginRequest{Username: testUsername, Password: "wrong"})
	require.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	require.False(t, f.store.IsLoggedIn())
}

func TestLoginCustomPath(t *testing.T) {
	f := setupTestFixture(t, backoffice.WithAuthPaths("/api/v2/admin-login", ""))

	_, err := f.api.Login(context.Background(), backoffice.LoginRequest{Username: testUsername, Password: testPassword})
	require.Error(t, err)
	require.True(t, apiclient.IsNotFound(err))
}

func TestValidationBeforeSend(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	before := f.requests.Load()

	_, err := f.api.DeclareResult(context.Background(), backoffice.ResultRequest{
		GameID: 1, Date: today(), Session: backoffice.SessionOpen, Panna: "12",
	})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	var verr *backoffice.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "Panna")

	_, err = f.api.ListBids(context.Background(), backoffice.BidParams{Date: "yesterday"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = f.api.UpdateSettings(context.Background(), backoffice.Settings{MinWithdraw: 500, MaxWithdraw: 100})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = f.api.ApproveFundRequest(context.Background(), 0)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	require.Equal(t, before, f.requests.Load())
}

func TestApproveFundRequestRefreshesMountedList(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	q, err := f.api.FundRequestsQuery(backoffice.ListParams{})
	require.NoError(t, err)
	sub, err := f.cache.Subscribe(ctx, q)
	require.NoError(t, err)
	defer sub.Close()

	statusOf42 := func(snap querycache.Snapshot) string {
		list, ok := snap.Data.(*backoffice.FundRequestList)
		if !ok {
			return ""
		}
		for _, fr := range list.FundRequests {
			if fr.ID == 42 {
				return fr.Status
			}
		}
		return ""
	}

	require.Eventually(t, func() bool {
		return statusOf42(sub.Snapshot()) == backoffice.StatusPending
	}, time.Second, 5*time.Millisecond)

	msg, err := f.api.ApproveFundRequest(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "Fund request 42 approved", msg)

	require.Eventually(t, func() bool {
		snap := sub.Snapshot()
		return snap.Status == querycache.Success && statusOf42(snap) == backoffice.StatusApproved
	}, time.Second, 5*time.Millisecond)
}

func TestFailedMutationLeavesCache(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.api.ListWithdrawals(ctx, backoffice.ListParams{})
	require.NoError(t, err)
	fetched := f.requests.Load()

	_, err = f.api.ApproveWithdrawal(ctx, 999)
	require.True(t, apiclient.IsNotFound(err))

	// the cached list is served without another request
	_, err = f.api.ListWithdrawals(ctx, backoffice.ListParams{})
	require.NoError(t, err)
	require.Equal(t, fetched+1, f.requests.Load())
}

func TestDeclareResultInvalidatesResults(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	results, err := f.api.ListResults(ctx, today())
	require.NoError(t, err)
	require.Empty(t, results.Results)

	report, err := f.api.CheckWinners(ctx, backoffice.ResultRequest{GameID: 1, Date: today(), Session: backoffice.SessionOpen, Panna: "140"})
	require.NoError(t, err)
	require.Len(t, report.Winners, 2)

	msg, err := f.api.DeclareResult(ctx, backoffice.ResultRequest{GameID: 1, Date: today(), Session: backoffice.SessionOpen, Panna: "140"})
	require.NoError(t, err)
	require.Contains(t, msg, "Result declared")

	results, err = f.api.ListResults(ctx, today())
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	require.Equal(t, "140-5*-***", results.Results[0].Display())
}

func TestUploadBanner(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	banners, err := f.api.ListBanners(ctx)
	require.NoError(t, err)
	require.Len(t, banners.Banners, 1)

	msg, err := f.api.UploadBanner(ctx, backoffice.UploadBannerRequest{
		Title:       "Diwali offer",
		FileName:    "diwali.png",
		ContentType: "image/png",
		Content:     bytes.NewReader([]byte("\x89PNG fake")),
	})
	require.NoError(t, err)
	require.Equal(t, "Banner uploaded", msg)

	banners, err = f.api.ListBanners(ctx)
	require.NoError(t, err)
	require.Len(t, banners.Banners, 2)

	_, err = f.api.UploadBanner(ctx, backoffice.UploadBannerRequest{FileName: "x.exe", ContentType: "application/octet-stream", Content: bytes.NewReader(nil)})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSettingsRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	s, err := f.api.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "matka@upi", s.UPIID)

	s.UPIID = "new@upi"
	_, err = f.api.UpdateSettings(ctx, *s)
	require.NoError(t, err)

	s, err = f.api.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "new@upi", s.UPIID)
}

func TestCheckSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.api.CheckSession(ctx))

	f.backend.RevokeAll()
	err := f.api.CheckSession(ctx)
	require.True(t, errors.Is(err, errors.ErrSessionRejected))
}

func TestCheckSessionTransientFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.server.Close()

	err := f.api.CheckSession(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, errors.ErrSessionRejected))
	require.True(t, apiclient.IsTransport(err))
}

func TestDashboard(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	stats, err := f.api.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, stats.TotalUsers)
	require.Equal(t, 2, stats.PendingFundRequests)
}
