package devbackend_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/devbackend"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "operator"
	testPassword = "s3cret-pass"
	testSecret   = "dev-secret"
)

type testFixture struct {
	backend *devbackend.Backend
	server  *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	b, err := devbackend.New(devbackend.Options{
		AdminUsername: testUsername,
		AdminPassword: testPassword,
		AdminName:     "Test Operator",
		JWTSecret:     testSecret,
		TokenTTL:      time.Hour,
		PageSize:      2,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return &testFixture{backend: b, server: srv}
}

func (f *testFixture) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *testFixture) login(t *testing.T) string {
	t.Helper()
	status, out := f.do(t, http.MethodPost, "/api/admin-login", "", backoffice.LoginRequest{Username: testUsername, Password: testPassword})
	require.Equal(t, http.StatusOK, status)
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := devbackend.New(devbackend.Options{JWTSecret: testSecret, TokenTTL: time.Hour})
	require.Error(t, err)

	_, err = devbackend.New(devbackend.Options{AdminUsername: "a", AdminPassword: "b", TokenTTL: time.Hour})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/admin-login", "", backoffice.LoginRequest{Username: testUsername, Password: testPassword})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out["token"])
	admin, ok := out["admin"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Test Operator", admin["name"])
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupTestFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/admin-login", "", backoffice.LoginRequest{Username: testUsername, Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid credentials", out["message"])
}

func TestLoginValidationShape(t *testing.T) {
	f := setupTestFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/admin-login", "", map[string]string{"username": testUsername})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "The given data was invalid.", out["message"])
	fields, ok := out["errors"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "password")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := setupTestFixture(t)

	status, out := f.do(t, http.MethodGet, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Unauthenticated.", out["message"])

	status, _ = f.do(t, http.MethodGet, "/api/dashboard", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/api/dashboard", f.login(t), nil)
	require.Equal(t, http.StatusOK, status)
}

func TestRevokeAll(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)

	status, _ := f.do(t, http.MethodGet, "/api/check-session", token, nil)
	require.Equal(t, http.StatusOK, status)

	f.backend.RevokeAll()

	status, _ = f.do(t, http.MethodGet, "/api/check-session", token, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	// tokens issued afterwards still work
	status, _ = f.do(t, http.MethodGet, "/api/check-session", f.login(t), nil)
	require.Equal(t, http.StatusOK, status)
}

func TestApproveFundRequest(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)

	status, out := f.do(t, http.MethodPost, "/api/fund-requests/42/approve", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Fund request 42 approved", out["message"])

	fr, ok := f.backend.FundRequest(42)
	require.True(t, ok)
	require.Equal(t, backoffice.StatusApproved, fr.Status)

	// a decided request cannot be decided again
	status, _ = f.do(t, http.MethodPost, "/api/fund-requests/42/reject", token, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/fund-requests/999/approve", token, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestPagination(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)

	status, out := f.do(t, http.MethodGet, "/api/users?page=2", token, nil)
	require.Equal(t, http.StatusOK, status)
	users, _ := out["users"].([]any)
	require.Len(t, users, 2)
	p, _ := out["pagination"].(map[string]any)
	require.EqualValues(t, 2, p["current_page"])
	require.EqualValues(t, 3, p["last_page"])
	require.EqualValues(t, 5, p["total"])
}

func TestDeclareResultSettlesBids(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)
	today := devbackend.NowTimeFunc().UTC().Format("2006-01-02")
	req := backoffice.ResultRequest{GameID: 1, Date: today, Session: backoffice.SessionOpen, Panna: "140"}

	status, out := f.do(t, http.MethodPost, "/api/check-winners", token, req)
	require.Equal(t, http.StatusOK, status)
	winners, _ := out["winners"].([]any)
	require.Len(t, winners, 2)
	require.Equal(t, "2 winners", out["message"])

	status, out = f.do(t, http.MethodPost, "/api/declare-result", token, req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Result declared, 2 winning bids settled", out["message"])

	status, _ = f.do(t, http.MethodPost, "/api/declare-result", token, req)
	require.Equal(t, http.StatusBadRequest, status)

	status, out = f.do(t, http.MethodGet, "/api/results?date="+today, token, nil)
	require.Equal(t, http.StatusOK, status)
	results, _ := out["results"].([]any)
	require.Len(t, results, 1)
	first, _ := results[0].(map[string]any)
	require.Equal(t, "140", first["open_panna"])
	require.Equal(t, "5", first["open_digit"])
}

func TestDeclareResultRejectsBadPanna(t *testing.T) {
	f := setupTestFixture(t)

	status, out := f.do(t, http.MethodPost, "/api/declare-result", f.login(t), backoffice.ResultRequest{
		GameID: 1, Date: "2026-01-02", Session: backoffice.SessionOpen, Panna: "12a",
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	fields, _ := out["errors"].(map[string]any)
	require.Contains(t, fields, "panna")
}

func TestUploadBanner(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Diwali offer"))
	part, err := mw.CreateFormFile("image", "diwali.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/banners", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	status, out := f.do(t, http.MethodGet, "/api/banners", token, nil)
	require.Equal(t, http.StatusOK, status)
	banners, _ := out["banners"].([]any)
	require.Len(t, banners, 2)
}

func TestIssuer(t *testing.T) {
	issuer, err := devbackend.NewIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	admin := &devbackend.Admin{ID: 7, Name: "Seven", Role: "admin"}

	token, err := issuer.Issue(admin)
	require.NoError(t, err)

	sub, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "7", sub)

	issuer.Revoke(token)
	_, err = issuer.Verify(token)
	require.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestIssuerExpiry(t *testing.T) {
	issuer, err := devbackend.NewIssuer(testSecret, time.Minute)
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	devbackend.NowTimeFunc = func() time.Time { return start }
	t.Cleanup(func() { devbackend.NowTimeFunc = time.Now })

	token, err := issuer.Issue(&devbackend.Admin{ID: 1})
	require.NoError(t, err)

	devbackend.NowTimeFunc = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	require.True(t, errors.Is(err, errors.ErrTokenExpired))

	other, err := devbackend.NewIssuer("another-secret", time.Minute)
	require.NoError(t, err)
	devbackend.NowTimeFunc = func() time.Time { return start }
	_, err = other.Verify(token)
	require.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestPasswordHash(t *testing.T) {
	hash, err := devbackend.HashPassword(testPassword)
	require.NoError(t, err)
	require.True(t, devbackend.CheckPasswordHash(testPassword, hash))
	require.False(t, devbackend.CheckPasswordHash("wrong", hash))
}
