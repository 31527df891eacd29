package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/matka-backoffice/apiclient"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/session"
	sessionrepofake "github.com/jrsteele09/matka-backoffice/session/repofake"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	RequestID     string
	Body          []byte
}

type fixture struct {
	store  *session.Store
	client *apiclient.Client
	server *httptest.Server
	calls  chan recorded
}

func setupFixture(t *testing.T, handler http.HandlerFunc, options ...apiclient.ClientOption) *fixture {
	t.Helper()
	calls := make(chan recorded, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		calls <- recorded{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          body,
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := session.NewStore(sessionrepofake.NewFakeSessionRepo(), "persist")
	require.NoError(t, err)
	store.Rehydrate(context.Background())

	client, err := apiclient.New(srv.URL, store, options...)
	require.NoError(t, err)
	return &fixture{store: store, client: client, server: srv, calls: calls}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_Validation(t *testing.T) {
	store, err := session.NewStore(sessionrepofake.NewFakeSessionRepo(), "persist")
	require.NoError(t, err)

	_, err = apiclient.New("http://localhost", nil)
	require.Error(t, err)

	_, err = apiclient.New("not a url", store)
	require.Error(t, err)
}

func TestClient_BearerTokenAttachment(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"users": []any{}})
	})
	ctx := context.Background()

	resp, err := f.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Endpoint: "/api/users"})
	require.NoError(t, err)
	require.True(t, resp.OK())
	call := <-f.calls
	require.Empty(t, call.Authorization)
	require.NotEmpty(t, call.RequestID)

	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc"}))
	_, err = f.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Endpoint: "/api/users"})
	require.NoError(t, err)
	call = <-f.calls
	require.Equal(t, "Bearer abc", call.Authorization)
}

func TestClient_JSONBodyAndQuery(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "saved"})
	})

	resp, err := f.client.Do(context.Background(), &apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/api/update-config",
		Query:    map[string][]string{"page": {"2"}},
		Body:     map[string]string{"min_withdraw": "500"},
	})
	require.NoError(t, err)
	require.Equal(t, "saved", resp.Message())

	call := <-f.calls
	require.Equal(t, "/api/update-config", call.Path)
	require.Equal(t, "page=2", call.Query)
	require.Equal(t, "application/json", call.ContentType)
	require.JSONEq(t, `{"min_withdraw":"500"}`, string(call.Body))
}

func TestClient_MultipartUsesWriterBoundary(t *testing.T) {
	type upload struct{ Name, File, Title string }
	uploads := make(chan upload, 1)
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		b, _ := io.ReadAll(file)
		uploads <- upload{Name: header.Filename, File: string(b), Title: r.FormValue("title")}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "uploaded"})
	})

	resp, err := f.client.Do(context.Background(), &apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/api/banners",
		Form:     map[string]string{"title": "Diwali"},
		Files:    []apiclient.File{{Field: "image", Name: "banner.png", ContentType: "image/png", Content: strings.NewReader("png-bytes")}},
	})
	require.NoError(t, err)
	require.True(t, resp.OK(), "unexpected error: %v", resp.Err)

	call := <-f.calls
	require.True(t, strings.HasPrefix(call.ContentType, "multipart/form-data; boundary="))
	got := <-uploads
	require.Equal(t, "banner.png", got.Name)
	require.Equal(t, "png-bytes", got.File)
	require.Equal(t, "Diwali", got.Title)
}

func TestClient_ErrorStatusesAreStructured(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/fund-requests/9" {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "fund request not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	})
	ctx := context.Background()

	resp, err := f.client.Do(ctx, &apiclient.Request{Endpoint: "/api/fund-requests/9"})
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.Equal(t, http.StatusNotFound, resp.Err.Status)
	require.Equal(t, apiclient.KindNotFound, resp.Err.Kind)
	require.Equal(t, "fund request not found", resp.Message())
	require.True(t, apiclient.IsNotFound(resp.Err))
	require.Error(t, resp.Decode(&map[string]any{}))

	resp, err = f.client.Do(ctx, &apiclient.Request{Endpoint: "/api/users"})
	require.NoError(t, err)
	require.Equal(t, apiclient.KindServer, resp.Err.Kind)
	require.Equal(t, "boom", resp.Err.Message)
}

func TestClient_422Discriminator(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/declare-result" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "The given data was invalid.",
				"errors":  map[string][]string{"digits": {"must be 3 digits"}},
			})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Token has expired"})
	})
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc"}))

	resp, err := f.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Endpoint: "/api/declare-result"})
	require.NoError(t, err)
	require.True(t, apiclient.IsValidation(resp.Err))
	require.Equal(t, "digits: must be 3 digits", resp.Err.FieldErrors())

	resp, err = f.client.Do(ctx, &apiclient.Request{Endpoint: "/api/users"})
	require.NoError(t, err)
	require.True(t, apiclient.IsAuthFailure(resp.Err))
}

func TestClient_Strict422Policy(t *testing.T) {
	policy := apiclient.DefaultAuthPolicy()
	policy.Validation422IsAuth = true
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "invalid", "errors": map[string][]string{"x": {"bad"}}})
	}, apiclient.WithAuthPolicy(policy))
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc"}))

	resp, err := f.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Endpoint: "/api/update-config"})
	require.NoError(t, err)
	require.True(t, apiclient.IsAuthFailure(resp.Err))
}

func TestClient_AnonymousUnauthorizedIsNotAuthFailure(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})

	resp, err := f.client.Do(context.Background(), &apiclient.Request{Method: http.MethodPost, Endpoint: "/api/admin-login"})
	require.NoError(t, err)
	require.Equal(t, apiclient.KindClient, resp.Err.Kind)
	require.Equal(t, "Invalid credentials", resp.Err.Message)
}

func TestClient_AnonymousRequestSkipsHeldToken(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})
	ctx := context.Background()
	require.NoError(t, f.store.Login(ctx, session.LoginPayload{Token: "abc"}))

	var seen []apiclient.Call
	f.client.Use(apiclient.InterceptorFunc(func(_ context.Context, call apiclient.Call) {
		seen = append(seen, call)
	}))

	resp, err := f.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Endpoint: "/api/admin-login", Anonymous: true})
	require.NoError(t, err)
	require.Equal(t, apiclient.KindClient, resp.Err.Kind)
	require.Empty(t, (<-f.calls).Authorization)
	require.Len(t, seen, 1)
	require.Empty(t, seen[0].Token)
}

func TestClient_TransportFailure(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.server.Close()

	_, err := f.client.Do(context.Background(), &apiclient.Request{Endpoint: "/api/users"})
	require.Error(t, err)
	require.True(t, apiclient.IsTransport(err))
	require.ErrorIs(t, err, errors.ErrTransport)
}

func TestClient_RequiresEndpoint(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := f.client.Do(context.Background(), &apiclient.Request{})
	require.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestResponse_Decode(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"users": []map[string]any{{"id": 1, "name": "Ravi"}}})
	})

	resp, err := f.client.Do(context.Background(), &apiclient.Request{Endpoint: "/api/users"})
	require.NoError(t, err)
	var out struct {
		Users []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"users"`
	}
	require.NoError(t, resp.Decode(&out))
	require.Len(t, out.Users, 1)
	require.Equal(t, "Ravi", out.Users[0].Name)
}
