package devbackend

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/rs/zerolog/log"
)

const defaultPageSize = 20

type ctxKey string

const ctxKeyAdminID ctxKey = "admin_id"

// Options configures the dev backend
type Options struct {
	AdminUsername string
	AdminPassword string
	AdminName     string
	JWTSecret     string
	TokenTTL      time.Duration
	PageSize      int
}

// Backend is an in-memory implementation of the back-office REST contract, for local
// development and end-to-end tests of the console.
type Backend struct {
	issuer   *Issuer
	data     *dataset
	admin    *Admin
	validate *validator.Validate
	pageSize int
	router   chi.Router
}

func New(opts Options) (*Backend, error) {
	if opts.AdminUsername == "" || opts.AdminPassword == "" {
		return nil, errors.New("[devbackend.New] admin credentials are required")
	}
	issuer, err := NewIssuer(opts.JWTSecret, opts.TokenTTL)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(opts.AdminPassword)
	if err != nil {
		return nil, errors.Wrapf(err, "[devbackend.New] hash admin password")
	}
	name := opts.AdminName
	if name == "" {
		name = "Administrator"
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	b := &Backend{
		issuer: issuer,
		data:   newDataset(),
		admin: &Admin{
			ID:           1,
			Name:         name,
			Username:     opts.AdminUsername,
			Email:        opts.AdminUsername + "@matka.local",
			Role:         "admin",
			PasswordHash: hash,
		},
		validate: validator.New(),
		pageSize: pageSize,
	}
	b.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	b.data.seed(NowTimeFunc())
	b.router = b.routes()
	return b, nil
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// RevokeAll invalidates every issued token, as if they had all expired
func (b *Backend) RevokeAll() {
	b.issuer.RevokeAll()
}

// FundRequest returns a fund request as currently stored
func (b *Backend) FundRequest(id int64) (backoffice.FundRequest, bool) {
	b.data.mu.RLock()
	defer b.data.mu.RUnlock()
	fr, ok := b.data.fundRequests[id]
	if !ok {
		return backoffice.FundRequest{}, false
	}
	return *fr, true
}

func (b *Backend) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/admin-login", b.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(b.requireToken)

			r.Get("/check-session", b.handleCheckSession)
			r.Get("/dashboard", b.handleDashboard)

			r.Get("/users", b.handleListUsers)
			r.Post("/users/{id}/status", b.handleSetUserStatus)

			r.Get("/fund-requests", b.handleListFundRequests)
			r.Post("/fund-requests/{id}/approve", b.handleDecideFundRequest(true))
			r.Post("/fund-requests/{id}/reject", b.handleDecideFundRequest(false))

			r.Get("/withdrawals", b.handleListWithdrawals)
			r.Post("/withdrawals/{id}/approve", b.handleDecideWithdrawal(true))
			r.Post("/withdrawals/{id}/reject", b.handleDecideWithdrawal(false))

			r.Get("/bidding-history", b.handleListBids)

			r.Get("/games", b.handleListGames)
			r.Put("/games/{id}", b.handleUpdateGame)

			r.Get("/results", b.handleListResults)
			r.Post("/declare-result", b.handleDeclareResult)
			r.Post("/check-winners", b.handleCheckWinners)

			r.Get("/banners", b.handleListBanners)
			r.Post("/banners", b.handleUploadBanner)
			r.Delete("/banners/{id}", b.handleDeleteBanner)

			r.Get("/settings", b.handleGetSettings)
			r.Post("/update-config", b.handleUpdateSettings)
		})
	})
	return r
}

// requireToken rejects requests without a valid bearer token with 401
func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		sub, err := b.issuer.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Debug().Err(err).Msg("rejected bearer token")
			writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		id, _ := strconv.ParseInt(sub, 10, 64)
		ctx := context.WithValue(r.Context(), ctxKeyAdminID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("client_request_id", r.Header.Get("X-Request-ID")).
			Msg("dev backend request")
	})
}
