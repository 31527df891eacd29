package devbackend

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxUploadSize = 5 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, backoffice.MessageResponse{Message: msg})
}

// writeError maps domain errors onto the status codes the console expects
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Record not found.")
	case errors.Is(err, errors.ErrInvalidRequest):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Err(err).Msg("dev backend failure")
		writeMessage(w, http.StatusInternalServerError, "Something went wrong.")
	}
}

// decodeAndValidate reads a JSON body into v. Validation failures produce the 422
// {message, errors} shape; it reports whether the handler should continue.
func (b *Backend) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return b.validateBody(w, v)
}

func (b *Backend) validateBody(w http.ResponseWriter, v any) bool {
	err := b.validate.Struct(v)
	if err == nil {
		return true
	}
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], "The "+fe.Field()+" field is invalid ("+fe.Tag()+").")
		}
	} else {
		fields["body"] = []string{err.Error()}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
	return false
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusNotFound, "Record not found.")
		return 0, false
	}
	return id, true
}

// paginate slices items for the requested page
func paginate[T any](r *http.Request, items []T, size int) ([]T, *backoffice.Pagination) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	total := len(items)
	last := (total + size - 1) / size
	if last < 1 {
		last = 1
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], &backoffice.Pagination{CurrentPage: page, LastPage: last, PerPage: size, Total: total}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req backoffice.LoginRequest
	if !b.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Username != b.admin.Username || !CheckPasswordHash(req.Password, b.admin.PasswordHash) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := b.issuer.Issue(b.admin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backoffice.LoginResponse{Token: token, Message: "Login successful", Admin: b.admin.Public()})
}

func (b *Backend) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(ctxKeyAdminID).(int64)
	if id != b.admin.ID {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Session valid", "admin": b.admin.Public()})
}

func (b *Backend) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.data.dashboard(NowTimeFunc()))
}

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, p := paginate(r, b.data.listUsers(q.Get("search"), q.Get("status")), b.pageSize)
	writeJSON(w, http.StatusOK, backoffice.UserList{Users: users, Pagination: p})
}

func (b *Backend) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req backoffice.SetUserStatusRequest
	req.UserID = id
	if !b.decodeAndValidate(w, r, &req) {
		return
	}
	if err := b.data.setUserStatus(id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User status updated to "+req.Status)
}

func (b *Backend) handleListFundRequests(w http.ResponseWriter, r *http.Request) {
	items, p := paginate(r, b.data.listFundRequests(r.URL.Query().Get("status")), b.pageSize)
	writeJSON(w, http.StatusOK, backoffice.FundRequestList{FundRequests: items, Pagination: p})
}

func (b *Backend) handleDecideFundRequest(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		fr, err := b.data.decideFundRequest(id, approve)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Fund request "+strconv.FormatInt(fr.ID, 10)+" "+fr.Status)
	}
}

func (b *Backend) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	items, p := paginate(r, b.data.listWithdrawals(r.URL.Query().Get("status")), b.pageSize)
	writeJSON(w, http.StatusOK, backoffice.WithdrawalList{Withdrawals: items, Pagination: p})
}

func (b *Backend) handleDecideWithdrawal(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		wd, err := b.data.decideWithdrawal(id, approve)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Withdrawal "+strconv.FormatInt(wd.ID, 10)+" "+wd.Status)
	}
}

func (b *Backend) handleListBids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gameID, _ := strconv.ParseInt(q.Get("game_id"), 10, 64)
	items, p := paginate(r, b.data.listBids(gameID, q.Get("date")), b.pageSize)
	writeJSON(w, http.StatusOK, backoffice.BidList{Bids: items, Pagination: p})
}

func (b *Backend) handleListGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, backoffice.GameList{Games: b.data.listGames()})
}

func (b *Backend) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req backoffice.UpdateGameRequest
	req.GameID = id
	if !b.decodeAndValidate(w, r, &req) {
		return
	}
	if err := b.data.updateGame(id, req.OpenTime, req.CloseTime, req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Game updated")
}

func (b *Backend) handleListResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, backoffice.ResultList{Results: b.data.listResults(r.URL.Query().Get("date"))})
}

func (b *Backend) handleDeclareResult(w http.ResponseWriter, r *http.Request) {
	var req backoffice.ResultRequest
	if !b.decodeAndValidate(w, r, &req) {
		return
	}
	won, err := b.data.declareResult(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Result declared, "+strconv.Itoa(won)+" winning bids settled")
}

func (b *Backend) handleCheckWinners(w http.ResponseWriter, r *http.Request) {
	var req backoffice.ResultRequest
	if !b.decodeAndValidate(w, r, &req) {
		return
	}
	report := b.data.checkWinners(req)
	report.Message = strconv.Itoa(len(report.Winners)) + " winners"
	writeJSON(w, http.StatusOK, report)
}

func (b *Backend) handleListBanners(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, backoffice.BannerList{Banners: b.data.listBanners()})
}

func (b *Backend) handleUploadBanner(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"image": {"The image must be a multipart upload."}},
		})
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"image": {"The image field is required."}},
		})
		return
	}
	defer file.Close()

	banner := b.data.addBanner(r.FormValue("title"), header.Filename, NowTimeFunc())
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Banner uploaded", "banner": banner})
}

func (b *Backend) handleDeleteBanner(w http.ResponseWriter, r *http.Request) {
	if err := b.data.deleteBanner(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Banner deleted")
}

func (b *Backend) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, backoffice.SettingsResponse{Settings: b.data.getSettings()})
}

func (b *Backend) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s backoffice.Settings
	if !b.decodeAndValidate(w, r, &s) {
		return
	}
	b.data.updateSettings(s)
	writeMessage(w, http.StatusOK, "Settings updated")
}
