package devbackend

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/matka-backoffice/backoffice"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
)

// Payout multipliers per game type
var payoutRates = map[string]float64{
	"single":       9.5,
	"jodi":         95,
	"single_panna": 140,
	"double_panna": 280,
	"triple_panna": 600,
}

// dataset is the in-memory state of the dev backend
type dataset struct {
	mu           sync.RWMutex
	users        map[int64]*backoffice.User
	fundRequests map[int64]*backoffice.FundRequest
	withdrawals  map[int64]*backoffice.Withdrawal
	bids         map[int64]*backoffice.Bid
	games        map[int64]*backoffice.Game
	results      map[string]*backoffice.Result
	banners      map[string]*backoffice.Banner
	settings     backoffice.Settings
}

func newDataset() *dataset {
	return &dataset{
		users:        make(map[int64]*backoffice.User),
		fundRequests: make(map[int64]*backoffice.FundRequest),
		withdrawals:  make(map[int64]*backoffice.Withdrawal),
		bids:         make(map[int64]*backoffice.Bid),
		games:        make(map[int64]*backoffice.Game),
		results:      make(map[string]*backoffice.Result),
		banners:      make(map[string]*backoffice.Banner),
	}
}

func (d *dataset) seed(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	created := now.Add(-72 * time.Hour).UTC()
	names := []string{"Ravi Patil", "Sunita Jadhav", "Imran Shaikh", "Pooja Kulkarni", "Deepak More"}
	for i, name := range names {
		id := int64(i + 1)
		status := backoffice.UserActive
		if i == len(names)-1 {
			status = backoffice.UserBlocked
		}
		d.users[id] = &backoffice.User{
			ID:            id,
			Name:          name,
			Mobile:        "98200000" + strconv.Itoa(10+i),
			WalletBalance: float64(500 * (i + 1)),
			Status:        status,
			CreatedAt:     created,
		}
	}

	games := []backoffice.Game{
		{ID: 1, Name: "Kalyan", OpenTime: "15:45", CloseTime: "17:45", Active: true},
		{ID: 2, Name: "Milan Day", OpenTime: "14:55", CloseTime: "16:55", Active: true},
		{ID: 3, Name: "Rajdhani Night", OpenTime: "21:25", CloseTime: "23:35", Active: true},
		{ID: 4, Name: "Main Bazar", OpenTime: "21:40", CloseTime: "00:05", Active: false},
	}
	for i := range games {
		g := games[i]
		d.games[g.ID] = &g
	}

	for _, fr := range []backoffice.FundRequest{
		{ID: 40, UserID: 1, Amount: 1000, PaymentMethod: "upi", TransactionID: "UTR4001", Status: backoffice.StatusApproved},
		{ID: 41, UserID: 2, Amount: 250, PaymentMethod: "upi", TransactionID: "UTR4101", Status: backoffice.StatusPending},
		{ID: 42, UserID: 3, Amount: 500, PaymentMethod: "bank", TransactionID: "UTR4201", Status: backoffice.StatusPending},
		{ID: 43, UserID: 4, Amount: 750, PaymentMethod: "upi", TransactionID: "UTR4301", Status: backoffice.StatusRejected},
	} {
		fr := fr
		fr.UserName = d.users[fr.UserID].Name
		fr.CreatedAt = created
		d.fundRequests[fr.ID] = &fr
	}

	for _, w := range []backoffice.Withdrawal{
		{ID: 70, UserID: 1, Amount: 300, PaymentMethod: "upi", AccountDetails: "ravi@upi", Status: backoffice.StatusPending},
		{ID: 71, UserID: 2, Amount: 200, PaymentMethod: "bank", AccountDetails: "XXXX1234", Status: backoffice.StatusPending},
	} {
		w := w
		w.UserName = d.users[w.UserID].Name
		w.CreatedAt = created
		d.withdrawals[w.ID] = &w
	}

	for _, b := range []backoffice.Bid{
		{ID: 100, UserID: 1, GameID: 1, GameType: "single", Session: backoffice.SessionOpen, Digits: "5", Amount: 100},
		{ID: 101, UserID: 2, GameID: 1, GameType: "single_panna", Session: backoffice.SessionOpen, Digits: "140", Amount: 20},
		{ID: 102, UserID: 3, GameID: 1, GameType: "single", Session: backoffice.SessionOpen, Digits: "3", Amount: 50},
		{ID: 103, UserID: 4, GameID: 2, GameType: "single", Session: backoffice.SessionClose, Digits: "7", Amount: 10},
	} {
		b := b
		b.UserName = d.users[b.UserID].Name
		b.GameName = d.games[b.GameID].Name
		b.Status = StatusBidPlaced
		b.CreatedAt = now.UTC()
		d.bids[b.ID] = &b
	}

	welcome := &backoffice.Banner{ID: uuid.New().String(), Title: "Welcome bonus", ImageURL: "/uploads/welcome.png", CreatedAt: created}
	d.banners[welcome.ID] = welcome

	d.settings = backoffice.Settings{
		MinDeposit:        100,
		MinWithdraw:       200,
		MaxWithdraw:       50000,
		WithdrawOpenTime:  "10:00",
		WithdrawCloseTime: "22:00",
		UPIID:             "matka@upi",
		WhatsappNumber:    "919820000000",
	}
}

// Bid statuses
const (
	StatusBidPlaced = "placed"
	StatusBidWon    = "won"
	StatusBidLost   = "lost"
)

func (d *dataset) dashboard(now time.Time) backoffice.DashboardStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats backoffice.DashboardStats
	stats.TotalUsers = len(d.users)
	for _, u := range d.users {
		if u.Status == backoffice.UserActive {
			stats.ActiveUsers++
		}
		stats.TotalWalletBalance += u.WalletBalance
	}
	for _, fr := range d.fundRequests {
		if fr.Status == backoffice.StatusPending {
			stats.PendingFundRequests++
		}
	}
	for _, w := range d.withdrawals {
		if w.Status == backoffice.StatusPending {
			stats.PendingWithdrawals++
		}
	}
	y, m, day := now.Date()
	for _, b := range d.bids {
		by, bm, bd := b.CreatedAt.Date()
		if by == y && bm == m && bd == day {
			stats.TodayBids++
			stats.TodayBidAmount += b.Amount
		}
	}
	return stats
}

func (d *dataset) listUsers(search, status string) []backoffice.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.User, 0, len(d.users))
	search = strings.ToLower(search)
	for _, u := range d.users {
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Mobile, search) {
			continue
		}
		if status != "" && u.Status != status {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *dataset) setUserStatus(id int64, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return errors.ErrNotFound
	}
	u.Status = status
	return nil
}

func (d *dataset) listFundRequests(status string) []backoffice.FundRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.FundRequest, 0, len(d.fundRequests))
	for _, fr := range d.fundRequests {
		if status == "" || fr.Status == status {
			out = append(out, *fr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// decideFundRequest approves (crediting the wallet) or rejects a pending request
func (d *dataset) decideFundRequest(id int64, approve bool) (*backoffice.FundRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fr, ok := d.fundRequests[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if fr.Status != backoffice.StatusPending {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "fund request already %s", fr.Status)
	}
	if approve {
		fr.Status = backoffice.StatusApproved
		if u, ok := d.users[fr.UserID]; ok {
			u.WalletBalance += fr.Amount
		}
	} else {
		fr.Status = backoffice.StatusRejected
	}
	c := *fr
	return &c, nil
}

func (d *dataset) listWithdrawals(status string) []backoffice.Withdrawal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.Withdrawal, 0, len(d.withdrawals))
	for _, w := range d.withdrawals {
		if status == "" || w.Status == status {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// decideWithdrawal approves (debiting the wallet) or rejects a pending withdrawal
func (d *dataset) decideWithdrawal(id int64, approve bool) (*backoffice.Withdrawal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.withdrawals[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if w.Status != backoffice.StatusPending {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "withdrawal already %s", w.Status)
	}
	if approve {
		u, ok := d.users[w.UserID]
		if ok && u.WalletBalance < w.Amount {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "insufficient wallet balance")
		}
		if ok {
			u.WalletBalance -= w.Amount
		}
		w.Status = backoffice.StatusApproved
	} else {
		w.Status = backoffice.StatusRejected
	}
	c := *w
	return &c, nil
}

func (d *dataset) listBids(gameID int64, date string) []backoffice.Bid {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.Bid, 0, len(d.bids))
	for _, b := range d.bids {
		if gameID > 0 && b.GameID != gameID {
			continue
		}
		if date != "" && b.CreatedAt.Format("2006-01-02") != date {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (d *dataset) listGames() []backoffice.Game {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.Game, 0, len(d.games))
	for _, g := range d.games {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *dataset) updateGame(id int64, open, close string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return errors.ErrNotFound
	}
	g.OpenTime, g.CloseTime, g.Active = open, close, active
	return nil
}

func (d *dataset) listResults(date string) []backoffice.Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.Result, 0, len(d.results))
	for _, r := range d.results {
		if date == "" || r.Date == date {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].GameID < out[j].GameID
	})
	return out
}

func resultKey(gameID int64, date string) string {
	return strconv.FormatInt(gameID, 10) + "/" + date
}

// pannaDigit is the last digit of the sum of the panna's digits
func pannaDigit(panna string) string {
	sum := 0
	for _, r := range panna {
		sum += int(r - '0')
	}
	return strconv.Itoa(sum % 10)
}

// winners evaluates bids against a declared panna without changing anything.
// Must be called with d.mu held.
func (d *dataset) winnersLocked(req backoffice.ResultRequest) []backoffice.Winner {
	digit := pannaDigit(req.Panna)
	var jodi string
	if req.Session == backoffice.SessionClose {
		if r, ok := d.results[resultKey(req.GameID, req.Date)]; ok && r.OpenDigit != "" {
			jodi = r.OpenDigit + digit
		}
	}

	var winners []backoffice.Winner
	for _, b := range d.bids {
		if b.GameID != req.GameID || b.CreatedAt.Format("2006-01-02") != req.Date {
			continue
		}
		won := false
		switch b.GameType {
		case "single":
			won = b.Session == req.Session && b.Digits == digit
		case "jodi":
			won = jodi != "" && b.Digits == jodi
		default:
			won = b.Session == req.Session && b.Digits == req.Panna
		}
		if won {
			winners = append(winners, backoffice.Winner{
				UserID:    b.UserID,
				UserName:  b.UserName,
				GameType:  b.GameType,
				Digits:    b.Digits,
				Amount:    b.Amount,
				WinAmount: b.Amount * payoutRates[b.GameType],
			})
		}
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].UserID < winners[j].UserID })
	return winners
}

func (d *dataset) checkWinners(req backoffice.ResultRequest) backoffice.WinnersReport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	report := backoffice.WinnersReport{Winners: d.winnersLocked(req)}
	for _, w := range report.Winners {
		report.TotalWinAmount += w.WinAmount
	}
	return report
}

// declareResult stores the panna and settles the session's bids, crediting winners
func (d *dataset) declareResult(req backoffice.ResultRequest) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.games[req.GameID]
	if !ok {
		return 0, errors.ErrNotFound
	}
	key := resultKey(req.GameID, req.Date)
	r, ok := d.results[key]
	if !ok {
		r = &backoffice.Result{ID: int64(len(d.results) + 1), GameID: g.ID, GameName: g.Name, Date: req.Date}
		d.results[key] = r
	}
	if req.Session == backoffice.SessionOpen {
		if r.OpenPanna != "" {
			return 0, errors.Wrapf(errors.ErrInvalidRequest, "open result already declared")
		}
	} else if r.ClosePanna != "" {
		return 0, errors.Wrapf(errors.ErrInvalidRequest, "close result already declared")
	}

	winners := d.winnersLocked(req)
	if req.Session == backoffice.SessionOpen {
		r.OpenPanna, r.OpenDigit = req.Panna, pannaDigit(req.Panna)
	} else {
		r.ClosePanna, r.CloseDigit = req.Panna, pannaDigit(req.Panna)
	}

	won := make(map[int64]bool)
	for _, w := range winners {
		if u, ok := d.users[w.UserID]; ok {
			u.WalletBalance += w.WinAmount
		}
	}
	for _, b := range d.bids {
		if b.GameID != req.GameID || b.CreatedAt.Format("2006-01-02") != req.Date || b.Status != StatusBidPlaced {
			continue
		}
		if b.Session != req.Session && b.GameType != "jodi" {
			continue
		}
		if b.GameType == "jodi" && req.Session != backoffice.SessionClose {
			continue
		}
		b.Status = StatusBidLost
		for _, w := range winners {
			if w.UserID == b.UserID && w.Digits == b.Digits && w.GameType == b.GameType {
				b.Status = StatusBidWon
				won[b.ID] = true
			}
		}
	}
	return len(won), nil
}

func (d *dataset) listBanners() []backoffice.Banner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]backoffice.Banner, 0, len(d.banners))
	for _, b := range d.banners {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (d *dataset) addBanner(title, fileName string, now time.Time) backoffice.Banner {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &backoffice.Banner{
		ID:        uuid.New().String(),
		Title:     title,
		ImageURL:  "/uploads/" + fileName,
		CreatedAt: now.UTC(),
	}
	d.banners[b.ID] = b
	return *b
}

func (d *dataset) deleteBanner(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.banners[id]; !ok {
		return errors.ErrNotFound
	}
	delete(d.banners, id)
	return nil
}

func (d *dataset) getSettings() backoffice.Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

func (d *dataset) updateSettings(s backoffice.Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
}
