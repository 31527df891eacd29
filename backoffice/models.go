package backoffice

import (
	"io"
	"time"

	"github.com/jrsteele09/matka-backoffice/session"
)

// Request statuses shared by fund requests and withdrawals
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// User account statuses
const (
	UserActive  = "active"
	UserBlocked = "blocked"
)

// Market sessions a result can be declared for
const (
	SessionOpen  = "open"
	SessionClose = "close"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token   string             `json:"token"`
	Message string             `json:"message"`
	Admin   *session.AdminUser `json:"admin,omitempty"`
	User    *session.AdminUser `json:"user,omitempty"`
}

// Operator returns whichever identity object the backend sent
func (r *LoginResponse) Operator() *session.AdminUser {
	if r.Admin != nil {
		return r.Admin
	}
	return r.User
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// HasNext reports whether another page follows
func (p *Pagination) HasNext() bool {
	return p != nil && p.CurrentPage < p.LastPage
}

type DashboardStats struct {
	TotalUsers          int     `json:"total_users"`
	ActiveUsers         int     `json:"active_users"`
	PendingFundRequests int     `json:"pending_fund_requests"`
	PendingWithdrawals  int     `json:"pending_withdrawals"`
	TodayBids           int     `json:"today_bids"`
	TodayBidAmount      float64 `json:"today_bid_amount"`
	TotalWalletBalance  float64 `json:"total_wallet_balance"`
}

type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Mobile        string    `json:"mobile"`
	Email         string    `json:"email,omitempty"`
	WalletBalance float64   `json:"wallet_balance"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type UserList struct {
	Users      []User      `json:"users"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type FundRequest struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	UserName      string    `json:"user_name"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type FundRequestList struct {
	FundRequests []FundRequest `json:"fund_requests"`
	Pagination   *Pagination   `json:"pagination,omitempty"`
}

type Withdrawal struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	UserName       string    `json:"user_name"`
	Amount         float64   `json:"amount"`
	PaymentMethod  string    `json:"payment_method"`
	AccountDetails string    `json:"account_details"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type WithdrawalList struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
	Pagination  *Pagination  `json:"pagination,omitempty"`
}

type Bid struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	GameID    int64     `json:"game_id"`
	GameName  string    `json:"game_name"`
	GameType  string    `json:"game_type"`
	Session   string    `json:"session"`
	Digits    string    `json:"digits"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type BidList struct {
	Bids       []Bid       `json:"bids"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Game struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	Active    bool   `json:"active"`
}

type GameList struct {
	Games []Game `json:"games"`
}

type Result struct {
	ID         int64  `json:"id"`
	GameID     int64  `json:"game_id"`
	GameName   string `json:"game_name"`
	Date       string `json:"date"`
	OpenPanna  string `json:"open_panna,omitempty"`
	OpenDigit  string `json:"open_digit,omitempty"`
	ClosePanna string `json:"close_panna,omitempty"`
	CloseDigit string `json:"close_digit,omitempty"`
}

// Display renders the familiar "123-45-678" board notation, with stars for undeclared parts
func (r Result) Display() string {
	part := func(s string, n int) string {
		if s == "" {
			return "***"[:n]
		}
		return s
	}
	return part(r.OpenPanna, 3) + "-" + part(r.OpenDigit, 1) + part(r.CloseDigit, 1) + "-" + part(r.ClosePanna, 3)
}

type ResultList struct {
	Results []Result `json:"results"`
}

type Winner struct {
	UserID    int64   `json:"user_id"`
	UserName  string  `json:"user_name"`
	GameType  string  `json:"game_type"`
	Digits    string  `json:"digits"`
	Amount    float64 `json:"amount"`
	WinAmount float64 `json:"win_amount"`
}

type WinnersReport struct {
	Winners        []Winner `json:"winners"`
	TotalWinAmount float64  `json:"total_win_amount"`
	Message        string   `json:"message,omitempty"`
}

type Banner struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

type BannerList struct {
	Banners []Banner `json:"banners"`
}

type Settings struct {
	MinDeposit        float64 `json:"min_deposit" validate:"gte=0"`
	MinWithdraw       float64 `json:"min_withdraw" validate:"gte=0"`
	MaxWithdraw       float64 `json:"max_withdraw" validate:"gtefield=MinWithdraw"`
	WithdrawOpenTime  string  `json:"withdraw_open_time" validate:"omitempty,datetime=15:04"`
	WithdrawCloseTime string  `json:"withdraw_close_time" validate:"omitempty,datetime=15:04"`
	UPIID             string  `json:"upi_id"`
	WhatsappNumber    string  `json:"whatsapp_number" validate:"omitempty,numeric,min=10,max=13"`
}

type SettingsResponse struct {
	Settings Settings `json:"settings"`
}

// ListParams narrows a paged list
type ListParams struct {
	Page   int    `validate:"gte=0"`
	Search string `validate:"max=100"`
	Status string `validate:"omitempty,oneof=pending approved rejected active blocked"`
}

type BidParams struct {
	Page   int    `validate:"gte=0"`
	GameID int64  `validate:"gte=0"`
	Date   string `validate:"omitempty,datetime=2006-01-02"`
}

type SetUserStatusRequest struct {
	UserID int64  `json:"-" validate:"gt=0"`
	Status string `json:"status" validate:"required,oneof=active blocked"`
}

type UpdateGameRequest struct {
	GameID    int64  `json:"-" validate:"gt=0"`
	OpenTime  string `json:"open_time" validate:"required,datetime=15:04"`
	CloseTime string `json:"close_time" validate:"required,datetime=15:04"`
	Active    bool   `json:"active"`
}

// ResultRequest declares, or checks winners for, one session of a game on a date
type ResultRequest struct {
	GameID  int64  `json:"game_id" validate:"gt=0"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Session string `json:"session" validate:"required,oneof=open close"`
	Panna   string `json:"panna" validate:"required,len=3,numeric"`
}

type UploadBannerRequest struct {
	Title       string    `validate:"max=120"`
	FileName    string    `validate:"required"`
	ContentType string    `validate:"omitempty,oneof=image/png image/jpeg image/webp image/gif"`
	Content     io.Reader `validate:"required"`
}
