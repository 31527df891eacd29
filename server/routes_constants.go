package server

// Route path constants
const (
	RouteRoot   = "/"
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	RouteDashboard    = "/dashboard"
	RouteUsers        = "/users"
	RouteUserStatus   = "/users/{id}/status"
	RouteFundRequests = "/fund-requests"
	RouteFundDecision = "/fund-requests/{id}/{decision}"
	RouteWithdrawals  = "/withdrawals"
	RouteWithdrawal   = "/withdrawals/{id}/{decision}"
	RouteBids         = "/bidding-history"
	RouteGames        = "/games"
	RouteGame         = "/games/{id}"
	RouteResults      = "/results"
	RouteDeclare      = "/results/declare"
	RouteWinners      = "/results/winners"
	RouteBanners      = "/banners"
	RouteBannerDelete = "/banners/{id}/delete"
	RouteSettings     = "/settings"

	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
	RouteStatic  = "/static/{file}"
)
