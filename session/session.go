package session

// AdminUser is the operator identity returned by the admin-login endpoint
type AdminUser struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// DisplayName prefers the full name over the username
func (u *AdminUser) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Session is the client-held proof of authentication. IsLoggedIn == (Token != "") always holds
// for sessions handed out by a Store.
type Session struct {
	Token      string     `json:"token"`
	User       *AdminUser `json:"user"`
	IsLoggedIn bool       `json:"isLoggedIn"`
}

// LoginPayload is what a successful admin-login yields
type LoginPayload struct {
	User  *AdminUser
	Token string
}

func (s Session) normalised() Session {
	s.IsLoggedIn = s.Token != ""
	if !s.IsLoggedIn {
		s.User = nil
	}
	return s
}

// Key returns the namespaced storage key for the persisted session, e.g. "persist:auth"
func Key(namespace string) string {
	if namespace == "" {
		namespace = "persist"
	}
	return namespace + ":auth"
}
