package guard

// State of the operator session as seen by routing
type State int

const (
	// Unknown while the persisted session is rehydrating
	Unknown State = iota
	// Anonymous when no token is held
	Anonymous
	// Verifying while a session check is in flight
	Verifying
	// Authenticated when the last check succeeded
	Authenticated
	// Rejected when the last check failed with an auth error
	Rejected
)

var allStates = []string{"unknown", "anonymous", "verifying", "authenticated", "rejected"}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(allStates) {
		return "invalid"
	}
	return allStates[s]
}

// Action tells the caller what to do with a route
type Action int

const (
	Render Action = iota
	Loading
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "invalid"
	}
}

// Decision is the routing outcome for one path. Location is set for Redirect.
type Decision struct {
	Action   Action
	Location string
}
