// Package session holds the signed-in user state handed to every screen and
// the gate that decides what a screen may render for that state.
package session

import (
	"fmt"

	"github.com/Ashfaaq98/casedesk/internal/model"
)

// Route names a screen.
type Route string

const (
	RouteHome      Route = "home"
	RouteSignIn    Route = "signin"
	RouteSignUp    Route = "signup"
	RouteDashboard Route = "dashboard"
	RouteUpgrade   Route = "upgrade"
)

// Routes lists every screen in navigation order.
var Routes = []Route{RouteHome, RouteSignIn, RouteSignUp, RouteDashboard, RouteUpgrade}

// Protected reports whether the route requires a signed-in user.
func (r Route) Protected() bool {
	return r == RouteDashboard || r == RouteUpgrade
}

// AuthOnly reports whether the route is only for visitors without a session.
func (r Route) AuthOnly() bool {
	return r == RouteSignIn || r == RouteSignUp
}

// ParseRoute resolves a route name.
func ParseRoute(s string) (Route, error) {
	for _, r := range Routes {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown route %q", s)
}

// Snapshot is the session state at one point in time. A nil User means
// nobody is signed in.
type Snapshot struct {
	User    *model.User
	Loading bool
}

// SignedIn reports whether the snapshot carries a user.
func (s Snapshot) SignedIn() bool {
	return !s.Loading && s.User != nil
}

// UserID returns the signed-in user's id or "".
func (s Snapshot) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Action is what the gate tells a screen to do.
type Action int

const (
	ActionLoading Action = iota
	ActionRedirect
	ActionRender
)

func (a Action) String() string {
	switch a {
	case ActionLoading:
		return "loading"
	case ActionRedirect:
		return "redirect"
	case ActionRender:
		return "render"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Decision is the gate's verdict for a route. Route is set only for
// ActionRedirect.
type Decision struct {
	Action Action
	Route  Route
}

// Gate decides whether route may render for the given session state.
// While the state is loading nothing else happens.
func Gate(s Snapshot, route Route) Decision {
	switch {
	case s.Loading:
		return Decision{Action: ActionLoading}
	case s.User == nil && route.Protected():
		return Decision{Action: ActionRedirect, Route: RouteSignIn}
	case s.User != nil && route.AuthOnly():
		return Decision{Action: ActionRedirect, Route: RouteDashboard}
	default:
		return Decision{Action: ActionRender}
	}
}

// Resolve follows redirects from route and returns the screen to show.
// The returned decision is never a redirect.
func Resolve(s Snapshot, route Route) (Route, Decision) {
	for i := 0; i < len(Routes); i++ {
		d := Gate(s, route)
		if d.Action != ActionRedirect {
			return route, d
		}
		route = d.Route
	}
	return route, Decision{Action: ActionRender}
}
