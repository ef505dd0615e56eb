// Package guard decides whether a view may be shown for the current
// session state. Decisions are pure functions of a session snapshot and
// are recomputed on every call, never cached across state transitions.
package guard

import (
	"net/url"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/users"
)

// Action is the outcome of an authorization check.
type Action int

const (
	// ActionAllow renders the requested view.
	ActionAllow Action = iota
	// ActionWait shows a neutral verifying indicator; no redirect yet.
	ActionWait
	// ActionRedirect sends the viewer to Decision.Target.
	ActionRedirect
)

// Requirement declares what a view demands from the session.
type Requirement struct {
	// RequireAuth gates the view to authenticated sessions. When false
	// the view is guest-only and authenticated viewers are sent away.
	RequireAuth bool
	// Roles restricts an authenticated view to one of the given roles.
	// Empty means any authenticated user.
	Roles []users.RoleType
}

// Decision is the result of evaluating a requirement.
type Decision struct {
	Action Action
	Target string
}

// Paths configures where redirects land.
type Paths struct {
	Login        string
	Home         string
	Unauthorized string
}

// DefaultPaths mirrors the application's route layout.
func DefaultPaths() Paths {
	return Paths{
		Login:        "/auth/login",
		Home:         "/",
		Unauthorized: "/unauthorized",
	}
}

// Guard evaluates requirements against session snapshots.
type Guard struct {
	paths Paths
}

func New(paths Paths) *Guard {
	defaults := DefaultPaths()
	if paths.Login == "" {
		paths.Login = defaults.Login
	}
	if paths.Home == "" {
		paths.Home = defaults.Home
	}
	if paths.Unauthorized == "" {
		paths.Unauthorized = defaults.Unauthorized
	}
	return &Guard{paths: paths}
}

// Evaluate gates requestedPath under the given requirement. While the
// session is still verifying the decision is Wait, never a redirect: the
// outcome is unknown until verification settles.
func (g *Guard) Evaluate(snapshot session.Snapshot, requirement Requirement, requestedPath string) Decision {
	if snapshot.State == session.StateVerifying {
		return Decision{Action: ActionWait}
	}

	if requirement.RequireAuth && !snapshot.Authenticated {
		return Decision{Action: ActionRedirect, Target: g.loginTarget(requestedPath)}
	}

	if !requirement.RequireAuth && snapshot.Authenticated {
		return Decision{Action: ActionRedirect, Target: g.paths.Home}
	}

	if requirement.RequireAuth && !snapshot.User.HasAnyRole(requirement.Roles...) {
		return Decision{Action: ActionRedirect, Target: g.paths.Unauthorized}
	}

	return Decision{Action: ActionAllow}
}

// loginTarget carries the originally requested location so the viewer can
// be returned there after logging in.
func (g *Guard) loginTarget(requestedPath string) string {
	if requestedPath == "" {
		return g.paths.Login
	}
	return g.paths.Login + "?redirect=" + url.QueryEscape(requestedPath)
}
