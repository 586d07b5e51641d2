// ABOUTME: Authentication session state and its pure transition functions
// ABOUTME: Every lifecycle outcome maps the previous state to the next without side effects

package session

import "github.com/woragis/woragis-posts-frontend/auth"

// State mirrors sign-in status for presentation.
type State struct {
	User          *auth.User
	Authenticated bool
	Loading       bool
	Error         string
}

// SignedOut is the terminal signed-out state, optionally carrying an error.
func SignedOut(errMsg string) State {
	return State{Error: errMsg}
}

// SignedIn is the terminal signed-in state.
func SignedIn(user *auth.User) State {
	return State{User: user, Authenticated: true}
}

// Begin marks a sign-in attempt in progress and drops any previous error.
func Begin(s State) State {
	s.Loading = true
	s.Error = ""
	return s
}

// Pending marks work in progress and keeps the previous error.
func Pending(s State) State {
	s.Loading = true
	return s
}

// Failed keeps the current identity and records the error.
func Failed(s State, errMsg string) State {
	s.Loading = false
	s.Error = errMsg
	return s
}

// ProfileUpdated swaps in the updated user.
func ProfileUpdated(s State, user *auth.User) State {
	s.User = user
	return s
}
