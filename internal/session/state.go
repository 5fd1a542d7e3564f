package session

import (
	"nnfp/internal/auth"
	"nnfp/internal/wire"
)

// State is the authentication state of a session.  Exactly one of
// Unauthenticated, AwaitingAuthResponse or Authenticated.
type State interface {
	state()
	String() string
}

// Unauthenticated is the initial state.
type Unauthenticated struct{}

// AwaitingAuthResponse holds the response the peer must echo back.
type AwaitingAuthResponse struct {
	Username string
	Expected []byte
}

// Authenticated carries the user and the home directory every path is
// resolved against.
type Authenticated struct {
	Username string
	Home     string
}

func (Unauthenticated) state() {}
func (AwaitingAuthResponse) state() {}
func (Authenticated) state() {}

func (Unauthenticated) String() string { return "unauthenticated" }
func (AwaitingAuthResponse) String() string { return "awaiting-auth-response" }
func (a Authenticated) String() string { return "authenticated(" + a.Username + ")" }

// outbound is a reply frame produced by a transition.
type outbound struct {
	typ     wire.Reply
	payload []byte
}

var authFailure = outbound{typ: wire.RepAuthFailure}

// login handles a Login frame in any state.  A pending challenge or an
// existing authentication is discarded either way.
func login(gw auth.Gateway, username string) (State, outbound) {
	if !gw.IsValidUsername(username) {
		return Unauthenticated{}, authFailure
	}
	ch, err := gw.IssueChallenge(username)
	if err != nil {
		return Unauthenticated{}, authFailure
	}
	return AwaitingAuthResponse{Username: username, Expected: ch.Expected},
		outbound{typ: wire.RepAuthCheckData, payload: ch.Plain}
}

// authenticate handles an Auth frame.  On success the caller follows up
// with the root listing; the returned ok reports that.
func authenticate(gw auth.Gateway, cur State, response []byte) (next State, ok bool) {
	pending, awaiting := cur.(AwaitingAuthResponse)
	if !awaiting {
		return cur, false
	}
	if !auth.Verify(pending.Expected, response) {
		return Unauthenticated{}, false
	}
	home, found := gw.HomeDirectoryFor(pending.Username)
	if !found {
		return Unauthenticated{}, false
	}
	return Authenticated{Username: pending.Username, Home: home}, true
}
