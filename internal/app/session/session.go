/*
Package session implements the session/presence state machine that owns the
"who is signed in" question for a client of the service.

States and transitions:

	SignedOut -> Authenticating   on sign-in or sign-up submission
	Authenticating -> SignedIn    on identity service success (presence: online)
	Authenticating -> SignedOut   on identity service failure (error surfaced)
	SignedIn -> SignedOut         on explicit sign-out (presence: offline)

A Tracker starts in Authenticating and stays there until the identity service
reports the restored session, or its absence, asynchronously. That report is a
one-shot subscription, not a poll.
*/
package session

import (
	"context"
	"sync"

	"veilchat/internal/app/identity"
	"veilchat/internal/app/user"
	"veilchat/internal/pkg/logx"
)

// State enumerates the session machine states.
type State int

const (
	SignedOut State = iota
	Authenticating
	SignedIn
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed-out"
	case Authenticating:
		return "authenticating"
	case SignedIn:
		return "signed-in"
	}
	return "unknown"
}

// ChangeFunc receives state transitions. The user is non-nil only in SignedIn.
type ChangeFunc func(state State, u *user.User)

// Tracker is the session state machine. All methods are safe for concurrent use.
type Tracker struct {
	svc identity.Service

	mu        sync.Mutex
	state     State
	current   *identity.Session
	listeners []ChangeFunc
}

// NewTracker creates a Tracker in the Authenticating state, pending the
// one-shot restore report from Start.
func NewTracker(svc identity.Service) *Tracker {
	return &Tracker{svc: svc, state: Authenticating}
}

// Start kicks off the asynchronous session restore. With an empty persisted
// token the machine settles in SignedOut immediately; otherwise the identity
// service decides. Start returns without waiting for the outcome.
func (t *Tracker) Start(ctx context.Context, persistedToken string) {
	go func() {
		if persistedToken == "" {
			t.transition(SignedOut, nil)
			return
		}

		sess, err := t.svc.Restore(ctx, persistedToken)
		if err != nil {
			logx.Warn("Session restore failed, starting signed-out", "error", err)
			t.transition(SignedOut, nil)
			return
		}

		t.transition(SignedIn, sess)
	}()
}

// SignUp drives a sign-up submission through the machine. On failure the
// machine lands in SignedOut and the identity error is returned to the caller.
func (t *Tracker) SignUp(ctx context.Context, input identity.SignupInput) (*identity.Session, error) {
	t.transition(Authenticating, nil)

	sess, err := t.svc.CreateAccount(ctx, input)
	if err != nil {
		t.transition(SignedOut, nil)
		return nil, err
	}

	t.transition(SignedIn, sess)
	return sess, nil
}

// SignIn drives a sign-in submission through the machine.
func (t *Tracker) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	t.transition(Authenticating, nil)

	sess, err := t.svc.Authenticate(ctx, email, password)
	if err != nil {
		t.transition(SignedOut, nil)
		return nil, err
	}

	t.transition(SignedIn, sess)
	return sess, nil
}

// SignOut ends the current session: presence goes offline, last-seen is
// stamped, and the machine lands in SignedOut. Signing out while already
// signed out is a no-op.
func (t *Tracker) SignOut(ctx context.Context) error {
	t.mu.Lock()
	current := t.current
	t.mu.Unlock()

	if current == nil {
		return nil
	}

	if err := t.svc.EndSession(ctx, current.User.ID); err != nil {
		return err
	}

	t.transition(SignedOut, nil)
	return nil
}

// State returns the current machine state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns the active session, or nil outside SignedIn.
func (t *Tracker) Current() *identity.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// OnChange registers a transition listener. Listeners run synchronously on
// the goroutine performing the transition, in registration order.
func (t *Tracker) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// transition moves the machine and notifies listeners.
func (t *Tracker) transition(state State, sess *identity.Session) {
	t.mu.Lock()
	t.state = state
	if state == SignedIn {
		t.current = sess
	} else {
		t.current = nil
	}
	listeners := make([]ChangeFunc, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	var u *user.User
	if sess != nil {
		u = sess.User
	}

	logx.Debug("Session state transition", "state", state.String())

	for _, fn := range listeners {
		fn(state, u)
	}
}
