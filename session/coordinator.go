// Package session owns the authenticated-user state of the client process: the
// login/logout/refresh flows, the realtime channel lifecycle, proactive
// keep-alive, and reconciliation with other processes sharing the same
// credential file. It is the only writer of session state; every other
// component either feeds events into it or reads snapshots out of it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-arena-client/api"
	"github.com/jrsteele09/go-arena-client/tokenstore"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// State is the coordinator's position in its lifecycle.
type State int

const (
	// StateLoading holds from Start until the persisted-token probe settles.
	StateLoading State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session handed to subscribers.
type Snapshot struct {
	State State
	User  *api.User // nil unless State is StateAuthenticated
}

// Channel is the realtime connection owned by the coordinator. The production
// implementation is realtime.Channel; tests substitute a fake.
type Channel interface {
	Open(ctx context.Context, accessToken string) error
	Close() error
}

// AuthAPI is the slice of the API client the coordinator drives.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	ExchangeOAuth(ctx context.Context, req api.OAuthExchangeRequest) (*api.AuthResponse, error)
	FetchOAuthConfig(ctx context.Context) (*api.OAuthConfig, error)
	Refresh(ctx context.Context) (*tokenstore.TokenPair, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.User, error)
}

var _ AuthAPI = (*api.Client)(nil)

const (
	defaultKeepAlive = 4 * time.Minute
	keepAliveFloor   = 30 * time.Second
	expiryMargin     = time.Minute
)

// Coordinator is the session state machine.
type Coordinator struct {
	api       AuthAPI
	store     tokenstore.Store
	channel   Channel
	log       zerolog.Logger
	keepAlive time.Duration
	onChange  func(Snapshot)

	mu    sync.Mutex
	state State
	user  *api.User

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithKeepAliveInterval overrides the proactive-refresh interval.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.keepAlive = d }
}

// WithOnChange registers a callback invoked after every state transition. It
// is called outside the coordinator's lock, one call per transition, in order.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// New wires a Coordinator. Call Start before any other method.
func New(authAPI AuthAPI, store tokenstore.Store, channel Channel, options ...Option) *Coordinator {
	c := &Coordinator{
		api:       authAPI,
		store:     store,
		channel:   channel,
		log:       zerolog.Nop(),
		keepAlive: defaultKeepAlive,
		state:     StateLoading,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Snapshot returns the current session view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, User: copyUser(c.user)}
}

// Start probes the persisted tokens and resolves the initial state, then runs
// the keep-alive loop and the store-change listener until Stop. A failed
// identity fetch on a held pair clears the pair: the session it described is
// not usable.
func (c *Coordinator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx, c.cancel = runCtx, cancel

	pair, err := c.store.Tokens()
	if err != nil {
		cancel()
		return err
	}

	if pair == nil {
		c.transition(StateAnonymous, nil)
	} else if user, err := c.api.Me(runCtx); err != nil {
		c.log.Debug().Err(err).Msg("persisted session not usable")
		if clearErr := c.store.Clear(); clearErr != nil {
			c.log.Error().Err(clearErr).Msg("clear unusable tokens")
		}
		c.transition(StateAnonymous, nil)
	} else {
		c.becomeAuthenticated(runCtx, user)
	}

	c.wg.Add(2)
	go c.watchStore(runCtx)
	go c.keepAliveLoop(runCtx)
	return nil
}

// Stop cancels the background loops and closes the realtime channel. The
// token store is left untouched: stopping a client is not a logout.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	_ = c.channel.Close()
}

// Login authenticates with platform credentials. On failure, including the
// banned case which carries its reason through apierr, state is untouched
// and no tokens are stored.
func (c *Coordinator) Login(ctx context.Context, email, password string) error {
	if err := validateLogin(email, password); err != nil {
		return err
	}
	resp, err := c.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	return c.adoptSession(resp)
}

// Register creates an account and signs it in.
func (c *Coordinator) Register(ctx context.Context, username, email, password string) error {
	if err := validateRegistration(username, email, password); err != nil {
		return err
	}
	resp, err := c.api.Register(ctx, api.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return err
	}
	return c.adoptSession(resp)
}

// Logout tears the session down. The server notification is best-effort: a
// network failure never leaves the client authenticated.
func (c *Coordinator) Logout(ctx context.Context) {
	if err := c.api.Logout(ctx); err != nil {
		c.log.Debug().Err(err).Msg("server logout failed, proceeding locally")
	}
	_ = c.channel.Close()
	if err := c.store.Clear(); err != nil {
		c.log.Error().Err(err).Msg("clear tokens on logout")
	}
	c.transition(StateAnonymous, nil)
}

// adoptSession persists the pair from an auth response and transitions to
// authenticated with the identity it carried.
func (c *Coordinator) adoptSession(resp *api.AuthResponse) error {
	if c.runCtx == nil {
		return ErrNotStarted
	}
	pair := tokenstore.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := c.store.Save(pair); err != nil {
		return err
	}
	user := resp.User
	c.becomeAuthenticated(c.runCtx, &user)
	return nil
}

func (c *Coordinator) becomeAuthenticated(ctx context.Context, user *api.User) {
	c.transition(StateAuthenticated, user)
	pair, err := c.store.Tokens()
	if err != nil || pair == nil {
		c.log.Warn().Err(err).Msg("no tokens on hand for realtime channel")
		return
	}
	if err := c.channel.Open(ctx, pair.AccessToken); err != nil {
		c.log.Warn().Err(err).Msg("open realtime channel")
	}
}

// HandleBalancePush applies a realtime balance update. Only the two wallet
// fields move; identity and authentication state are untouched. Wire it as
// the realtime channel's event handler.
func (c *Coordinator) HandleBalancePush(push api.BalancePush) {
	c.mu.Lock()
	if c.state != StateAuthenticated || c.user == nil {
		c.mu.Unlock()
		return
	}
	c.user.Balance = push.Balance
	c.user.UCBalance = push.UCBalance
	snap := Snapshot{State: c.state, User: copyUser(c.user)}
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// watchStore reconciles this process with external mutations of the shared
// credential file. A clear by another process logs this one out immediately,
// before any pending request gets a chance to fail on the dead token; a new
// pair appearing while anonymous signs this process in.
func (c *Coordinator) watchStore(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-c.store.Changes():
			if !ok {
				return
			}
			c.applyStoreChange(ctx, change)
		}
	}
}

func (c *Coordinator) applyStoreChange(ctx context.Context, change tokenstore.Change) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch {
	case change.Pair == nil && state == StateAuthenticated:
		c.log.Info().Msg("tokens cleared externally, logging out")
		_ = c.channel.Close()
		c.transition(StateAnonymous, nil)

	case change.Pair != nil && state == StateAnonymous:
		user, err := c.api.Me(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("externally written tokens not usable")
			return
		}
		c.log.Info().Msg("tokens appeared externally, signing in")
		c.becomeAuthenticated(ctx, user)

	case change.Pair != nil && state == StateAuthenticated:
		// Another process rotated the pair. Our channel still holds the old
		// access token, which will stop authenticating once it expires.
		if err := c.channel.Open(ctx, change.Pair.AccessToken); err != nil {
			c.log.Warn().Err(err).Msg("reopen realtime channel after rotation")
		}
	}
}

// keepAliveLoop proactively refreshes the pair so the realtime channel's
// credential never silently expires while the process runs. A failed refresh
// forces nothing here: the next authenticated request's 401 handling is the
// backstop.
func (c *Coordinator) keepAliveLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		wait := c.nextKeepAlive()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		c.mu.Lock()
		authenticated := c.state == StateAuthenticated
		c.mu.Unlock()
		if !authenticated {
			continue
		}

		fresh, err := c.api.Refresh(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("keep-alive refresh failed")
			continue
		}
		if err := c.channel.Open(ctx, fresh.AccessToken); err != nil {
			c.log.Warn().Err(err).Msg("reopen realtime channel after keep-alive")
		}
	}
}

// nextKeepAlive picks the next refresh delay: the configured interval, pulled
// in when the held access token's exp claim says it would expire sooner.
func (c *Coordinator) nextKeepAlive() time.Duration {
	wait := c.keepAlive
	pair, err := c.store.Tokens()
	if err != nil || pair == nil {
		return wait
	}
	if exp, ok := tokenExpiry(pair.AccessToken); ok {
		untilRefresh := exp.Sub(NowTimeFunc()) - expiryMargin
		if untilRefresh < wait {
			// Never spin on an already-expired token: the floor only bounds
			// the exp-derived shortening, not the configured interval.
			wait = untilRefresh
			if wait < keepAliveFloor {
				wait = keepAliveFloor
			}
		}
	}
	return wait
}

// tokenExpiry reads the exp claim without verifying the signature. The client
// has no verification key and needs none: the claim is only a scheduling hint,
// the server remains the authority on token validity.
func tokenExpiry(accessToken string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (c *Coordinator) transition(state State, user *api.User) {
	c.mu.Lock()
	c.state = state
	c.user = copyUser(user)
	snap := Snapshot{State: state, User: copyUser(user)}
	fn := c.onChange
	c.mu.Unlock()

	c.log.Debug().Stringer("state", state).Msg("session state changed")
	if fn != nil {
		fn(snap)
	}
}

func copyUser(u *api.User) *api.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// IsAuthenticated reports whether a valid session is held right now.
func (c *Coordinator) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAuthenticated
}

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("session: coordinator not started")
