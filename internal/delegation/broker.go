package delegation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshSkew = 60 * time.Second
	DefaultHTTPTimeout = 5 * time.Second

	// Used when the token endpoint declares no lifetime at all.
	fallbackLifetime = time.Hour
)

// State is the delegation state of a user as seen by the gateway.
type State string

const (
	StateNotLinked State = "not_linked"
	StateValid     State = "valid"
	StateExpiring  State = "expiring"
)

// Status describes a user's delegation. ExpiresAt is zero when not linked.
type Status struct {
	State     State     `json:"status"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// BrokerOpts configures a [Broker]. Zero values select the defaults.
type BrokerOpts struct {
	StateStore   StateStore
	HTTPClient   *http.Client
	RefreshSkew  time.Duration
	StateTTL     time.Duration
	RequireState bool
	Now          func() time.Time
	Logger       *log.Logger
	Metrics      *Metrics
}

// Broker runs the authorization-code flow against one authorization server and keeps delegated tokens fresh.
type Broker struct {
	config       *oauth2.Config
	tokens       models.DelegatedTokenStore
	states       StateStore
	httpClient   *http.Client
	skew         time.Duration
	stateTTL     time.Duration
	requireState bool
	now          func() time.Time
	logger       *log.Logger
	metrics      *Metrics

	refreshes singleflight.Group
	writers   userLocks
}

// userLocks serializes the read-exchange-save sequences of one user. Entries are dropped once no goroutine holds or
// waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// NewBroker creates a broker for config that persists tokens in store.
func NewBroker(config *oauth2.Config, store models.DelegatedTokenStore, opts BrokerOpts) *Broker {
	b := &Broker{
		config:       config,
		tokens:       store,
		states:       opts.StateStore,
		httpClient:   opts.HTTPClient,
		skew:         opts.RefreshSkew,
		stateTTL:     opts.StateTTL,
		requireState: opts.RequireState,
		now:          opts.Now,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}

	if b.stateTTL <= 0 {
		b.stateTTL = DefaultStateTTL
	}
	if b.states == nil {
		b.states = NewMemoryStateStore(b.stateTTL)
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if b.skew <= 0 {
		b.skew = DefaultRefreshSkew
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.logger == nil {
		b.logger = shared.NewLogger(nil)
	}

	return b
}

// oauthContext makes x/oauth2 use the broker's HTTP client, which carries the outbound timeout.
func (b *Broker) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// AuthorizationURL returns the URL the user visits to grant access. A fresh state is bound to userID.
func (b *Broker) AuthorizationURL(ctx context.Context, userID string) (string, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return "", err
	}

	if err := b.states.Put(ctx, state, userID, b.stateTTL); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}

	return b.config.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for tokens and stores them for userID.
//
// A supplied state must match the one issued to userID by [Broker.AuthorizationURL]; an absent state is accepted
// unless the broker was built with RequireState.
func (b *Broker) ExchangeCode(ctx context.Context, userID, code, state string) error {
	if code == "" {
		return fmt.Errorf("%w: code is required", shared.ErrInvalidInput)
	}

	if err := b.checkState(ctx, userID, state); err != nil {
		return err
	}

	unlock := b.writers.lock(userID)
	defer unlock()

	tok, err := b.config.Exchange(b.oauthContext(ctx), code)
	receivedAt := b.now()
	if err != nil {
		if isRejected(err) {
			b.metrics.exchange(resultRejected)
			b.logger.Warn("authorization code rejected", "user", userID, "error", err)
			return fmt.Errorf("%w: %v", shared.ErrExchangeRejected, err)
		}
		b.metrics.exchange(resultError)
		b.logger.Error("code exchange failed", "user", userID, "error", err)
		return fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}

	delegated := toDelegatedToken(tok, "", receivedAt)
	if err := b.tokens.Save(ctx, userID, delegated); err != nil {
		b.metrics.exchange(resultError)
		return err
	}

	b.metrics.exchange(resultSuccess)
	b.logger.Info("spotify account linked", "user", userID, "expires_at", delegated.ExpiresAt)
	return nil
}

func (b *Broker) checkState(ctx context.Context, userID, state string) error {
	if state == "" {
		if b.requireState {
			return fmt.Errorf("%w: state is required", shared.ErrInvalidState)
		}
		return nil
	}

	owner, ok, err := b.states.Consume(ctx, state)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
	if !ok || owner != userID {
		return shared.ErrInvalidState
	}
	return nil
}

// EnsureValidToken returns an access token for userID that is good for at least the refresh skew.
//
// A token that is still fresh is returned without any network call. Otherwise it is refreshed once, even when many
// requests for the same user arrive together; they all receive the refreshed token.
func (b *Broker) EnsureValidToken(ctx context.Context, userID string) (string, error) {
	tok, err := b.tokens.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", shared.ErrNotLinked
	}
	if !tok.Expiring(b.now(), b.skew) {
		return tok.AccessToken, nil
	}

	v, err, _ := b.refreshes.Do(userID, func() (any, error) {
		return b.refresh(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh re-reads the stored token inside the flight so that callers queued behind a finished refresh reuse it. It
// holds the same per-user lock as [Broker.ExchangeCode], so a re-link is never overwritten by a refresh of the grant
// it replaced.
func (b *Broker) refresh(ctx context.Context, userID string) (string, error) {
	unlock := b.writers.lock(userID)
	defer unlock()

	current, err := b.tokens.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", shared.ErrNotLinked
	}
	if !current.Expiring(b.now(), b.skew) {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		b.metrics.refresh(resultRejected)
		return "", fmt.Errorf("%w: no refresh token stored", shared.ErrExternalAuthExpired)
	}

	src := b.config.TokenSource(b.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	receivedAt := b.now()
	if err != nil {
		if isRejected(err) {
			b.metrics.refresh(resultRejected)
			b.logger.Warn("refresh token rejected", "user", userID, "error", err)
			return "", fmt.Errorf("%w: %v", shared.ErrExternalAuthExpired, err)
		}
		b.metrics.refresh(resultError)
		b.logger.Error("token refresh failed", "user", userID, "error", err)
		return "", fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}

	refreshed := toDelegatedToken(tok, current.RefreshToken, receivedAt)
	if err := b.tokens.Save(ctx, userID, refreshed); err != nil {
		b.metrics.refresh(resultError)
		return "", err
	}

	b.metrics.refresh(resultSuccess)
	b.logger.Info("delegated token refreshed", "user", userID, "expires_at", refreshed.ExpiresAt)
	return refreshed.AccessToken, nil
}

// Status reports the delegation state of userID without contacting the authorization server.
func (b *Broker) Status(ctx context.Context, userID string) (Status, error) {
	tok, err := b.tokens.Get(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if tok == nil {
		return Status{State: StateNotLinked}, nil
	}
	if tok.Expiring(b.now(), b.skew) {
		return Status{State: StateExpiring, ExpiresAt: tok.ExpiresAt}, nil
	}
	return Status{State: StateValid, ExpiresAt: tok.ExpiresAt}, nil
}

// toDelegatedToken computes the absolute expiry from the instant the response arrived. previousRefresh is kept when
// the server did not rotate the refresh token.
func toDelegatedToken(tok *oauth2.Token, previousRefresh string, receivedAt time.Time) models.DelegatedToken {
	var lifetime time.Duration
	switch {
	case tok.ExpiresIn > 0:
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	case !tok.Expiry.IsZero():
		lifetime = tok.Expiry.Sub(receivedAt)
	default:
		lifetime = fallbackLifetime
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefresh
	}

	return models.NewDelegatedToken(tok.AccessToken, refreshToken, receivedAt, lifetime)
}

// isRejected reports whether the authorization server refused the grant itself, as opposed to failing transiently or
// refusing the client credentials.
func isRejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	switch re.ErrorCode {
	case "invalid_grant":
		return true
	case "invalid_client", "unauthorized_client":
		// client credentials refused: gateway misconfiguration
		return false
	}
	if re.Response == nil {
		return false
	}
	code := re.Response.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
