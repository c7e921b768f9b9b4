package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/backend"
	"github.com/vbongda/vleague-auth/popup"
	"github.com/vbongda/vleague-auth/tokenstore"
	"github.com/vbongda/vleague-auth/users"
)

// Fallback messages for failures that carry no backend-sourced message.
const (
	msgLoginFailed    = "login failed, please try again"
	msgRegisterFailed = "registration failed, please try again"
	msgGoogleFailed   = "Google sign-in failed, please try again"
	msgBusy           = "another sign-in attempt is already in progress"
)

// Result is the uniform outcome of every session operation. Failures never
// propagate past the operation that caused them; the worst case is that the
// session remains logged out.
type Result struct {
	Success bool
	Message string
}

// GoogleAuthenticator runs the provider handshake and returns the credentials
// it produced. Implemented by *popup.Coordinator.
type GoogleAuthenticator interface {
	Authenticate(ctx context.Context) (*backend.Credentials, error)
}

// Controller owns the session for one application instance: the current user,
// the startup loading gate and every operation that may change either. It is
// the single writer of the token store; operations run to completion one at a
// time and a second concurrent mutating call is rejected rather than
// interleaved.
type Controller struct {
	store   tokenstore.Repo
	api     *backend.Client
	google  GoogleAuthenticator
	log     zerolog.Logger
	nowTime func() time.Time

	op sync.Mutex // serializes mutating operations

	stateLock sync.RWMutex
	user      *users.User
	loading   bool
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithGoogleAuthenticator wires the OAuth popup coordinator.
func WithGoogleAuthenticator(google GoogleAuthenticator) ControllerOption {
	return func(c *Controller) {
		c.google = google
	}
}

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// NewController initializes a Controller with required dependencies. The
// controller starts in the loading state; callers must run Start before
// consulting CurrentUser for access-control decisions.
func NewController(store tokenstore.Repo, api *backend.Client, options ...ControllerOption) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[NewController] store is required")
	}
	if api == nil {
		return nil, errors.New("[NewController] api is required")
	}

	controller := &Controller{
		store:   store,
		api:     api,
		log:     zerolog.Nop(),
		nowTime: time.Now,
		loading: true,
	}

	for _, opt := range options {
		opt(controller)
	}

	return controller, nil
}

// Start performs the startup validation pass. With no persisted token it
// resolves immediately; otherwise the token is validated against the backend
// and the profile comes from the backend's own record, never the cached copy.
// Any failure clears the persisted tokens and resolves logged out. Loading
// reports false once Start has resolved, and never true again.
func (c *Controller) Start(ctx context.Context) {
	c.op.Lock()
	defer c.op.Unlock()
	defer c.setLoading(false)

	token, ok := c.store.AccessToken()
	if !ok {
		return
	}
	c.logTokenExpiry(token)

	user, err := c.api.Me(ctx, token)
	if err != nil {
		c.log.Warn().Err(err).Msg("startup token validation failed, clearing stored session")
		c.clearSession()
		return
	}

	c.setUser(user)
	c.log.Info().Str("user_id", user.ID).Msg("session restored")
}

// Login authenticates with email and password. On success the tokens and
// profile are written to the store and the session together; on failure
// nothing is mutated.
func (c *Controller) Login(ctx context.Context, email, password string) Result {
	if !c.op.TryLock() {
		return Result{Message: msgBusy}
	}
	defer c.op.Unlock()

	credentials, err := c.api.Login(ctx, email, password)
	if err != nil {
		return c.failure(err, msgLoginFailed)
	}
	return c.adopt(credentials, msgLoginFailed)
}

// Register creates an account. A successful registration is immediately a
// logged-in session, with the same contract as Login.
func (c *Controller) Register(ctx context.Context, registration backend.Registration) Result {
	if !c.op.TryLock() {
		return Result{Message: msgBusy}
	}
	defer c.op.Unlock()

	credentials, err := c.api.Register(ctx, registration)
	if err != nil {
		return c.failure(err, msgRegisterFailed)
	}
	return c.adopt(credentials, msgRegisterFailed)
}

// GoogleLogin delegates to the OAuth popup coordinator and adopts its
// credentials exactly as Login does. Handshake failures (popup blocked,
// timeout, abandoned, provider error) surface their own distinct messages.
func (c *Controller) GoogleLogin(ctx context.Context) Result {
	if c.google == nil {
		c.log.Error().Msg("google login invoked without a coordinator")
		return Result{Message: msgGoogleFailed}
	}
	if !c.op.TryLock() {
		return Result{Message: msgBusy}
	}
	defer c.op.Unlock()

	credentials, err := c.google.Authenticate(ctx)
	if err != nil {
		return c.failure(err, msgGoogleFailed)
	}
	return c.adopt(credentials, msgGoogleFailed)
}

// Logout clears the persisted tokens and the in-memory profile. It never
// fails and is safe to call when already logged out. If a mutating operation
// is in flight, Logout applies after it completes.
func (c *Controller) Logout() {
	c.op.Lock()
	defer c.op.Unlock()
	c.clearSession()
	c.log.Info().Msg("logged out")
}

// CurrentUser returns the authenticated profile, if any. It is only
// meaningful once Loading reports false.
func (c *Controller) CurrentUser() (*users.User, bool) {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	if c.user == nil {
		return nil, false
	}
	copied := *c.user
	return &copied, true
}

// Loading reports true only between construction and the first resolution of
// Start.
func (c *Controller) Loading() bool {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	return c.loading
}

// adopt records a completed authentication: tokens and profile are written to
// the store and the in-memory session together.
func (c *Controller) adopt(credentials *backend.Credentials, fallback string) Result {
	if credentials == nil || credentials.User == nil {
		c.log.Error().Msg("backend returned credentials without a profile")
		return Result{Message: fallback}
	}
	if err := c.store.SetCredentials(credentials.AccessToken, credentials.RefreshToken, credentials.User); err != nil {
		c.log.Error().Err(err).Msg("persisting credentials failed")
		return Result{Message: fallback}
	}
	c.setUser(credentials.User)
	return Result{Success: true}
}

// failure converts an operation error into a Result. Backend rejections and
// terminal handshake errors carry messages safe to surface verbatim; anything
// else is connectivity-class and maps to the generic fallback.
func (c *Controller) failure(err error, fallback string) Result {
	if rejected, ok := backend.AsRejected(err); ok {
		return Result{Message: rejected.Message}
	}
	if handshakeErr, ok := popup.AsHandshakeError(err); ok {
		return Result{Message: handshakeErr.Message}
	}
	c.log.Warn().Err(err).Msg("operation failed")
	return Result{Message: fallback}
}

func (c *Controller) clearSession() {
	if err := c.store.Clear(); err != nil {
		// Logout must not fail; a store that cannot be cleared is logged and
		// the in-memory session is dropped regardless.
		c.log.Error().Err(err).Msg("clearing token store failed")
	}
	c.setUser(nil)
}

func (c *Controller) setUser(user *users.User) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	c.user = user
}

func (c *Controller) setLoading(loading bool) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	c.loading = loading
}

// logTokenExpiry peeks at the persisted token's exp claim for the startup
// log line. The claims are not verified here; validation is the backend's.
func (c *Controller) logTokenExpiry(rawToken string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return // opaque token, nothing to log
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return
	}
	c.log.Debug().
		Time("expires_at", expiry.Time).
		Bool("expired", expiry.Time.Before(c.nowTime())).
		Msg("found persisted access token")
}
