package popup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/backend"
)

// Handshake states. A handshake moves strictly forward: idle until the window
// is open, awaiting-provider until a terminal event, resolved exactly once.
type handshakeState int

const (
	stateIdle handshakeState = iota
	stateAwaitingProvider
	stateResolved
)

const (
	defaultTimeout      = 60 * time.Second
	defaultPollInterval = 500 * time.Millisecond
	defaultWindowWidth  = 500
	defaultWindowHeight = 600
)

// User-facing messages, one per terminal failure class.
const (
	msgBlocked   = "popup blocked"
	msgTimeout   = "Google sign-in timed out"
	msgAbandoned = "popup closed before sign-in completed"
	msgGeneric   = "Google sign-in failed"
)

// AuthorizationURLFetcher obtains the provider authorization URL from the
// backend, which owns the provider client configuration. Note the observed
// wire contract carries no CSRF state parameter correlating the URL with the
// callback; the listener's origin check is the only correlation guard.
type AuthorizationURLFetcher interface {
	AuthorizationURL(ctx context.Context, redirectURI string) (string, error)
}

// Coordinator executes the redirect-based authorization handshake in a child
// window without navigating the parent away from the application.
type Coordinator struct {
	api          AuthorizationURLFetcher
	host         Host
	clock        Clock
	log          zerolog.Logger
	timeout      time.Duration
	pollInterval time.Duration
	width        int
	height       int
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithClock replaces the runtime clock (primarily for testing).
func WithClock(clock Clock) CoordinatorOption {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithTimeout overrides the handshake deadline.
func WithTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// WithPollInterval overrides the closed-window poll interval.
func WithPollInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.pollInterval = interval
	}
}

// WithWindowSize overrides the child window dimensions.
func WithWindowSize(width, height int) CoordinatorOption {
	return func(c *Coordinator) {
		c.width = width
		c.height = height
	}
}

// NewCoordinator initializes a Coordinator with required dependencies.
func NewCoordinator(api AuthorizationURLFetcher, host Host, options ...CoordinatorOption) (*Coordinator, error) {
	if api == nil {
		return nil, errors.New("[NewCoordinator] api is required")
	}
	if host == nil {
		return nil, errors.New("[NewCoordinator] host is required")
	}

	coordinator := &Coordinator{
		api:          api,
		host:         host,
		clock:        NewRealClock(),
		log:          zerolog.Nop(),
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		width:        defaultWindowWidth,
		height:       defaultWindowHeight,
	}

	for _, opt := range options {
		opt(coordinator)
	}

	return coordinator, nil
}

// outcome is the single terminal result of a handshake.
type outcome struct {
	credentials *backend.Credentials
	err         error
}

// Authenticate runs one handshake and returns the credentials the popup
// reported. Exactly one outcome is ever produced: the first of {terminal
// message, deadline, user-closed window, cancelled context} wins, and the
// listener, deadline timer and close poller are all retired at that point.
func (c *Coordinator) Authenticate(ctx context.Context) (*backend.Credentials, error) {
	log := c.log.With().Str("handshake_id", uuid.New().String()).Logger()

	state := stateIdle

	authURL, err := c.api.AuthorizationURL(ctx, c.host.Origin()+CallbackPath)
	if err != nil {
		return nil, errors.Wrap(err, "[Coordinator.Authenticate] fetching authorization URL")
	}

	window, err := c.host.OpenWindow(authURL, c.width, c.height)
	if err != nil || window == nil {
		// No window ever existed. Fail now, before any timer, poller or
		// listener is registered: there is nothing to wait for.
		log.Warn().Err(err).Msg("popup window could not be created")
		return nil, &Error{Code: ErrorCodeBlocked, Message: msgBlocked}
	}

	messages, stopListening := c.host.Listen()
	defer stopListening()

	deadline := c.clock.NewTimer(c.timeout)
	defer deadline.Stop()

	closePoll := c.clock.NewTicker(c.pollInterval)
	defer closePoll.Stop()

	state = stateAwaitingProvider
	log.Debug().Msg("awaiting provider handshake")

	var result outcome
	resolve := func(o outcome) {
		// One-shot latch: the first resolution wins, later calls are no-ops.
		if state == stateResolved {
			return
		}
		state = stateResolved
		result = o
	}

	// deliver applies one listener event. The close poller drains through it
	// too, so a queued terminal message always beats a closed-window tick.
	deliver := func(msg Message, open bool) {
		if !open {
			window.Close()
			resolve(outcome{err: &Error{Code: ErrorCodeAbandoned, Message: msgAbandoned}})
			return
		}
		if msg.Origin != c.host.Origin() {
			log.Warn().Str("origin", msg.Origin).Msg("ignoring message from foreign origin")
			return
		}
		switch msg.Type {
		case MessageTypeSuccess:
			window.Close()
			if msg.Credentials == nil || msg.Credentials.AccessToken == "" {
				resolve(outcome{err: &Error{Code: ErrorCodeProvider, Message: msgGeneric}})
				return
			}
			log.Info().Msg("handshake completed")
			resolve(outcome{credentials: msg.Credentials})
		case MessageTypeError:
			window.Close()
			reason := msg.Reason
			if reason == "" {
				reason = msgGeneric
			}
			log.Warn().Str("reason", reason).Msg("handshake failed")
			resolve(outcome{err: &Error{Code: ErrorCodeProvider, Message: reason}})
		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")
		}
	}

	for state != stateResolved {
		select {
		case msg, open := <-messages:
			deliver(msg, open)

		case <-deadline.C():
			log.Warn().Dur("timeout", c.timeout).Msg("handshake deadline elapsed")
			window.Close()
			resolve(outcome{err: &Error{Code: ErrorCodeTimeout, Message: msgTimeout}})

		case <-closePoll.C():
			if !window.Closed() {
				continue
			}
			// A terminal message may already be queued behind this tick;
			// abandonment is recorded only when nothing is pending.
			select {
			case msg, open := <-messages:
				deliver(msg, open)
			default:
				log.Info().Msg("popup closed by the user")
				resolve(outcome{err: &Error{Code: ErrorCodeAbandoned, Message: msgAbandoned}})
			}

		case <-ctx.Done():
			window.Close()
			resolve(outcome{err: errors.Wrap(ctx.Err(), "[Coordinator.Authenticate] handshake cancelled")})
		}
	}

	return result.credentials, result.err
}
