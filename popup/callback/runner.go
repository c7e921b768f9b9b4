package callback

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/backend"
	"github.com/vbongda/vleague-auth/popup"
)

const (
	defaultSuccessCloseDelay = 1 * time.Second
	defaultErrorCloseDelay   = 5 * time.Second
)

// CodeExchanger trades a provider authorization code for credentials.
// Implemented by *backend.Client.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*backend.Credentials, error)
}

// OpenerWindow is the popup window's view of itself and its opener: it can
// post messages back to the parent and schedule its own closure.
type OpenerWindow interface {
	PostToOpener(msg popup.Message)
	CloseAfter(d time.Duration)
}

// Runner handles the provider redirect inside the popup window context. It
// processes the redirect at most once, posts exactly one terminal message to
// the opener and then closes the window after a delay: short on success,
// longer on error so the user can read what happened.
type Runner struct {
	api    CodeExchanger
	window OpenerWindow
	origin string
	log    zerolog.Logger

	successCloseDelay time.Duration
	errorCloseDelay   time.Duration

	handled atomic.Bool
}

// RunnerOption defines a function type to modify the Runner instance.
type RunnerOption func(*Runner)

// WithCloseDelays overrides the post-message close delays (primarily for testing).
func WithCloseDelays(success, failure time.Duration) RunnerOption {
	return func(r *Runner) {
		r.successCloseDelay = success
		r.errorCloseDelay = failure
	}
}

// WithLogger sets the runner logger.
func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a Runner posting messages tagged with origin, which must
// be the application's own origin for the parent to accept them.
func NewRunner(api CodeExchanger, window OpenerWindow, origin string, options ...RunnerOption) *Runner {
	runner := &Runner{
		api:               api,
		window:            window,
		origin:            origin,
		log:               zerolog.Nop(),
		successCloseDelay: defaultSuccessCloseDelay,
		errorCloseDelay:   defaultErrorCloseDelay,
	}

	for _, opt := range options {
		opt(runner)
	}

	return runner
}

// Handle processes the provider redirect query. Duplicate deliveries of the
// same redirect (a re-render, a repeated event) are no-ops after the first.
func (r *Runner) Handle(ctx context.Context, query url.Values) {
	if !r.handled.CompareAndSwap(false, true) {
		r.log.Debug().Msg("duplicate redirect delivery ignored")
		return
	}

	if reason := query.Get("error"); reason != "" {
		// Provider-reported error: terminal, the backend exchange is never attempted.
		r.log.Warn().Str("reason", reason).Msg("provider redirect carried an error")
		r.fail(reason)
		return
	}

	code := query.Get("code")
	if code == "" {
		r.fail("no authorization code in provider redirect")
		return
	}

	credentials, err := r.api.ExchangeCode(ctx, code)
	if err != nil {
		r.log.Warn().Err(err).Msg("authorization code exchange failed")
		message := "could not complete Google sign-in"
		if rejected, ok := backend.AsRejected(err); ok {
			message = rejected.Message
		}
		r.fail(message)
		return
	}

	r.log.Info().Msg("authorization code exchanged")
	r.window.PostToOpener(popup.Message{
		Origin:      r.origin,
		Type:        popup.MessageTypeSuccess,
		Credentials: credentials,
	})
	r.window.CloseAfter(r.successCloseDelay)
}

func (r *Runner) fail(reason string) {
	r.window.PostToOpener(popup.Message{
		Origin: r.origin,
		Type:   popup.MessageTypeError,
		Reason: reason,
	})
	r.window.CloseAfter(r.errorCloseDelay)
}
