// Package loopback implements popup.Host for environments without real
// browser windows: it opens the system browser at the authorization URL and
// stands a loopback HTTP server in for the popup window, receiving the
// provider redirect on popup.CallbackPath and relaying the callback runner's
// terminal message to the coordinator's listener.
package loopback

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/popup"
	"github.com/vbongda/vleague-auth/popup/callback"
)

var _ popup.Host = (*Host)(nil)

// Host serves the provider redirect on a loopback listener.
type Host struct {
	api         callback.CodeExchanger
	log         zerolog.Logger
	openBrowser func(url string) error
	runnerOpts  []callback.RunnerOption

	server *http.Server
	origin string

	lock     sync.Mutex
	messages chan popup.Message
	runner   *callback.Runner
	window   *browserWindow
}

// HostOption defines a function type to modify the Host instance.
type HostOption func(*Host)

// WithLogger sets the host logger.
func WithLogger(log zerolog.Logger) HostOption {
	return func(h *Host) {
		h.log = log
	}
}

// WithBrowserOpener replaces how the authorization URL is opened (primarily
// for testing).
func WithBrowserOpener(open func(url string) error) HostOption {
	return func(h *Host) {
		h.openBrowser = open
	}
}

// WithCloseDelays overrides how long the callback runner keeps the browser
// tab "open" after posting its terminal message.
func WithCloseDelays(success, failure time.Duration) HostOption {
	return func(h *Host) {
		h.runnerOpts = append(h.runnerOpts, callback.WithCloseDelays(success, failure))
	}
}

// NewHost binds a loopback listener and starts serving the callback route.
// Callers must Close the host when the handshake facility is no longer needed.
func NewHost(api callback.CodeExchanger, options ...HostOption) (*Host, error) {
	if api == nil {
		return nil, errors.New("[NewHost] api is required")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "[NewHost] binding loopback listener")
	}

	host := &Host{
		api:         api,
		log:         zerolog.Nop(),
		openBrowser: openBrowser,
		origin:      fmt.Sprintf("http://%s", listener.Addr().String()),
		messages:    make(chan popup.Message, 8),
	}

	for _, opt := range options {
		opt(host)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+popup.CallbackPath, host.handleCallback)
	host.server = &http.Server{Handler: mux}

	go func() {
		if err := host.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			host.log.Error().Err(err).Msg("loopback server stopped")
		}
	}()

	return host, nil
}

// Close stops the loopback server.
func (h *Host) Close() error {
	return h.server.Close()
}

func (h *Host) Origin() string {
	return h.origin
}

// OpenWindow launches the system browser at url. The "window" handle tracks
// only what a loopback host can know: whether the handshake machinery has
// marked it closed.
func (h *Host) OpenWindow(url string, width, height int) (popup.Window, error) {
	h.lock.Lock()
	window := &browserWindow{}
	h.window = window
	runnerOpts := append([]callback.RunnerOption{callback.WithLogger(h.log)}, h.runnerOpts...)
	h.runner = callback.NewRunner(h.api, &openerRelay{host: h, window: window}, h.origin, runnerOpts...)
	h.lock.Unlock()

	if err := h.openBrowser(url); err != nil {
		h.lock.Lock()
		h.runner = nil
		h.window = nil
		h.lock.Unlock()
		return nil, errors.Wrap(err, "[Host.OpenWindow] opening browser")
	}

	h.log.Info().Str("url", url).Msg("browser opened for Google sign-in")
	return window, nil
}

func (h *Host) Listen() (<-chan popup.Message, func()) {
	return h.messages, func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		h.runner = nil
	}
}

func (h *Host) handleCallback(w http.ResponseWriter, r *http.Request) {
	h.lock.Lock()
	runner := h.runner
	h.lock.Unlock()

	if runner == nil {
		http.NotFound(w, r)
		return
	}

	runner.Handle(r.Context(), r.URL.Query())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackPage)
}

// openerRelay implements callback.OpenerWindow over the host's listener
// channel, the way window.opener.postMessage feeds the parent listener.
type openerRelay struct {
	host   *Host
	window *browserWindow
}

func (o *openerRelay) PostToOpener(msg popup.Message) {
	select {
	case o.host.messages <- msg:
	default:
		o.host.log.Warn().Str("type", msg.Type).Msg("dropping message, no listener draining")
	}
}

func (o *openerRelay) CloseAfter(d time.Duration) {
	window := o.window
	time.AfterFunc(d, window.Close)
}

const callbackPage = `<!doctype html>
<html><head><title>V-League sign-in</title></head>
<body><p>Sign-in handled. You can close this tab and return to the application.</p></body></html>`
