package popup

import "github.com/vbongda/vleague-auth/backend"

// CallbackPath is the route, relative to the application origin, where the
// provider sends the user back after authorization.
const CallbackPath = "/auth/google/callback"

// Message type values on the parent/popup wire.
const (
	MessageTypeSuccess = "GOOGLE_LOGIN_SUCCESS"
	MessageTypeError   = "GOOGLE_LOGIN_ERROR"
)

// Message is a cross-window notification delivered to the parent listener.
// Origin is the sender's origin; a message is only trusted when it matches
// the application's own origin.
type Message struct {
	Origin      string
	Type        string
	Credentials *backend.Credentials // set when Type is MessageTypeSuccess
	Reason      string               // set when Type is MessageTypeError
}

// Host abstracts the windowing environment a handshake runs in: it knows the
// application's own origin, opens child windows and delivers cross-window
// messages.
type Host interface {
	// Origin returns the application's own origin. Messages from any other
	// origin are ignored entirely.
	Origin() string

	// OpenWindow opens a child window at url. An error means the window could
	// not be created (e.g. the popup was blocked); no handle exists then and
	// there is nothing to poll or close.
	OpenWindow(url string, width, height int) (Window, error)

	// Listen registers a message listener. The returned stop function
	// unregisters it and must be safe to call more than once.
	Listen() (<-chan Message, func())
}

// Window is a handle to an open child window. The coordinator owns it
// exclusively for the duration of a handshake.
type Window interface {
	// Closed reports whether the window has been closed, by anyone.
	Closed() bool
	// Close force-closes the window. Closing a closed window is a no-op.
	Close()
}
