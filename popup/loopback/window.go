package loopback

import (
	"sync/atomic"

	"github.com/vbongda/vleague-auth/popup"
)

var _ popup.Window = (*browserWindow)(nil)

// browserWindow approximates a window handle for a browser tab the process
// cannot actually close. Closed only reports what the handshake machinery
// recorded, never the real tab state.
type browserWindow struct {
	closed atomic.Bool
}

func (w *browserWindow) Closed() bool {
	return w.closed.Load()
}

func (w *browserWindow) Close() {
	w.closed.Store(true)
}
