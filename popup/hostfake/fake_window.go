package hostfake

import (
	"sync"

	"github.com/vbongda/vleague-auth/popup"
)

var _ popup.Window = (*FakeWindow)(nil)

// FakeWindow records closure of a fake child window.
type FakeWindow struct {
	url    string
	width  int
	height int

	lock       sync.Mutex
	closed     bool
	closeCalls int
}

func (w *FakeWindow) URL() string {
	return w.url
}

func (w *FakeWindow) Size() (int, int) {
	return w.width, w.height
}

func (w *FakeWindow) Closed() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.closed
}

func (w *FakeWindow) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.closed = true
	w.closeCalls++
}

// CloseByUser simulates the user closing the popup manually.
func (w *FakeWindow) CloseByUser() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.closed = true
}

// CloseCalls reports how many times the coordinator force-closed the window.
func (w *FakeWindow) CloseCalls() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.closeCalls
}
