package hostfake

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/vbongda/vleague-auth/popup"
)

var _ popup.Host = (*FakeHost)(nil)

// FakeHost is an in-memory windowing environment for tests.
type FakeHost struct {
	origin string

	lock       sync.Mutex
	messages   chan popup.Message
	window     *FakeWindow
	blockOpen  bool
	openedURLs []string
	stopCalls  int
}

func NewFakeHost(origin string) *FakeHost {
	return &FakeHost{
		origin:   origin,
		messages: make(chan popup.Message, 8),
	}
}

// BlockPopups makes every subsequent OpenWindow fail.
func (h *FakeHost) BlockPopups() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.blockOpen = true
}

func (h *FakeHost) Origin() string {
	return h.origin
}

func (h *FakeHost) OpenWindow(url string, width, height int) (popup.Window, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.blockOpen {
		return nil, errors.New("popup blocked by the host")
	}
	h.openedURLs = append(h.openedURLs, url)
	h.window = &FakeWindow{url: url, width: width, height: height}
	return h.window, nil
}

func (h *FakeHost) Listen() (<-chan popup.Message, func()) {
	return h.messages, func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		h.stopCalls++
	}
}

// Post delivers a message to the registered listener.
func (h *FakeHost) Post(msg popup.Message) {
	h.messages <- msg
}

// Window returns the last opened window, or nil.
func (h *FakeHost) Window() *FakeWindow {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.window
}

// OpenedURLs returns every URL a window was opened at.
func (h *FakeHost) OpenedURLs() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]string(nil), h.openedURLs...)
}

// StopCalls reports how many times the listener stop function ran.
func (h *FakeHost) StopCalls() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.stopCalls
}
