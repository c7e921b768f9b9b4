package loopback_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vbongda/vleague-auth/backend"
	"github.com/vbongda/vleague-auth/popup"
	"github.com/vbongda/vleague-auth/popup/loopback"
	"github.com/vbongda/vleague-auth/users"
)

// fakeExchanger implements callback.CodeExchanger.
type fakeExchanger struct {
	lock     sync.Mutex
	calls    int
	lastCode string
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (*backend.Credentials, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	f.lastCode = code
	return &backend.Credentials{
		AccessToken:  "A",
		RefreshToken: "R",
		User:         &users.User{ID: "u1", Username: "hoangpv"},
	}, nil
}

func setupHost(t *testing.T) (*loopback.Host, *fakeExchanger, *string) {
	t.Helper()

	exchanger := &fakeExchanger{}
	var openedURL string
	host, err := loopback.NewHost(exchanger,
		loopback.WithBrowserOpener(func(url string) error {
			openedURL = url
			return nil
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	return host, exchanger, &openedURL
}

func TestHost_RedirectDeliversSuccessMessage(t *testing.T) {
	host, exchanger, openedURL := setupHost(t)

	window, err := host.OpenWindow("https://accounts.google.com/o/oauth2/auth?x=1", 500, 600)
	require.NoError(t, err)
	require.Equal(t, "https://accounts.google.com/o/oauth2/auth?x=1", *openedURL)

	messages, stop := host.Listen()
	defer stop()

	// The provider redirect lands on the loopback callback route.
	resp, err := http.Get(host.Origin() + popup.CallbackPath + "?code=code-123")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case msg := <-messages:
		require.Equal(t, popup.MessageTypeSuccess, msg.Type)
		require.Equal(t, host.Origin(), msg.Origin)
		require.Equal(t, "A", msg.Credentials.AccessToken)
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	require.Equal(t, 1, exchanger.calls)
	require.Equal(t, "code-123", exchanger.lastCode)
	require.False(t, window.Closed()) // closes only after the success delay
}

func TestHost_ConfiguredCloseDelaysReachTheRunner(t *testing.T) {
	exchanger := &fakeExchanger{}
	host, err := loopback.NewHost(exchanger,
		loopback.WithBrowserOpener(func(url string) error { return nil }),
		loopback.WithCloseDelays(10*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	window, err := host.OpenWindow("https://accounts.google.com/o/oauth2/auth", 500, 600)
	require.NoError(t, err)

	messages, stop := host.Listen()
	defer stop()

	resp, err := http.Get(host.Origin() + popup.CallbackPath + "?code=code-123")
	require.NoError(t, err)
	_ = resp.Body.Close()

	select {
	case <-messages:
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	// The window closes on the configured delay, not the built-in one.
	require.Eventually(t, window.Closed, time.Second, 5*time.Millisecond)
}

func TestHost_DuplicateRedirectDeliversOneMessage(t *testing.T) {
	host, exchanger, _ := setupHost(t)

	_, err := host.OpenWindow("https://accounts.google.com/o/oauth2/auth", 500, 600)
	require.NoError(t, err)

	messages, stop := host.Listen()
	defer stop()

	for range 2 {
		resp, err := http.Get(host.Origin() + popup.CallbackPath + "?code=code-123")
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	select {
	case <-messages:
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
	select {
	case <-messages:
		t.Fatal("duplicate redirect produced a second message")
	case <-time.After(100 * time.Millisecond):
	}

	require.Equal(t, 1, exchanger.calls)
}

func TestHost_CallbackWithoutHandshakeIs404(t *testing.T) {
	host, _, _ := setupHost(t)

	resp, err := http.Get(host.Origin() + popup.CallbackPath + "?code=stray")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHost_BrowserFailureMeansBlocked(t *testing.T) {
	exchanger := &fakeExchanger{}
	host, err := loopback.NewHost(exchanger,
		loopback.WithBrowserOpener(func(url string) error {
			return context.DeadlineExceeded
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	window, err := host.OpenWindow("https://accounts.google.com/o/oauth2/auth", 500, 600)
	require.Error(t, err)
	require.Nil(t, window)
}
