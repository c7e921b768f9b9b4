package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vbongda/vleague-auth/backend"
	"github.com/vbongda/vleague-auth/popup"
	"github.com/vbongda/vleague-auth/session"
	"github.com/vbongda/vleague-auth/tokenstore"
	"github.com/vbongda/vleague-auth/users"
)

const (
	testEmail    = "user@example.com"
	testPassword = "correct"
)

// testFixture holds all test dependencies.
type testFixture struct {
	store      *tokenstore.MemoryStore
	controller *session.Controller
	google     *fakeGoogle

	lock    sync.Mutex
	handler http.HandlerFunc
}

// fakeGoogle implements session.GoogleAuthenticator.
type fakeGoogle struct {
	credentials *backend.Credentials
	err         error
	calls       int
}

func (g *fakeGoogle) Authenticate(ctx context.Context) (*backend.Credentials, error) {
	g.calls++
	return g.credentials, g.err
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		store:  tokenstore.NewMemoryStore(),
		google: &fakeGoogle{},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lock.Lock()
		handler := f.handler
		f.lock.Unlock()
		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	api, err := backend.New(server.URL)
	require.NoError(t, err)

	controller, err := session.NewController(f.store, api,
		session.WithGoogleAuthenticator(f.google))
	require.NoError(t, err)
	f.controller = controller

	return f
}

func (f *testFixture) respond(handler http.HandlerFunc) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.handler = handler
}

func (f *testFixture) respondMe(user string) {
	f.respond(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"u1","username":"` + user + `","email":"` + testEmail + `"}}`))
	})
}

func (f *testFixture) respondCredentials() {
	f.respond(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"access_token":"A","refresh_token":"R","user":{"id":"u1","username":"hoangpv","email":"` + testEmail + `"}}}`))
	})
}

func (f *testFixture) respondRejection(status int, message string) {
	f.respond(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
	})
}

func TestController_Start(t *testing.T) {
	t.Run("no persisted token resolves logged out", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.controller.Loading())

		f.controller.Start(context.Background())

		require.False(t, f.controller.Loading())
		_, ok := f.controller.CurrentUser()
		require.False(t, ok)
	})

	t.Run("valid token restores the backend profile", func(t *testing.T) {
		f := setupTestFixture(t)
		cached := &users.User{ID: "u1", Username: "stale-name", Email: testEmail}
		require.NoError(t, f.store.SetCredentials("token-A", "token-R", cached))
		f.respondMe("fresh-name")

		f.controller.Start(context.Background())

		require.False(t, f.controller.Loading())
		user, ok := f.controller.CurrentUser()
		require.True(t, ok)
		// The profile comes from the backend record, not the cached copy.
		require.Equal(t, "fresh-name", user.Username)
	})

	t.Run("rejected token clears the store", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.SetCredentials("stale", "", &users.User{ID: "u1"}))
		f.respondRejection(http.StatusUnauthorized, "token expired")

		f.controller.Start(context.Background())

		require.False(t, f.controller.Loading())
		_, ok := f.controller.CurrentUser()
		require.False(t, ok)
		_, ok = f.store.AccessToken()
		require.False(t, ok)
	})

	t.Run("unreachable backend clears the store", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.SetCredentials("token-A", "", &users.User{ID: "u1"}))
		f.respond(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>502</html>"))
		})

		f.controller.Start(context.Background())

		_, ok := f.controller.CurrentUser()
		require.False(t, ok)
		_, ok = f.store.AccessToken()
		require.False(t, ok)
	})
}

func TestController_Login(t *testing.T) {
	t.Run("success writes tokens and user together", func(t *testing.T) {
		f := setupTestFixture(t)
		f.respondCredentials()

		result := f.controller.Login(context.Background(), testEmail, testPassword)

		require.True(t, result.Success)

		access, ok := f.store.AccessToken()
		require.True(t, ok)
		require.Equal(t, "A", access)
		refresh, ok := f.store.RefreshToken()
		require.True(t, ok)
		require.Equal(t, "R", refresh)
		stored, ok := f.store.User()
		require.True(t, ok)
		require.Equal(t, "u1", stored.ID)

		user, ok := f.controller.CurrentUser()
		require.True(t, ok)
		require.Equal(t, "u1", user.ID)
	})

	t.Run("rejection surfaces the backend message and mutates nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		f.respondRejection(http.StatusUnauthorized, "Invalid credentials")

		result := f.controller.Login(context.Background(), testEmail, "wrongpass")

		require.False(t, result.Success)
		require.Equal(t, "Invalid credentials", result.Message)
		_, ok := f.store.AccessToken()
		require.False(t, ok)
		_, ok = f.controller.CurrentUser()
		require.False(t, ok)
	})

	t.Run("connectivity failure maps to the generic message", func(t *testing.T) {
		f := setupTestFixture(t)
		f.respond(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream down"))
		})

		result := f.controller.Login(context.Background(), testEmail, testPassword)

		require.False(t, result.Success)
		require.Equal(t, "login failed, please try again", result.Message)
	})
}

func TestController_Register(t *testing.T) {
	f := setupTestFixture(t)
	f.respondCredentials()

	result := f.controller.Register(context.Background(), backend.Registration{
		Username: "hoangpv",
		Email:    testEmail,
		Password: testPassword,
	})

	// A successful registration is immediately a logged-in session.
	require.True(t, result.Success)
	_, ok := f.controller.CurrentUser()
	require.True(t, ok)
}

func TestController_GoogleLogin(t *testing.T) {
	t.Run("adopts coordinator credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		f.google.credentials = &backend.Credentials{
			AccessToken:  "A",
			RefreshToken: "R",
			User:         &users.User{ID: "u1", Username: "hoangpv", Email: testEmail},
		}

		result := f.controller.GoogleLogin(context.Background())

		require.True(t, result.Success)
		access, ok := f.store.AccessToken()
		require.True(t, ok)
		require.Equal(t, "A", access)
	})

	t.Run("handshake errors surface their own message", func(t *testing.T) {
		f := setupTestFixture(t)
		f.google.err = &popup.Error{Code: popup.ErrorCodeProvider, Message: "access_denied"}

		result := f.controller.GoogleLogin(context.Background())

		require.False(t, result.Success)
		require.Equal(t, "access_denied", result.Message)
		_, ok := f.store.AccessToken()
		require.False(t, ok)
	})

	t.Run("popup blocked message is distinct", func(t *testing.T) {
		f := setupTestFixture(t)
		f.google.err = &popup.Error{Code: popup.ErrorCodeBlocked, Message: "popup blocked"}

		result := f.controller.GoogleLogin(context.Background())

		require.False(t, result.Success)
		require.Equal(t, "popup blocked", result.Message)
	})
}

func TestController_Logout(t *testing.T) {
	f := setupTestFixture(t)
	f.respondCredentials()
	require.True(t, f.controller.Login(context.Background(), testEmail, testPassword).Success)

	f.controller.Logout()

	_, ok := f.controller.CurrentUser()
	require.False(t, ok)

	// Simulated reload: a fresh start after logout stays logged out.
	f.controller.Start(context.Background())
	_, ok = f.controller.CurrentUser()
	require.False(t, ok)

	// Logging out again is safe.
	f.controller.Logout()
}

func TestController_ConcurrentMutationsRejected(t *testing.T) {
	f := setupTestFixture(t)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	f.respond(func(w http.ResponseWriter, r *http.Request) {
		close(inFlight)
		<-release
		_, _ = w.Write([]byte(`{"success":true,"data":{"access_token":"A","user":{"id":"u1"}}}`))
	})

	firstDone := make(chan session.Result, 1)
	go func() {
		firstDone <- f.controller.Login(context.Background(), testEmail, testPassword)
	}()

	<-inFlight
	second := f.controller.Login(context.Background(), testEmail, testPassword)
	require.False(t, second.Success)
	require.Equal(t, "another sign-in attempt is already in progress", second.Message)

	close(release)
	select {
	case first := <-firstDone:
		require.True(t, first.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("first login never resolved")
	}
}
