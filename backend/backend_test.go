package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vbongda/vleague-auth/backend"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := backend.New(server.URL)
	require.NoError(t, err)
	return client
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := backend.New("  ")
	require.Error(t, err)
}

func TestClient_Login(t *testing.T) {
	t.Run("success returns credentials", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/auth/login", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "user@example.com", body["email"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":{"access_token":"A","refresh_token":"R","user":{"id":"u1","username":"u","email":"user@example.com"}}}`))
		})

		creds, err := client.Login(context.Background(), "user@example.com", "correct")
		require.NoError(t, err)
		require.Equal(t, "A", creds.AccessToken)
		require.Equal(t, "R", creds.RefreshToken)
		require.NotNil(t, creds.User)
		require.Equal(t, "u1", creds.User.ID)
	})

	t.Run("structured rejection surfaces the backend message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
		})

		_, err := client.Login(context.Background(), "user@example.com", "wrongpass")
		require.Error(t, err)

		rejected, ok := backend.AsRejected(err)
		require.True(t, ok)
		require.Equal(t, "Invalid credentials", rejected.Message)
		require.Equal(t, http.StatusUnauthorized, rejected.StatusCode)
	})

	t.Run("status discriminator variant is accepted", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","data":{"access_token":"A","user":{"id":"u1"}}}`))
		})

		creds, err := client.Login(context.Background(), "user@example.com", "correct")
		require.NoError(t, err)
		require.Equal(t, "A", creds.AccessToken)
	})

	t.Run("non-JSON error page is connectivity-class", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
		})

		_, err := client.Login(context.Background(), "user@example.com", "correct")
		require.Error(t, err)
		_, ok := backend.AsRejected(err)
		require.False(t, ok)
	})

	t.Run("unreachable backend is connectivity-class", func(t *testing.T) {
		server := httptest.NewServer(nil)
		server.Close() // nothing listening anymore

		client, err := backend.New(server.URL)
		require.NoError(t, err)

		_, err = client.Login(context.Background(), "user@example.com", "correct")
		require.Error(t, err)
		_, ok := backend.AsRejected(err)
		require.False(t, ok)
	})
}

func TestClient_AuthorizationURL(t *testing.T) {
	t.Run("returns auth_url and forwards redirect_uri", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/google", r.URL.Path)
			require.Equal(t, "http://localhost:3000/auth/google/callback", r.URL.Query().Get("redirect_uri"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"auth_url":"https://accounts.google.com/o/oauth2/auth?client_id=x"}}`))
		})

		authURL, err := client.AuthorizationURL(context.Background(), "http://localhost:3000/auth/google/callback")
		require.NoError(t, err)
		require.Contains(t, authURL, "accounts.google.com")
	})

	t.Run("missing auth_url is an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
		})

		_, err := client.AuthorizationURL(context.Background(), "")
		require.Error(t, err)
	})
}

func TestClient_Me(t *testing.T) {
	t.Run("sends bearer token and decodes profile", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/me", r.URL.Path)
			require.Equal(t, "Bearer token-A", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"u1","username":"hoangpv","email":"hoang@example.com"}}`))
		})

		user, err := client.Me(context.Background(), "token-A")
		require.NoError(t, err)
		require.Equal(t, "u1", user.ID)
		require.Equal(t, "hoangpv", user.Username)
	})

	t.Run("rejected token surfaces the message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"token expired"}`))
		})

		_, err := client.Me(context.Background(), "stale")
		require.Error(t, err)
		rejected, ok := backend.AsRejected(err)
		require.True(t, ok)
		require.Equal(t, "token expired", rejected.Message)
	})
}

func TestClient_ExchangeCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/google/callback", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "code-123", body["code"])

		_, _ = w.Write([]byte(`{"success":true,"data":{"access_token":"A","refresh_token":"R","user":{"id":"u1"}}}`))
	})

	creds, err := client.ExchangeCode(context.Background(), "code-123")
	require.NoError(t, err)
	require.Equal(t, "A", creds.AccessToken)
}
