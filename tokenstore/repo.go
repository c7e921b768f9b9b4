package tokenstore

import "github.com/vbongda/vleague-auth/users"

// Storage keys, matching what the platform keeps in browser storage.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserKey         = "user"
)

// Repo is the persistence boundary for the three session slots: access token,
// refresh token and the cached profile. It is pure storage: no validation and
// no expiry logic live here. A read that finds malformed persisted data
// reports the slot as absent rather than failing.
type Repo interface {
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	User() (*users.User, bool)

	// SetCredentials writes all three slots together, so a reader under the
	// session controller's single-writer discipline never observes a token
	// without its matching profile.
	SetCredentials(accessToken, refreshToken string, user *users.User) error

	// Clear removes all three slots. Clearing an empty store is a no-op.
	Clear() error
}
