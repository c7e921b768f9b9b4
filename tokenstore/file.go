package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vbongda/vleague-auth/users"
)

var _ Repo = (*FileStore)(nil)

// FileStore persists each session slot as a file under dir, one file per
// storage key. It stands in for the browser's persistent key-value storage.
type FileStore struct {
	dir  string
	lock sync.Mutex
}

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("[NewFileStore] dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] creating store directory")
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) AccessToken() (string, bool) {
	return f.readString(AccessTokenKey)
}

func (f *FileStore) RefreshToken() (string, bool) {
	return f.readString(RefreshTokenKey)
}

func (f *FileStore) User() (*users.User, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	raw, err := os.ReadFile(f.path(UserKey))
	if err != nil {
		return nil, false
	}
	user := &users.User{}
	// Corrupt cached profiles read as absent, never as a failure.
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, false
	}
	if user.ID == "" {
		return nil, false
	}
	return user, true
}

func (f *FileStore) SetCredentials(accessToken, refreshToken string, user *users.User) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	rawUser, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[FileStore.SetCredentials] marshalling user")
	}
	if err := f.write(AccessTokenKey, []byte(accessToken)); err != nil {
		return err
	}
	if err := f.write(RefreshTokenKey, []byte(refreshToken)); err != nil {
		return err
	}
	return f.write(UserKey, rawUser)
}

func (f *FileStore) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, key := range []string{AccessTokenKey, RefreshTokenKey, UserKey} {
		if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "[FileStore.Clear] removing %s", key)
		}
	}
	return nil
}

func (f *FileStore) readString(key string) (string, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(string(raw))
	return value, value != ""
}

func (f *FileStore) write(key string, value []byte) error {
	if err := os.WriteFile(f.path(key), value, 0o600); err != nil {
		return errors.Wrapf(err, "[FileStore.write] writing %s", key)
	}
	return nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key)
}
