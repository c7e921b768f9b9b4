package tokenstore

import (
	"sync"

	"github.com/vbongda/vleague-auth/users"
)

var _ Repo = (*MemoryStore)(nil)

// MemoryStore keeps the session slots in memory. Sessions do not survive a
// process restart; useful for tests and for running without persistence.
type MemoryStore struct {
	lock         sync.RWMutex
	accessToken  string
	refreshToken string
	user         *users.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AccessToken() (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.accessToken, m.accessToken != ""
}

func (m *MemoryStore) RefreshToken() (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.refreshToken, m.refreshToken != ""
}

func (m *MemoryStore) User() (*users.User, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.user == nil {
		return nil, false
	}
	copied := *m.user
	return &copied, true
}

func (m *MemoryStore) SetCredentials(accessToken, refreshToken string, user *users.User) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	if user != nil {
		copied := *user
		m.user = &copied
	} else {
		m.user = nil
	}
	return nil
}

func (m *MemoryStore) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	return nil
}
