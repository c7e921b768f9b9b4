package devserver

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vbongda/vleague-auth/users"
	"golang.org/x/crypto/bcrypt"
)

var (
	errEmailTaken = errors.New("email already registered")
	errNotFound   = errors.New("not found")
)

// account is a stored user with its credential material.
type account struct {
	users.User
	passwordHash []byte
	googleLinked bool
}

func (a *account) profile() *users.User {
	copied := a.User
	return &copied
}

// userRepo is the dev server's in-memory account store.
type userRepo struct {
	lock     sync.RWMutex
	accounts map[string]*account
	emailIds map[string]string // email to account id
}

func newUserRepo() *userRepo {
	return &userRepo{
		accounts: make(map[string]*account),
		emailIds: make(map[string]string),
	}
}

func (r *userRepo) create(username, fullName, email, password string) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "[userRepo.create] hashing password")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	key := normalizeEmail(email)
	if _, taken := r.emailIds[key]; taken {
		return nil, errEmailTaken
	}

	acc := &account{
		User: users.User{
			ID:       uuid.New().String(),
			Username: username,
			FullName: fullName,
			Email:    email,
		},
		passwordHash: hash,
	}
	r.accounts[acc.ID] = acc
	r.emailIds[key] = acc.ID
	return acc, nil
}

// authenticate verifies email and password against the stored hash.
func (r *userRepo) authenticate(email, password string) (*account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.emailIds[normalizeEmail(email)]
	if !ok {
		return nil, errNotFound
	}
	acc := r.accounts[id]
	if len(acc.passwordHash) == 0 {
		return nil, errNotFound // Google-only account, no password login
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, errNotFound
	}
	return acc, nil
}

func (r *userRepo) getByID(id string) (*account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, errNotFound
	}
	return acc, nil
}

// findOrCreateGoogle links or creates an account for a Google identity.
func (r *userRepo) findOrCreateGoogle(email, name, picture string) *account {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := normalizeEmail(email)
	if id, ok := r.emailIds[key]; ok {
		acc := r.accounts[id]
		acc.googleLinked = true
		return acc
	}

	username := name
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	acc := &account{
		User: users.User{
			ID:       uuid.New().String(),
			Username: username,
			FullName: name,
			Email:    email,
			Avatar:   picture,
		},
		googleLinked: true,
	}
	r.accounts[acc.ID] = acc
	r.emailIds[key] = acc.ID
	return acc
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
