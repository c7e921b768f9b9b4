package devserver

import (
	"sync"

	"github.com/google/uuid"
)

// codeRepo tracks single-use dev authorization codes.
type codeRepo struct {
	lock  sync.Mutex
	codes map[string]string // code to account id
}

func newCodeRepo() *codeRepo {
	return &codeRepo{codes: make(map[string]string)}
}

func (c *codeRepo) issue(userID string) string {
	c.lock.Lock()
	defer c.lock.Unlock()

	code := uuid.New().String()
	c.codes[code] = userID
	return code
}

// redeem consumes a code; a second redemption of the same code fails.
func (c *codeRepo) redeem(code string) (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	userID, ok := c.codes[code]
	if ok {
		delete(c.codes, code)
	}
	return userID, ok
}
