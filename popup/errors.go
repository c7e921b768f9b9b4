package popup

import "errors"

// ErrorCode classifies terminal handshake failures.
type ErrorCode string

const (
	ErrorCodeBlocked   ErrorCode = "popup_blocked" // window could not be created
	ErrorCodeTimeout   ErrorCode = "timeout"       // deadline elapsed with no terminal message
	ErrorCodeAbandoned ErrorCode = "abandoned"     // window closed by the user before a terminal message
	ErrorCodeProvider  ErrorCode = "provider"      // error reported by the popup window itself
)

// Error is a terminal handshake failure. Message is safe to show the user and
// is distinct per failure class.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// AsHandshakeError unwraps err into a handshake *Error if it carries one.
func AsHandshakeError(err error) (*Error, bool) {
	handshakeErr := &Error{}
	if errors.As(err, &handshakeErr) {
		return handshakeErr, true
	}
	return nil, false
}
